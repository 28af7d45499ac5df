package chain

// tx.go — Transaction signing and submission.

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alejandrodnm/snipebot/internal/domain"
)

const receiptPollInterval = 3 * time.Second

// Wallet signs and submits EIP-1559 transactions through a Connector.
type Wallet struct {
	conn    *Connector
	privKey *ecdsa.PrivateKey
	address common.Address
}

// NewWallet parses the private key (with or without 0x prefix) and
// derives the sender address.
func NewWallet(conn *Connector, privateKeyHex string) (*Wallet, error) {
	pkBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain.NewWallet: decode private key: %w", err)
	}
	privKey, err := crypto.ToECDSA(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("chain.NewWallet: invalid private key: %w", err)
	}
	return &Wallet{
		conn:    conn,
		privKey: privKey,
		address: crypto.PubkeyToAddress(privKey.PublicKey),
	}, nil
}

// Address returns the sender address.
func (w *Wallet) Address() common.Address { return w.address }

// Balance returns the wallet's wei balance.
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	return w.conn.BalanceAt(ctx, w.address)
}

// Send signs and broadcasts a dynamic-fee transaction. value may be nil
// for zero-value calls.
func (w *Wallet) Send(ctx context.Context, to common.Address, value *big.Int, data []byte, gas domain.GasStrategy) (common.Hash, error) {
	nonce, err := w.conn.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain.Send: nonce: %w", err)
	}

	if value == nil {
		value = big.NewInt(0)
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.conn.ChainID(),
		Nonce:     nonce,
		GasTipCap: gas.MaxPriorityFeePerGas,
		GasFeeCap: gas.MaxFeePerGas,
		Gas:       gas.GasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.conn.ChainID()), w.privKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain.Send: sign: %w", err)
	}

	if err := w.conn.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("chain.Send: broadcast: %w", err)
	}

	hash := signed.Hash()
	slog.Info("chain: transaction sent", "tx", hash.Hex(), "to", to.Hex(), "nonce", nonce)
	return hash, nil
}

// WaitMined polls for the receipt until mined or ctx expires.
func (w *Wallet) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := w.conn.TransactionReceipt(ctx, hash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}
