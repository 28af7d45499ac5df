package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Direction indica el sentido de un trade.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// GasStrategy son los parámetros EIP-1559 calculados para una transacción.
// MaxFeePerGas = 2*baseFee + priority: margen para sobrevivir picos de fee
// entre el envío y la inclusión.
type GasStrategy struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasLimit             uint64
}

// TradeOrder es una orden construida por el trade engine y consumida por
// el chain connector. Nunca se muta después del envío.
type TradeOrder struct {
	TokenAddress common.Address
	Direction    Direction
	// AmountIn: wei del activo base en compras, unidades del token en ventas.
	AmountIn *big.Int
	// MinAmountOut es el guard on-chain: la transacción revierte si el
	// output ejecutado queda por debajo. Cero solo en ventas de emergencia.
	MinAmountOut *big.Int
	Gas          GasStrategy
	Deadline     time.Time
}

// TradeResult es el resultado de una orden enviada.
type TradeResult struct {
	TxHash    common.Hash
	AmountOut *big.Int // nil si no se esperó confirmación
	Confirmed bool
}

// Estados de un TradeRecord.
const (
	TradeStatusPending   = "pending"
	TradeStatusConfirmed = "confirmed"
	TradeStatusFailed    = "failed"
)

// TradeRecord es la fila que se persiste en el historial de trades.
type TradeRecord struct {
	ID           string // UUID local
	TokenAddress string
	Symbol       string
	Direction    Direction
	AmountIn     string // wei, como string decimal (SQLite no maneja uint256)
	AmountOut    string
	Price        float64 // ETH por token en el momento del trade
	TxHash       string
	Status       string
	CloseReason  string  // vacío en compras
	PnL          float64 // ETH realizado, solo en ventas
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
