package chain

// abis.go — Contract ABIs for the Uniswap-V2 style DEX surface.
//
// Only the fragments the bot actually calls are declared: the factory
// PairCreated event, pair reserve reads, the fee-on-transfer router
// swaps and the ERC20 views used by token probing.

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	FactoryABI abi.ABI
	PairABI    abi.ABI
	RouterABI  abi.ABI
	ERC20ABI   abi.ABI

	// PairCreatedTopic is the indexed topic0 of factory PairCreated logs.
	PairCreatedTopic = crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)"))
)

func init() {
	var err error

	FactoryABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "PairCreated",
			"type": "event",
			"inputs": [
				{"name": "token0", "type": "address", "indexed": true},
				{"name": "token1", "type": "address", "indexed": true},
				{"name": "pair", "type": "address", "indexed": false},
				{"name": "", "type": "uint256", "indexed": false}
			]
		},
		{
			"name": "getPair",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "tokenA", "type": "address"},
				{"name": "tokenB", "type": "address"}
			],
			"outputs": [{"name": "pair", "type": "address"}]
		}
	]`))
	if err != nil {
		panic("factory abi parse: " + err.Error())
	}

	PairABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "getReserves",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [
				{"name": "reserve0", "type": "uint112"},
				{"name": "reserve1", "type": "uint112"},
				{"name": "blockTimestampLast", "type": "uint32"}
			]
		},
		{
			"name": "token0",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "address"}]
		},
		{
			"name": "token1",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "address"}]
		}
	]`))
	if err != nil {
		panic("pair abi parse: " + err.Error())
	}

	RouterABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "swapExactETHForTokensSupportingFeeOnTransferTokens",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [
				{"name": "amountOutMin", "type": "uint256"},
				{"name": "path", "type": "address[]"},
				{"name": "to", "type": "address"},
				{"name": "deadline", "type": "uint256"}
			],
			"outputs": []
		},
		{
			"name": "swapExactTokensForETHSupportingFeeOnTransferTokens",
			"type": "function",
			"inputs": [
				{"name": "amountIn", "type": "uint256"},
				{"name": "amountOutMin", "type": "uint256"},
				{"name": "path", "type": "address[]"},
				{"name": "to", "type": "address"},
				{"name": "deadline", "type": "uint256"}
			],
			"outputs": []
		},
		{
			"name": "getAmountsOut",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "amountIn", "type": "uint256"},
				{"name": "path", "type": "address[]"}
			],
			"outputs": [{"name": "amounts", "type": "uint256[]"}]
		}
	]`))
	if err != nil {
		panic("router abi parse: " + err.Error())
	}

	ERC20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "name",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "string"}]
		},
		{
			"name": "symbol",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "string"}]
		},
		{
			"name": "decimals",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "uint8"}]
		},
		{
			"name": "totalSupply",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "owner",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "address"}]
		},
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}
}
