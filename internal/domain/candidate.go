package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// CandidatePair representa un par recién creado en la factory del DEX.
// Se construye al recibir el evento PairCreated y es inmutable: una vez
// evaluado (con éxito o no) pasa al set de "vistos" y no se reprocesa.
type CandidatePair struct {
	PairAddress common.Address
	Token0      common.Address
	Token1      common.Address

	// TargetToken es el token que NO es el activo base (p.ej. WETH).
	TargetToken common.Address
	// IsTargetToken0 indica si TargetToken ocupa el slot token0 del par.
	IsTargetToken0 bool

	// BlockSeen es el bloque en el que se observó el evento.
	BlockSeen uint64
}

// NewCandidate clasifica los dos tokens de un par contra el activo base.
// Devuelve ok=false si ninguno de los dos lados es el activo base —
// esos pares no se evalúan.
func NewCandidate(pair, token0, token1, baseAsset common.Address, block uint64) (CandidatePair, bool) {
	c := CandidatePair{
		PairAddress: pair,
		Token0:      token0,
		Token1:      token1,
		BlockSeen:   block,
	}
	switch {
	case token0 == baseAsset:
		c.TargetToken = token1
		c.IsTargetToken0 = false
	case token1 == baseAsset:
		c.TargetToken = token0
		c.IsTargetToken0 = true
	default:
		return CandidatePair{}, false
	}
	return c, true
}
