package domain

import "sync"

// Stats son los contadores globales del bot. Seguros para acceso
// concurrente: cada goroutine de evaluación incrementa, el reporter lee
// snapshots.
type Stats struct {
	mu sync.Mutex

	PairsSeen         int
	PairsAnalyzed     int
	TradesAttempted   int
	TradesSucceeded   int
	TradesFailed      int
	HoneypotsDetected int
	SafetyRejected    int
	TotalPnL          float64
}

// StatsSnapshot es una copia inmutable de los contadores.
type StatsSnapshot struct {
	PairsSeen         int
	PairsAnalyzed     int
	TradesAttempted   int
	TradesSucceeded   int
	TradesFailed      int
	HoneypotsDetected int
	SafetyRejected    int
	TotalPnL          float64
}

// Update aplica una mutación bajo el lock.
func (s *Stats) Update(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Snapshot devuelve una copia consistente de los contadores.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		PairsSeen:         s.PairsSeen,
		PairsAnalyzed:     s.PairsAnalyzed,
		TradesAttempted:   s.TradesAttempted,
		TradesSucceeded:   s.TradesSucceeded,
		TradesFailed:      s.TradesFailed,
		HoneypotsDetected: s.HoneypotsDetected,
		SafetyRejected:    s.SafetyRejected,
		TotalPnL:          s.TotalPnL,
	}
}
