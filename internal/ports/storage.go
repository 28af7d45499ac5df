package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/snipebot/internal/domain"
)

// TradeSummary agrega el historial para los reportes periodicos.
type TradeSummary struct {
	TotalTrades int
	Confirmed   int
	Failed      int
	TotalPnL    float64
	BestTrade   float64
	WorstTrade  float64
}

// TradeStore persiste el historial de operaciones ejecutadas.
type TradeStore interface {
	// RecordTrade inserta o actualiza un trade por ID.
	RecordTrade(ctx context.Context, trade domain.TradeRecord) error

	// UpdateTradeStatus cambia el estado y PnL de un trade existente.
	UpdateTradeStatus(ctx context.Context, id, status, closeReason string, pnl float64) error

	// GetTrades devuelve los ultimos trades, mas recientes primero.
	GetTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)

	// Summary agrega los trades desde la fecha indicada.
	Summary(ctx context.Context, since time.Time) (TradeSummary, error)

	Close() error
}
