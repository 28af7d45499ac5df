package storage

// sqlite.go — historial de trades en SQLite.
//
// Estrategia:
//   - `trades`: UNA fila por trade (UPSERT por id). Las cantidades en wei
//     se guardan como TEXT decimal: SQLite no maneja uint256.
//   - El resumen se agrega con SQL, no en memoria: los reportes leen poco
//     y el bot escribe poco, no hace falta cache.
//   - Prune automático al arrancar: trades cerrados > 90 días.

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/snipebot/internal/domain"
	"github.com/alejandrodnm/snipebot/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por trade, compras y ventas
CREATE TABLE IF NOT EXISTS trades (
    id            TEXT PRIMARY KEY,
    token_address TEXT    NOT NULL,
    symbol        TEXT,
    direction     TEXT    NOT NULL,
    amount_in     TEXT    NOT NULL,
    amount_out    TEXT,
    price         REAL    NOT NULL DEFAULT 0,
    tx_hash       TEXT,
    status        TEXT    NOT NULL,
    close_reason  TEXT,
    pnl           REAL    NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_token   ON trades(token_address);
CREATE INDEX IF NOT EXISTS idx_trades_created ON trades(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_trades_status  ON trades(status);
`

// trades cerrados: 90 días de retención
const retentionTrades = 90 * 24 * time.Hour

// SQLiteStore implementa ports.TradeStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia trades antiguos.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// RecordTrade inserta o actualiza un trade por id.
func (s *SQLiteStore) RecordTrade(ctx context.Context, t domain.TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, token_address, symbol, direction, amount_in, amount_out,
		                    price, tx_hash, status, close_reason, pnl, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount_out   = excluded.amount_out,
			price        = excluded.price,
			tx_hash      = excluded.tx_hash,
			status       = excluded.status,
			close_reason = excluded.close_reason,
			pnl          = excluded.pnl,
			updated_at   = excluded.updated_at`,
		t.ID, t.TokenAddress, t.Symbol, string(t.Direction), t.AmountIn, t.AmountOut,
		t.Price, t.TxHash, t.Status, t.CloseReason, t.PnL, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.RecordTrade: %w", err)
	}
	return nil
}

// UpdateTradeStatus cambia estado, motivo de cierre y PnL de un trade.
func (s *SQLiteStore) UpdateTradeStatus(ctx context.Context, id, status, closeReason string, pnl float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades
		SET status = ?, close_reason = ?, pnl = ?, updated_at = ?
		WHERE id = ?`,
		status, closeReason, pnl, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateTradeStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdateTradeStatus: trade %s not found", id)
	}
	return nil
}

// GetTrades devuelve los últimos trades, más recientes primero.
func (s *SQLiteStore) GetTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token_address, symbol, direction, amount_in, amount_out,
		       price, tx_hash, status, close_reason, pnl, created_at, updated_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTrades: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var direction string
		var symbol, amountOut, txHash, closeReason sql.NullString
		if err := rows.Scan(&t.ID, &t.TokenAddress, &symbol, &direction, &t.AmountIn, &amountOut,
			&t.Price, &txHash, &t.Status, &closeReason, &t.PnL, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage.GetTrades: scan: %w", err)
		}
		t.Direction = domain.Direction(direction)
		t.Symbol = symbol.String
		t.AmountOut = amountOut.String
		t.TxHash = txHash.String
		t.CloseReason = closeReason.String
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Summary agrega los trades desde la fecha indicada.
func (s *SQLiteStore) Summary(ctx context.Context, since time.Time) (ports.TradeSummary, error) {
	var sum ports.TradeSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(pnl), 0),
		       COALESCE(MAX(pnl), 0),
		       COALESCE(MIN(pnl), 0)
		FROM trades
		WHERE created_at >= ?`,
		domain.TradeStatusConfirmed, domain.TradeStatusFailed, since.UTC(),
	).Scan(&sum.TotalTrades, &sum.Confirmed, &sum.Failed, &sum.TotalPnL, &sum.BestTrade, &sum.WorstTrade)
	if err != nil {
		return ports.TradeSummary{}, fmt.Errorf("storage.Summary: %w", err)
	}
	return sum, nil
}

// pruneOld borra trades terminales con más de 90 días.
func (s *SQLiteStore) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionTrades)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM trades WHERE updated_at < ? AND status != ?`,
		cutoff, domain.TradeStatusPending,
	)
	if err != nil {
		slog.Warn("storage: prune failed", "err", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("storage: pruned old trades", "deleted", n)
	}
}

// Close cierra la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
