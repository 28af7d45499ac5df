package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alejandrodnm/snipebot/internal/chain"
	"github.com/alejandrodnm/snipebot/internal/domain"
)

// Config contiene la configuración del watcher de pares.
type Config struct {
	Factory      common.Address
	BaseAsset    common.Address // WETH o el wrapped nativo de la red
	PollInterval time.Duration
	BlockBatch   uint64 // máximo de bloques por query de logs
	SeenLimit    int    // tamaño del set de deduplicación
	BufferSize   int    // capacidad del canal de candidatos
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		PollInterval: 3 * time.Second,
		BlockBatch:   500,
		SeenLimit:    4096,
		BufferSize:   64,
	}
}

// Watcher vigila los eventos PairCreated de la factory y emite
// candidatos por el canal. Nunca bloquea esperando al consumidor: si el
// canal está lleno el candidato se descarta con un warning.
type Watcher struct {
	cfg   Config
	conn  *chain.Connector
	stats *domain.Stats

	candidates chan domain.CandidatePair

	// dedup FIFO acotado
	seen      map[common.Address]struct{}
	seenOrder []common.Address
}

// New crea un Watcher con sus dependencias inyectadas.
func New(cfg Config, conn *chain.Connector, stats *domain.Stats) *Watcher {
	return &Watcher{
		cfg:        cfg,
		conn:       conn,
		stats:      stats,
		candidates: make(chan domain.CandidatePair, cfg.BufferSize),
		seen:       make(map[common.Address]struct{}, cfg.SeenLimit),
	}
}

// Candidates devuelve el canal de candidatos detectados.
func (w *Watcher) Candidates() <-chan domain.CandidatePair {
	return w.candidates
}

// Run ejecuta el loop de polling hasta que el contexto se cancele.
// Mantiene un cursor de bloque para no perder ni repetir eventos. Ante
// errores consecutivos aplica backoff creciente y finalmente pide
// failover al connector.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.candidates)

	latest, err := w.conn.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("watcher.Run: initial block: %w", err)
	}
	fromBlock := latest + 1

	slog.Info("watcher starting",
		"factory", w.cfg.Factory.Hex(),
		"base_asset", w.cfg.BaseAsset.Hex(),
		"from_block", fromBlock,
	)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher stopped")
			return nil
		case <-ticker.C:
			next, err := w.poll(ctx, fromBlock)
			if err != nil {
				failures++
				slog.Warn("watcher poll failed", "failures", failures, "err", err)
				if !w.backoff(ctx, failures) {
					return nil
				}
				if failures >= 5 {
					if ferr := w.conn.Failover(ctx); ferr != nil {
						slog.Error("watcher failover failed", "err", ferr)
					}
					failures = 0
				}
				continue
			}
			failures = 0
			fromBlock = next
		}
	}
}

// poll consulta los logs desde fromBlock y devuelve el siguiente cursor.
func (w *Watcher) poll(ctx context.Context, fromBlock uint64) (uint64, error) {
	latest, err := w.conn.BlockNumber(ctx)
	if err != nil {
		return fromBlock, fmt.Errorf("block number: %w", err)
	}
	if latest < fromBlock {
		return fromBlock, nil
	}

	toBlock := latest
	if toBlock-fromBlock+1 > w.cfg.BlockBatch {
		toBlock = fromBlock + w.cfg.BlockBatch - 1
	}

	logs, err := w.conn.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{w.cfg.Factory},
		Topics:    [][]common.Hash{{chain.PairCreatedTopic}},
	})
	if err != nil {
		return fromBlock, fmt.Errorf("filter logs: %w", err)
	}

	for _, lg := range logs {
		w.handleLog(lg)
	}
	return toBlock + 1, nil
}

// handleLog parsea un evento PairCreated y lo emite si es candidato.
func (w *Watcher) handleLog(lg types.Log) {
	if len(lg.Topics) < 3 || len(lg.Data) < 32 {
		slog.Debug("malformed PairCreated log", "tx", lg.TxHash.Hex())
		return
	}

	token0 := common.BytesToAddress(lg.Topics[1].Bytes())
	token1 := common.BytesToAddress(lg.Topics[2].Bytes())
	pair := common.BytesToAddress(lg.Data[:32])

	if w.isSeen(pair) {
		return
	}
	w.markSeen(pair)

	w.stats.Update(func(s *domain.Stats) { s.PairsSeen++ })

	cand, ok := domain.NewCandidate(pair, token0, token1, w.cfg.BaseAsset, lg.BlockNumber)
	if !ok {
		slog.Debug("pair without base asset, skipping",
			"pair", pair.Hex(), "token0", token0.Hex(), "token1", token1.Hex())
		return
	}

	select {
	case w.candidates <- cand:
		slog.Info("new pair detected",
			"pair", pair.Hex(),
			"token", cand.TargetToken.Hex(),
			"block", lg.BlockNumber,
		)
	default:
		slog.Warn("candidate buffer full, dropping", "pair", pair.Hex())
	}
}

// backoff espera min(10*failures, 60) segundos. Devuelve false si el
// contexto se canceló durante la espera.
func (w *Watcher) backoff(ctx context.Context, failures int) bool {
	wait := time.Duration(10*failures) * time.Second
	if wait > time.Minute {
		wait = time.Minute
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}

func (w *Watcher) isSeen(pair common.Address) bool {
	_, ok := w.seen[pair]
	return ok
}

// markSeen registra el par y expulsa el más antiguo si se supera el
// límite.
func (w *Watcher) markSeen(pair common.Address) {
	if len(w.seen) >= w.cfg.SeenLimit && len(w.seenOrder) > 0 {
		oldest := w.seenOrder[0]
		w.seenOrder = w.seenOrder[1:]
		delete(w.seen, oldest)
	}
	w.seen[pair] = struct{}{}
	w.seenOrder = append(w.seenOrder, pair)
}
