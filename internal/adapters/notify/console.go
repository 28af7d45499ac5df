package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/snipebot/internal/domain"
	"github.com/alejandrodnm/snipebot/internal/ports"
)

// Console implementa ports.Notifier escribiendo a stdout.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Send imprime la alerta en una línea.
func (c *Console) Send(_ context.Context, message, level string, data map[string]any) {
	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "[%s] %-8s %s", now, level, message)
	for k, v := range data {
		fmt.Fprintf(c.out, " %s=%v", k, v)
	}
	fmt.Fprintln(c.out)
}

// PrintPositions imprime la tabla de posiciones abiertas.
func (c *Console) PrintPositions(positions []domain.Position) {
	if len(positions) == 0 {
		fmt.Fprintln(c.out, "  (no open positions)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "State", "Spent ETH", "Entry", "Target", "Stop", "Age")

	for _, p := range positions {
		table.Append(
			p.Symbol,
			string(p.State),
			fmt.Sprintf("%.4f", p.AmountSpent),
			fmt.Sprintf("%.3e", p.EntryPrice),
			fmt.Sprintf("%.3e", p.ProfitTargetPrice),
			fmt.Sprintf("%.3e", p.StopLossPrice),
			time.Since(p.OpenedAt).Truncate(time.Second).String(),
		)
	}
	table.Render()
}

// PrintStats imprime el reporte periódico de contadores y PnL.
func (c *Console) PrintStats(snap domain.StatsSnapshot, summary ports.TradeSummary) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Pairs", "Analyzed", "Honeypots", "Rejected", "Attempted", "OK", "Failed", "PnL ETH")
	table.Append(
		fmt.Sprintf("%d", snap.PairsSeen),
		fmt.Sprintf("%d", snap.PairsAnalyzed),
		fmt.Sprintf("%d", snap.HoneypotsDetected),
		fmt.Sprintf("%d", snap.SafetyRejected),
		fmt.Sprintf("%d", snap.TradesAttempted),
		fmt.Sprintf("%d", snap.TradesSucceeded),
		fmt.Sprintf("%d", snap.TradesFailed),
		fmt.Sprintf("%.4f", snap.TotalPnL),
	)
	table.Render()

	if summary.TotalTrades > 0 {
		fmt.Fprintf(c.out, "  Historial: %d trades (%d ok, %d failed) | best %.4f | worst %.4f\n",
			summary.TotalTrades, summary.Confirmed, summary.Failed,
			summary.BestTrade, summary.WorstTrade)
	}
}
