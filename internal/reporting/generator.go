package reporting

import (
	"context"
	"fmt"
	"time"

	"radbot-core/internal/stats"
	"radbot-core/internal/storage"
)

const defaultExecutionRows = 25

// Generator produces wallet performance reports from stored data.
type Generator struct {
	wallets    storage.WalletDirectory
	aggregator *stats.Aggregator
	history    storage.HistoryStore
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(wallets storage.WalletDirectory, aggregator *stats.Aggregator, history storage.HistoryStore) *Generator {
	return &Generator{
		wallets:    wallets,
		aggregator: aggregator,
		history:    history,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report for one wallet covering the last
// windowDays calendar days.
func (g *Generator) Generate(ctx context.Context, walletAddress string, windowDays int) (*Report, error) {
	walletID, err := g.wallets.IDByAddress(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve wallet %s: %w", walletAddress, err)
	}

	ws, err := g.aggregator.Statistics(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}

	daily, err := g.aggregator.Daily(ctx, walletID, windowDays)
	if err != nil {
		return nil, fmt.Errorf("load daily statistics: %w", err)
	}

	entries, err := g.history.Query(ctx, storage.HistoryFilter{
		WalletAddress: walletAddress,
		Limit:         defaultExecutionRows,
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	r := &Report{
		GeneratedAt:   g.now(),
		WalletAddress: walletAddress,
		WindowDays:    windowDays,
		Summary: SummarySection{
			TradesCreated:         ws.TotalTradesCreated,
			TradesDeleted:         ws.TotalTradesDeleted,
			CompletedCycles:       ws.CompletedCycles(),
			WinningTrades:         ws.WinningTrades,
			LosingTrades:          ws.LosingTrades,
			WinRatePercent:        ws.WinRatePercentage,
			CurrentWinningStreak:  ws.CurrentWinningStreak,
			CurrentLosingStreak:   ws.CurrentLosingStreak,
			LongestWinningStreak:  ws.LongestWinningStreak,
			LongestLosingStreak:   ws.LongestLosingStreak,
			NetProfitLossUSD:      ws.TotalProfitLossUSD,
			TotalProfitUSD:        ws.TotalProfitUSD,
			TotalLossUSD:          ws.TotalLossUSD,
			TotalProfitXRD:        ws.TotalProfitXRD,
			TotalLossXRD:          ws.TotalLossXRD,
			AverageProfitPerTrade: ws.AverageProfitPerTrade,
			LastCalculated:        ws.LastCalculated,
		},
	}

	for _, d := range daily {
		r.Daily = append(r.Daily, DailyRow{
			Date:          d.Date,
			ProfitLossXRD: d.ProfitLossXRD,
			ProfitLossUSD: d.ProfitLossUSD,
			VolumeXRD:     d.VolumeXRD,
			VolumeUSD:     d.VolumeUSD,
		})
	}

	for _, e := range entries {
		row := ExecutionRow{
			Timestamp: e.Timestamp,
			Pair:      e.Pair,
			Side:      e.Side,
			Status:    e.Status,
			Strategy:  e.StrategyName,
			USDValue:  e.USDValue,
		}
		if e.Annotation != nil {
			row.Profit = e.Annotation.Display
		}
		r.RecentExecutions = append(r.RecentExecutions, row)
	}

	return r, nil
}
