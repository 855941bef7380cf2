package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radbot-core/internal/domain"
	"radbot-core/internal/stats"
	"radbot-core/internal/storage"
	"radbot-core/internal/storage/memory"
)

const testWallet = "account_rdx12y3nf6pqr8social9w6ldg2q0sreport000000000000000000001"

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func setupTestData(t *testing.T) *Generator {
	t.Helper()
	ctx := context.Background()

	backend := memory.NewBackend()
	walletID, err := backend.RegisterWallet(ctx, testWallet, "report test")
	require.NoError(t, err)

	agg := stats.NewAggregator(memory.NewStatisticsStore(backend), memory.NewDailyStatisticsStore(backend), 30, nil)
	history := memory.NewHistoryStore(backend)

	// Two measured cycles: one win, one loss.
	require.NoError(t, agg.RecordFlip(ctx, walletID, dec("10"), dec("0.5"), true))
	require.NoError(t, agg.RecordFlip(ctx, walletID, dec("-4"), dec("-0.2"), false))
	require.NoError(t, agg.RecordDaily(ctx, walletID, dec("6"), dec("0.3"), dec("200"), dec("10")))

	_, err = history.Record(ctx, &domain.HistoryEntry{
		TradeID:       "trade-1",
		WalletAddress: testWallet,
		Pair:          "DFP2/XRD",
		Side:          domain.SideBuy,
		AmountBase:    dec("50"),
		AmountQuote:   dec("100"),
		Price:         2.0,
		USDValue:      dec("5"),
		Timestamp:     time.Now().UnixMilli(),
		Status:        domain.StatusSuccess,
		StrategyName:  "rsi_flip",
	})
	require.NoError(t, err)

	_, err = history.Record(ctx, &domain.HistoryEntry{
		TradeID:       "trade-1",
		WalletAddress: testWallet,
		Pair:          "DFP2/XRD",
		Side:          domain.SideSell,
		AmountBase:    dec("50"),
		AmountQuote:   dec("110"),
		Price:         2.2,
		USDValue:      dec("5.5"),
		Timestamp:     time.Now().UnixMilli(),
		Status:        domain.StatusSuccess,
		StrategyName:  "rsi_flip",
	})
	require.NoError(t, err)
	require.NoError(t, history.AnnotateLatest(ctx, "trade-1", domain.ProfitAnnotation{
		Display: "10.00000000 XRD",
		USD:     dec("0.5"),
		XRD:     dec("10"),
	}))

	return NewGenerator(memory.NewWalletDirectory(backend), agg, history)
}

func TestGenerate(t *testing.T) {
	g := setupTestData(t)

	r, err := g.Generate(context.Background(), testWallet, 7)
	require.NoError(t, err)

	assert.Equal(t, testWallet, r.WalletAddress)
	assert.Equal(t, 2, r.Summary.CompletedCycles)
	assert.Equal(t, 1, r.Summary.WinningTrades)
	assert.Equal(t, 1, r.Summary.LosingTrades)
	assert.InDelta(t, 50.0, r.Summary.WinRatePercent, 1e-9)
	assert.True(t, r.Summary.NetProfitLossUSD.Equal(dec("0.3")))

	require.Len(t, r.Daily, 1)
	assert.True(t, r.Daily[0].VolumeXRD.Equal(dec("200")))

	require.Len(t, r.RecentExecutions, 2)
	// Newest first: the annotated closing SELL leads.
	assert.Equal(t, domain.SideSell, r.RecentExecutions[0].Side)
	assert.Equal(t, "10.00000000 XRD", r.RecentExecutions[0].Profit)
	assert.Empty(t, r.RecentExecutions[1].Profit)
}

func TestGenerate_UnknownWallet(t *testing.T) {
	g := setupTestData(t)

	_, err := g.Generate(context.Background(), "account_rdx1unknown", 7)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRenderMarkdown(t *testing.T) {
	g := setupTestData(t)
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	g.WithClock(func() time.Time { return fixed })

	r, err := g.Generate(context.Background(), testWallet, 7)
	require.NoError(t, err)

	md := RenderMarkdown(r)
	assert.Contains(t, md, "# Wallet Report: "+testWallet)
	assert.Contains(t, md, "2026-08-30T12:00:00Z")
	assert.Contains(t, md, "| Win Rate | 50.00% |")
	assert.Contains(t, md, "10.00000000 XRD")
	assert.Contains(t, md, "## Daily Performance")
}

func TestRenderDailyCSV(t *testing.T) {
	g := setupTestData(t)

	r, err := g.Generate(context.Background(), testWallet, 7)
	require.NoError(t, err)

	csv := RenderDailyCSV(r.Daily)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,profit_loss_xrd,profit_loss_usd,volume_xrd,volume_usd", lines[0])
	assert.Contains(t, lines[1], ",6.00000000,0.30,200.00000000,10.00")
}
