package stats

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radbot-core/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestAggregator(t *testing.T) (*Aggregator, int64) {
	t.Helper()

	b := memory.NewBackend()
	walletID, err := b.RegisterWallet(context.Background(),
		"account_rdx128y6j78mt0aqv6372evz28hrxp8mn06ccddkr7xppc88hyvynvjdwr", "test")
	require.NoError(t, err)

	agg := NewAggregator(memory.NewStatisticsStore(b), memory.NewDailyStatisticsStore(b), 30, nil)
	return agg, walletID
}

func TestRecordFlip_StreaksAndTotals(t *testing.T) {
	agg, walletID := newTestAggregator(t)
	ctx := context.Background()

	// W W W L L W
	outcomes := []struct {
		xrd        string
		usd        string
		profitable bool
	}{
		{"10", "0.5", true},
		{"4", "0.2", true},
		{"6", "0.3", true},
		{"-8", "-0.4", false},
		{"-2", "-0.1", false},
		{"5", "0.25", true},
	}
	for _, o := range outcomes {
		require.NoError(t, agg.RecordFlip(ctx, walletID, dec(o.xrd), dec(o.usd), o.profitable))
	}

	st, err := agg.Statistics(ctx, walletID)
	require.NoError(t, err)

	assert.Equal(t, 4, st.WinningTrades)
	assert.Equal(t, 2, st.LosingTrades)
	assert.Equal(t, 6, st.CompletedCycles())
	assert.Equal(t, 1, st.CurrentWinningStreak)
	assert.Equal(t, 0, st.CurrentLosingStreak)
	assert.Equal(t, 3, st.LongestWinningStreak)
	assert.Equal(t, 2, st.LongestLosingStreak)

	assert.True(t, st.TotalProfitXRD.Equal(dec("25")))
	assert.True(t, st.TotalLossXRD.Equal(dec("10")), "losses stored as positive magnitudes")
	assert.True(t, st.TotalProfitUSD.Equal(dec("1.25")))
	assert.True(t, st.TotalLossUSD.Equal(dec("0.5")))
	assert.True(t, st.TotalProfitLossUSD.Equal(dec("0.75")), "net keeps its sign")

	assert.InDelta(t, 4.0/6.0*100, st.WinRatePercentage, 0.001)
	wantAvg := dec("1.25").Div(decimal.NewFromInt(6))
	assert.True(t, st.AverageProfitPerTrade.Equal(wantAvg), "avg %s", st.AverageProfitPerTrade)
	assert.NotZero(t, st.LastCalculated)
}

func TestRecordFlip_AverageUsesGrossProfit(t *testing.T) {
	agg, walletID := newTestAggregator(t)
	ctx := context.Background()

	require.NoError(t, agg.RecordFlip(ctx, walletID, dec("300"), dec("30"), true))
	require.NoError(t, agg.RecordFlip(ctx, walletID, dec("-100"), dec("-10"), false))

	st, err := agg.Statistics(ctx, walletID)
	require.NoError(t, err)

	// 30 gross profit over 2 cycles; the 10 loss moves only the net total.
	assert.True(t, st.AverageProfitPerTrade.Equal(dec("15")), "avg %s", st.AverageProfitPerTrade)
	assert.True(t, st.TotalProfitLossUSD.Equal(dec("20")))
}

func TestRecordFlip_WinRateInvariant(t *testing.T) {
	agg, walletID := newTestAggregator(t)
	ctx := context.Background()

	// Fresh wallet: zeroed row, no division by zero anywhere.
	st, err := agg.Statistics(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.CompletedCycles())
	assert.Zero(t, st.WinRatePercentage)

	require.NoError(t, agg.RecordFlip(ctx, walletID, dec("-1"), dec("-0.05"), false))
	st, err = agg.Statistics(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, st.WinningTrades+st.LosingTrades, st.CompletedCycles())
	assert.Zero(t, st.WinRatePercentage)
}

func TestRecordDaily_CumulativeRoundTrip(t *testing.T) {
	agg, walletID := newTestAggregator(t)
	ctx := context.Background()

	require.NoError(t, agg.RecordDaily(ctx, walletID, dec("10"), dec("0.5"), dec("100"), dec("5")))
	require.NoError(t, agg.RecordDaily(ctx, walletID, dec("-4"), dec("-0.2"), dec("50"), dec("2.5")))

	rows, err := agg.Daily(ctx, walletID, 7)
	require.NoError(t, err)
	require.Len(t, rows, 1, "same day sums into one row")
	assert.True(t, rows[0].ProfitLossXRD.Equal(dec("6")))
	assert.True(t, rows[0].ProfitLossUSD.Equal(dec("0.3")))
	assert.True(t, rows[0].VolumeXRD.Equal(dec("150")))
	assert.True(t, rows[0].VolumeUSD.Equal(dec("7.5")))
}

func TestRecordDaily_PrunesOutsideRetention(t *testing.T) {
	agg, walletID := newTestAggregator(t)
	ctx := context.Background()

	// Record a row "45 days ago" by steering the aggregator's clock.
	agg.now = func() time.Time { return time.Now().UTC().AddDate(0, 0, -45) }
	require.NoError(t, agg.RecordDaily(ctx, walletID, dec("1"), dec("0.05"), dec("10"), dec("0.5")))

	agg.now = time.Now
	require.NoError(t, agg.RecordDaily(ctx, walletID, dec("2"), dec("0.1"), dec("20"), dec("1")))

	rows, err := agg.Daily(ctx, walletID, 60)
	require.NoError(t, err)
	require.Len(t, rows, 1, "stale row pruned on write")
	assert.True(t, rows[0].ProfitLossXRD.Equal(dec("2")))
}

func TestTradeCounters(t *testing.T) {
	agg, walletID := newTestAggregator(t)
	ctx := context.Background()

	require.NoError(t, agg.TradeCreated(ctx, walletID))
	require.NoError(t, agg.TradeCreated(ctx, walletID))
	require.NoError(t, agg.TradeDeleted(ctx, walletID))

	st, err := agg.Statistics(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalTradesCreated)
	assert.Equal(t, 1, st.TotalTradesDeleted)
}
