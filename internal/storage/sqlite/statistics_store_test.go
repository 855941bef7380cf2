package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

func TestStatisticsStore_EnsureGetPut(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	walletID := seedWallet(t, ctx, db, testWalletAddress)

	store := NewStatisticsStore(db)

	_, err := store.Get(ctx, walletID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Ensure(ctx, walletID))
	require.NoError(t, store.Ensure(ctx, walletID), "ensure is idempotent")

	st, err := store.Get(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.WinningTrades)
	assert.True(t, st.TotalProfitLossUSD.IsZero())

	st.WinningTrades = 3
	st.LosingTrades = 1
	st.CurrentWinningStreak = 2
	st.LongestWinningStreak = 3
	st.TotalProfitXRD = dec("42.5")
	st.TotalLossXRD = dec("7.25")
	st.TotalProfitLossUSD = dec("1.9")
	st.WinRatePercentage = 75
	st.AverageProfitPerTrade = dec("8.8125")
	st.LastCalculated = time.Now().Unix()
	require.NoError(t, store.Put(ctx, st))

	got, err := store.Get(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.WinningTrades)
	assert.Equal(t, 1, got.LosingTrades)
	assert.Equal(t, 2, got.CurrentWinningStreak)
	assert.Equal(t, 3, got.LongestWinningStreak)
	assert.True(t, got.TotalProfitXRD.Equal(dec("42.5")))
	assert.True(t, got.TotalLossXRD.Equal(dec("7.25")))
	assert.InDelta(t, 75.0, got.WinRatePercentage, 0.001)
	assert.True(t, got.AverageProfitPerTrade.Equal(dec("8.8125")))
}

func TestStatisticsStore_IncrementCounters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	walletID := seedWallet(t, ctx, db, testWalletAddress)

	store := NewStatisticsStore(db)

	// Increments create the row on demand.
	require.NoError(t, store.IncrementCreated(ctx, walletID))
	require.NoError(t, store.IncrementCreated(ctx, walletID))
	require.NoError(t, store.IncrementDeleted(ctx, walletID))

	st, err := store.Get(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalTradesCreated)
	assert.Equal(t, 1, st.TotalTradesDeleted)
}

func TestDailyStatisticsStore_AddDeltaAccumulates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	walletID := seedWallet(t, ctx, db, testWalletAddress)

	store := NewDailyStatisticsStore(db)

	require.NoError(t, store.AddDelta(ctx, &domain.DailyStatistics{
		WalletID:      walletID,
		Date:          "2026-08-30",
		ProfitLossXRD: dec("10"),
		ProfitLossUSD: dec("0.55"),
		VolumeXRD:     dec("100"),
		VolumeUSD:     dec("5.5"),
	}))
	require.NoError(t, store.AddDelta(ctx, &domain.DailyStatistics{
		WalletID:      walletID,
		Date:          "2026-08-30",
		ProfitLossXRD: dec("-2.5"),
		ProfitLossUSD: dec("-0.14"),
		VolumeXRD:     dec("50"),
		VolumeUSD:     dec("2.75"),
	}))

	rows, err := store.ListRecent(ctx, walletID, 30)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ProfitLossXRD.Equal(dec("7.5")))
	assert.True(t, rows[0].ProfitLossUSD.Equal(dec("0.41")))
	assert.True(t, rows[0].VolumeXRD.Equal(dec("150")))
	assert.True(t, rows[0].VolumeUSD.Equal(dec("8.25")))
}

func TestDailyStatisticsStore_ListRecentAndPrune(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	walletID := seedWallet(t, ctx, db, testWalletAddress)

	store := NewDailyStatisticsStore(db)
	for _, date := range []string{"2026-07-01", "2026-08-15", "2026-08-30"} {
		require.NoError(t, store.AddDelta(ctx, &domain.DailyStatistics{
			WalletID:  walletID,
			Date:      date,
			VolumeXRD: dec("1"),
		}))
	}

	rows, err := store.ListRecent(ctx, walletID, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-08-30", rows[0].Date)
	assert.Equal(t, "2026-08-15", rows[1].Date)

	n, err := store.PruneBefore(ctx, walletID, "2026-08-01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err = store.ListRecent(ctx, walletID, 30)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestDailyStatisticsStore_AddDeltaRequiresDate(t *testing.T) {
	db := setupTestDB(t)

	err := NewDailyStatisticsStore(db).AddDelta(context.Background(),
		&domain.DailyStatistics{WalletID: 1})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
