package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

func testHistoryEntry(tradeID string, ts int64) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		TradeID:         tradeID,
		WalletAddress:   testWalletAddress,
		Pair:            "DFP2/XRD",
		Side:            domain.SideBuy,
		AmountBase:      dec("500"),
		AmountQuote:     dec("100"),
		Price:           0.2,
		USDValue:        dec("5.5"),
		Timestamp:       ts,
		Status:          domain.StatusSuccess,
		StrategyName:    "rsi_flip",
		TransactionHash: "txid_h1",
	}
}

func TestHistoryStore_RecordAndQuery(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewHistoryStore(db)

	_, err := store.Record(ctx, testHistoryEntry("trade-1", 1700000000000))
	require.NoError(t, err)
	_, err = store.Record(ctx, testHistoryEntry("trade-1", 1700000100000))
	require.NoError(t, err)

	entries, err := store.Query(ctx, storage.HistoryFilter{WalletAddress: testWalletAddress})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1700000100000), entries[0].Timestamp, "newest first")
	assert.True(t, entries[0].AmountBase.Equal(dec("500")))
	assert.True(t, entries[0].USDValue.Equal(dec("5.5")))
	assert.Equal(t, domain.StatusSuccess, entries[0].Status)
}

func TestHistoryStore_QueryTimeWindowAndLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewHistoryStore(db)

	for _, ts := range []int64{1000, 2000, 3000, 4000} {
		_, err := store.Record(ctx, testHistoryEntry("trade-1", ts))
		require.NoError(t, err)
	}

	entries, err := store.Query(ctx, storage.HistoryFilter{StartTime: 2000, EndTime: 3000})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3000), entries[0].Timestamp)
	assert.Equal(t, int64(2000), entries[1].Timestamp)

	entries, err = store.Query(ctx, storage.HistoryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(4000), entries[0].Timestamp)
}

func TestHistoryStore_DeleteLatest(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewHistoryStore(db)

	err := store.DeleteLatest(ctx, "trade-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Record(ctx, testHistoryEntry("trade-1", 1000))
	require.NoError(t, err)
	_, err = store.Record(ctx, testHistoryEntry("trade-1", 2000))
	require.NoError(t, err)
	// Another trade's entries are untouched.
	_, err = store.Record(ctx, testHistoryEntry("trade-2", 3000))
	require.NoError(t, err)

	require.NoError(t, store.DeleteLatest(ctx, "trade-1"))

	entries, err := store.Query(ctx, storage.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "trade-2", entries[0].TradeID)
	assert.Equal(t, int64(1000), entries[1].Timestamp)
}

func TestHistoryStore_AnnotateLatest(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewHistoryStore(db)

	_, err := store.Record(ctx, testHistoryEntry("trade-1", 1000))
	require.NoError(t, err)
	_, err = store.Record(ctx, testHistoryEntry("trade-1", 2000))
	require.NoError(t, err)

	err = store.AnnotateLatest(ctx, "trade-1", domain.ProfitAnnotation{
		Display: "-2.50000000 XRD",
		USD:     dec("-0.14"),
		XRD:     dec("-2.5"),
	})
	require.NoError(t, err)

	entries, err := store.Query(ctx, storage.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Annotation)
	assert.Equal(t, "-2.50000000 XRD", entries[0].Annotation.Display)
	assert.True(t, entries[0].Annotation.XRD.Equal(dec("-2.5")))
	assert.Nil(t, entries[1].Annotation)
}
