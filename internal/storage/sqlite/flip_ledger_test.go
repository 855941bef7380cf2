package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

func seedTrade(t *testing.T, ctx context.Context, db *DB) string {
	t.Helper()

	seedWallet(t, ctx, db, testWalletAddress)
	pairID := seedPair(t, ctx, db)
	id, err := NewTradeStore(db).Create(ctx, createTestTrade(pairID, testWalletAddress))
	require.NoError(t, err)
	return id
}

func testLeg(tradeID, txID string, ts int64) *domain.FlipLeg {
	return &domain.FlipLeg{
		TradeID:         tradeID,
		Timestamp:       ts,
		Side:            domain.SideBuy,
		AmountIn:        dec("100"),
		TokenInAddress:  testXRDAddress,
		AmountOut:       dec("500"),
		TokenOutAddress: testDFP2Address,
		Price:           0.2,
		TransactionID:   txID,
	}
}

func TestFlipLedger_AppendAndByTrade(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tradeID := seedTrade(t, ctx, db)

	ledger := NewFlipLedger(db)

	for i := 0; i < 3; i++ {
		id, err := ledger.Append(ctx, testLeg(tradeID, fmt.Sprintf("txid_%d", i), int64(1700000000000+i)))
		require.NoError(t, err)
		assert.Positive(t, id)
	}

	legs, err := ledger.ByTrade(ctx, tradeID)
	require.NoError(t, err)
	require.Len(t, legs, 3)

	// Insertion order, amounts round-trip exactly.
	assert.Equal(t, "txid_0", legs[0].TransactionID)
	assert.Equal(t, "txid_2", legs[2].TransactionID)
	assert.True(t, legs[0].AmountIn.Equal(dec("100")))
	assert.True(t, legs[0].AmountOut.Equal(dec("500")))
	assert.Nil(t, legs[0].Annotation)
}

func TestFlipLedger_DuplicateTransactionID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tradeID := seedTrade(t, ctx, db)

	ledger := NewFlipLedger(db)

	_, err := ledger.Append(ctx, testLeg(tradeID, "txid_dup", 1700000000000))
	require.NoError(t, err)

	_, err = ledger.Append(ctx, testLeg(tradeID, "txid_dup", 1700000001000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Legs without a transaction id never collide.
	_, err = ledger.Append(ctx, testLeg(tradeID, "", 1700000002000))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, testLeg(tradeID, "", 1700000003000))
	require.NoError(t, err)
}

func TestFlipLedger_InvalidSide(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tradeID := seedTrade(t, ctx, db)

	leg := testLeg(tradeID, "txid_side", 1700000000000)
	leg.Side = "LONG"

	_, err := NewFlipLedger(db).Append(ctx, leg)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestFlipLedger_Recent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tradeID := seedTrade(t, ctx, db)

	ledger := NewFlipLedger(db)
	for i := 0; i < 5; i++ {
		_, err := ledger.Append(ctx, testLeg(tradeID, fmt.Sprintf("txid_r%d", i), int64(1700000000000+i)))
		require.NoError(t, err)
	}

	recent, err := ledger.Recent(ctx, tradeID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "txid_r4", recent[0].TransactionID)
	assert.Equal(t, "txid_r3", recent[1].TransactionID)
}

func TestFlipLedger_AnnotateLatest(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tradeID := seedTrade(t, ctx, db)

	ledger := NewFlipLedger(db)

	err := ledger.AnnotateLatest(ctx, tradeID, domain.ProfitAnnotation{Display: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound, "no legs yet")

	_, err = ledger.Append(ctx, testLeg(tradeID, "txid_a0", 1700000000000))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, testLeg(tradeID, "txid_a1", 1700000001000))
	require.NoError(t, err)

	err = ledger.AnnotateLatest(ctx, tradeID, domain.ProfitAnnotation{
		Display: "10.00000000 XRD",
		USD:     dec("0.55"),
		XRD:     dec("10"),
	})
	require.NoError(t, err)

	legs, err := ledger.ByTrade(ctx, tradeID)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Nil(t, legs[0].Annotation, "only the latest leg is annotated")
	require.NotNil(t, legs[1].Annotation)
	assert.Equal(t, "10.00000000 XRD", legs[1].Annotation.Display)
	assert.True(t, legs[1].Annotation.XRD.Equal(dec("10")))
	assert.True(t, legs[1].Annotation.USD.Equal(dec("0.55")))
}
