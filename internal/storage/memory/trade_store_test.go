package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

const (
	testWalletAddress = "account_rdx128y6j78mt0aqv6372evz28hrxp8mn06ccddkr7xppc88hyvynvjdwr"
	testXRDAddress    = "resource_rdx1tknxxxxxxxxxradaborxxxxxxxxxxx007685388597"
	testDFP2Address   = "resource_rdx1t5ywq4c6nd2lxkemkv4uzt8v7x7smjcguzq5sgafwtasa6luq7fclq"
)

func setupBackend(t *testing.T) (*Backend, int64, int64) {
	t.Helper()

	ctx := context.Background()
	b := NewBackend()
	walletID, err := b.RegisterWallet(ctx, testWalletAddress, "test")
	require.NoError(t, err)
	pairID, err := b.RegisterPair(ctx, &domain.TradePair{
		BaseTokenAddress:  testDFP2Address,
		BaseTokenSymbol:   "DFP2",
		QuoteTokenAddress: testXRDAddress,
		QuoteTokenSymbol:  "XRD",
	})
	require.NoError(t, err)
	return b, walletID, pairID
}

func newTestTrade(pairID int64) *domain.Trade {
	return &domain.Trade{
		TradePairID:              pairID,
		WalletAddress:            testWalletAddress,
		StartTokenAddress:        testXRDAddress,
		StartTokenSymbol:         "XRD",
		StartAmount:              decimal.NewFromInt(100),
		StrategyName:             "rsi_flip",
		AccumulationTokenAddress: testXRDAddress,
		AccumulationTokenSymbol:  "XRD",
		IsActive:                 true,
		TradeTokenAddress:        testXRDAddress,
		TradeTokenSymbol:         "XRD",
		TradeAmount:              decimal.NewFromInt(100),
	}
}

func TestTradeStore_CreateGetUpdate(t *testing.T) {
	b, walletID, pairID := setupBackend(t)
	ctx := context.Background()
	store := NewTradeStore(b)

	id, err := store.Create(ctx, newTestTrade(pairID))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalHold, got.CurrentSignal)

	amount := decimal.RequireFromString("55.5")
	require.NoError(t, store.Update(ctx, id, storage.TradeUpdate{TradeAmount: &amount}))

	got, err = store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.TradeAmount.Equal(amount))
	assert.True(t, got.StartAmount.Equal(decimal.NewFromInt(100)))

	// The stored trade is not aliased by what Create was handed.
	stats, err := NewStatisticsStore(b).Get(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTradesCreated)
}

func TestTradeStore_CreateRequiresRegisteredWallet(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()
	pairID, err := b.RegisterPair(ctx, &domain.TradePair{
		BaseTokenAddress:  testDFP2Address,
		QuoteTokenAddress: testXRDAddress,
	})
	require.NoError(t, err)

	_, err = NewTradeStore(b).Create(ctx, newTestTrade(pairID))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTradeStore_DeleteCascades(t *testing.T) {
	b, walletID, pairID := setupBackend(t)
	ctx := context.Background()
	store := NewTradeStore(b)
	ledger := NewFlipLedger(b)

	id, err := store.Create(ctx, newTestTrade(pairID))
	require.NoError(t, err)

	_, err = ledger.Append(ctx, &domain.FlipLeg{
		TradeID:         id,
		Side:            domain.SideBuy,
		AmountIn:        decimal.NewFromInt(100),
		TokenInAddress:  testXRDAddress,
		AmountOut:       decimal.NewFromInt(500),
		TokenOutAddress: testDFP2Address,
	})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	legs, err := ledger.ByTrade(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, legs)

	stats, err := NewStatisticsStore(b).Get(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTradesDeleted)
}

func TestFlipLedger_DuplicateTransactionID(t *testing.T) {
	b, _, _ := setupBackend(t)
	ctx := context.Background()
	ledger := NewFlipLedger(b)

	leg := func(txID string) *domain.FlipLeg {
		return &domain.FlipLeg{
			TradeID:         "trade-1",
			Side:            domain.SideSell,
			AmountIn:        decimal.NewFromInt(500),
			TokenInAddress:  testDFP2Address,
			AmountOut:       decimal.NewFromInt(100),
			TokenOutAddress: testXRDAddress,
			TransactionID:   txID,
		}
	}

	_, err := ledger.Append(ctx, leg("tx1"))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, leg("tx1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	_, err = ledger.Append(ctx, leg(""))
	require.NoError(t, err)
}

func TestDailyStatisticsStore_Accumulates(t *testing.T) {
	b, walletID, _ := setupBackend(t)
	ctx := context.Background()
	store := NewDailyStatisticsStore(b)

	for i := 0; i < 2; i++ {
		require.NoError(t, store.AddDelta(ctx, &domain.DailyStatistics{
			WalletID:      walletID,
			Date:          "2026-08-30",
			ProfitLossXRD: decimal.NewFromInt(5),
			VolumeXRD:     decimal.NewFromInt(50),
		}))
	}

	rows, err := store.ListRecent(ctx, walletID, 30)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ProfitLossXRD.Equal(decimal.NewFromInt(10)))
	assert.True(t, rows[0].VolumeXRD.Equal(decimal.NewFromInt(100)))
}
