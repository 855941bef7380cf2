package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
	"radbot-core/internal/storage/migrations"
)

// Test token addresses in the Radix bech32 shape.
const (
	testXRDAddress  = "resource_rdx1tknxxxxxxxxxradaborxxxxxxxxxxx007685388597"
	testDFP2Address = "resource_rdx1t5ywq4c6nd2lxkemkv4uzt8v7x7smjcguzq5sgafwtasa6luq7fclq"
)

// setupTestDB opens a fresh database under the test's temp dir and applies
// the embedded migrations. The file is removed with the temp dir.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "radbot_test.db")
	db, err := Open(path, storage.DefaultRetryPolicy())
	require.NoError(t, err, "failed to open sqlite database")
	t.Cleanup(func() { db.Close() })

	err = migrations.RunSQLiteMigrations(context.Background(), db.SQL)
	require.NoError(t, err, "failed to run migrations")

	return db
}

// seedWallet registers a wallet and returns its id.
func seedWallet(t *testing.T, ctx context.Context, db *DB, address string) int64 {
	t.Helper()

	id, err := NewWalletDirectory(db).Register(ctx, address, "test wallet")
	require.NoError(t, err)
	return id
}

// seedPair registers a DFP2/XRD pair and returns its id.
func seedPair(t *testing.T, ctx context.Context, db *DB) int64 {
	t.Helper()

	id, err := NewPairDirectory(db).Register(ctx, &domain.TradePair{
		BaseTokenAddress:  testDFP2Address,
		BaseTokenSymbol:   "DFP2",
		QuoteTokenAddress: testXRDAddress,
		QuoteTokenSymbol:  "XRD",
	})
	require.NoError(t, err)
	return id
}

// createTestTrade builds an unsaved trade accumulating XRD from a 100 XRD stake.
func createTestTrade(pairID int64, walletAddress string) *domain.Trade {
	return &domain.Trade{
		TradePairID:              pairID,
		WalletAddress:            walletAddress,
		StartTokenAddress:        testXRDAddress,
		StartTokenSymbol:         "XRD",
		StartAmount:              decimal.NewFromInt(100),
		StrategyName:             "rsi_flip",
		AccumulationTokenAddress: testXRDAddress,
		AccumulationTokenSymbol:  "XRD",
		IndicatorSettings:        `{"rsi_period":14}`,
		IsActive:                 true,
		TradeTokenAddress:        testXRDAddress,
		TradeTokenSymbol:         "XRD",
		TradeAmount:              decimal.NewFromInt(100),
	}
}

// dec is a shorthand for decimal literals in tests.
func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
