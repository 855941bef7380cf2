package domain

import "github.com/shopspring/decimal"

// WalletStatistics is the per-wallet rollup of completed flip cycles. It is
// written exclusively by the statistics aggregator.
// Corresponds to the statistics table.
type WalletStatistics struct {
	WalletID int64

	TotalTradesCreated int
	TotalTradesDeleted int

	WinningTrades int
	LosingTrades  int

	CurrentWinningStreak int
	CurrentLosingStreak  int
	LongestWinningStreak int
	LongestLosingStreak  int

	// Net profit/loss in USD across all completed cycles.
	TotalProfitLossUSD decimal.Decimal
	// Gross totals, split by direction and denomination. Losses are stored
	// as positive magnitudes.
	TotalProfitUSD decimal.Decimal
	TotalLossUSD   decimal.Decimal
	TotalProfitXRD decimal.Decimal
	TotalLossXRD   decimal.Decimal

	WinRatePercentage float64
	// Gross USD profit divided by completed cycles.
	AverageProfitPerTrade decimal.Decimal

	LastCalculated int64 // unix seconds
}

// CompletedCycles returns the total number of measured cycles.
func (s *WalletStatistics) CompletedCycles() int {
	return s.WinningTrades + s.LosingTrades
}

// DailyStatistics is one (wallet, calendar day) rollup used for charting.
// Rows older than the retention window are pruned opportunistically.
// Corresponds to the daily_statistics table.
type DailyStatistics struct {
	WalletID      int64
	Date          string // "YYYY-MM-DD"
	ProfitLossXRD decimal.Decimal
	ProfitLossUSD decimal.Decimal
	VolumeXRD     decimal.Decimal
	VolumeUSD     decimal.Decimal
	CreatedAt     int64
	UpdatedAt     int64
}
