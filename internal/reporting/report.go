package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is the wallet performance report structure.
type Report struct {
	// Metadata
	GeneratedAt   time.Time
	WalletAddress string
	WindowDays    int

	// Lifetime totals
	Summary SummarySection

	// Per-day rollups inside the window, newest first.
	Daily []DailyRow

	// Most recent executions, newest first.
	RecentExecutions []ExecutionRow
}

// SummarySection contains the lifetime statistics of one wallet.
type SummarySection struct {
	TradesCreated int
	TradesDeleted int

	CompletedCycles int
	WinningTrades   int
	LosingTrades    int
	WinRatePercent  float64

	CurrentWinningStreak int
	CurrentLosingStreak  int
	LongestWinningStreak int
	LongestLosingStreak  int

	NetProfitLossUSD      decimal.Decimal
	TotalProfitUSD        decimal.Decimal
	TotalLossUSD          decimal.Decimal
	TotalProfitXRD        decimal.Decimal
	TotalLossXRD          decimal.Decimal
	AverageProfitPerTrade decimal.Decimal

	LastCalculated int64 // unix seconds, zero when never calculated
}

// DailyRow represents one calendar day in the daily table.
type DailyRow struct {
	Date          string // "YYYY-MM-DD"
	ProfitLossXRD decimal.Decimal
	ProfitLossUSD decimal.Decimal
	VolumeXRD     decimal.Decimal
	VolumeUSD     decimal.Decimal
}

// ExecutionRow represents one executed leg in the history table.
type ExecutionRow struct {
	Timestamp int64 // unix milliseconds
	Pair      string
	Side      string
	Status    string
	Strategy  string
	USDValue  decimal.Decimal
	Profit    string // display string, empty until the cycle is measured
}
