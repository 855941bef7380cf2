package domain

import "github.com/shopspring/decimal"

// HistoryEntry is a wallet-scoped, denormalized record of an executed swap,
// kept independently of the flip ledger for reporting and export.
// Corresponds to the trade_history table.
type HistoryEntry struct {
	HistoryID       int64
	TradeID         string // originating trade
	WalletAddress   string
	Pair            string // display label, e.g. "DFP2/XRD"
	Side            string // "BUY" | "SELL"
	AmountBase      decimal.Decimal
	AmountQuote     decimal.Decimal
	Price           float64
	USDValue        decimal.Decimal
	Timestamp       int64 // unix milliseconds
	Status          string
	StrategyName    string
	TransactionHash string
	CreatedAt       int64 // unix seconds

	Annotation *ProfitAnnotation // nil until the cycle is measured
}

// Execution status constants for HistoryEntry.Status.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)
