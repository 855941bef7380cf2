package domain

import "github.com/shopspring/decimal"

// FlipLeg is one atomic executed swap leg belonging to a trade. Legs are
// append-only: core fields never change after insert, only the profit
// annotation is filled in retroactively once a cycle completes.
// Corresponds to the trade_flips table.
type FlipLeg struct {
	LedgerID        int64  // assigned by the ledger on append
	TradeID         string // owning trade
	Timestamp       int64  // event occurrence time, unix milliseconds
	Side            string // "BUY" | "SELL"
	AmountIn        decimal.Decimal
	TokenInAddress  string
	AmountOut       decimal.Decimal
	TokenOutAddress string
	Price           float64
	TransactionID   string // on-ledger intent hash, unique when present

	Annotation *ProfitAnnotation // nil until the cycle is measured
}

// Leg side constants.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// ProfitAnnotation carries the realized-profit figures attached to the
// closing leg of a measured cycle.
type ProfitAnnotation struct {
	Display string          // e.g. "10.00000000 XRD"
	USD     decimal.Decimal
	XRD     decimal.Decimal
}

// BaseAmount returns the leg's amount on the pair's base-token side,
// regardless of direction. Zero if neither side matches the pair.
func (f *FlipLeg) BaseAmount(pair *TradePair) decimal.Decimal {
	switch pair.BaseTokenAddress {
	case f.TokenInAddress:
		return f.AmountIn
	case f.TokenOutAddress:
		return f.AmountOut
	}
	return decimal.Zero
}

// QuoteAmount returns the leg's amount on the pair's quote-token side,
// regardless of direction. Zero if neither side matches the pair.
func (f *FlipLeg) QuoteAmount(pair *TradePair) decimal.Decimal {
	switch pair.QuoteTokenAddress {
	case f.TokenInAddress:
		return f.AmountIn
	case f.TokenOutAddress:
		return f.AmountOut
	}
	return decimal.Zero
}
