package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Trade represents one actively managed flipping position: a stake rotated
// back and forth between the base and quote token of a trading pair, with
// realized profit measured each time the position returns to a denomination
// comparable to the original stake.
// Corresponds to the trades table.
type Trade struct {
	TradeID       string // ULID, immutable
	TradePairID   int64  // FK to trade_pairs
	WalletAddress string // owning wallet

	// Configuration, immutable after creation.
	StartTokenAddress        string
	StartTokenSymbol         string
	StartAmount              decimal.Decimal
	StrategyName             string
	IsCompounding            bool
	AccumulationTokenAddress string // token the user wants to grow
	AccumulationTokenSymbol  string
	IndicatorSettings        string // opaque JSON, owned by the GUI
	PoolAddress              string

	// Mutable state.
	IsActive            bool
	CurrentSignal       string
	LastSignalUpdatedAt int64
	TradeTokenAddress   string // token currently held
	TradeTokenSymbol    string
	TradeAmount         decimal.Decimal // amount currently held
	TimesFlipped        float64         // +0.5 per executed leg
	ProfitableFlips     int             // completed cycles that made profit
	UnprofitableFlips   int
	TotalProfit         decimal.Decimal // cumulative, accumulation-token units
	TradeVolume         decimal.Decimal // cumulative, XRD units
	ReservedAmount      decimal.Decimal // capital held back from position sizing

	CreatedAt int64 // unix seconds
	UpdatedAt int64 // unix seconds
}

// Signal values for Trade.CurrentSignal.
const (
	SignalHold    = "hold"
	SignalExecute = "execute"
)

// SameToken reports whether the starting token is also the accumulation
// token. Profit for such trades is measurable at whole flip counts; trades
// accumulating the opposite token need an extra half leg before the
// denominations line up again.
func (t *Trade) SameToken() bool {
	return t.StartTokenAddress == t.AccumulationTokenAddress
}

// CompletedCycles returns the number of round trips measured for profit.
func (t *Trade) CompletedCycles() int {
	return t.ProfitableFlips + t.UnprofitableFlips
}

// WinRatio formats the trade's per-cycle win rate, or "N/A" before the
// first completed cycle.
func (t *Trade) WinRatio() string {
	total := t.CompletedCycles()
	if total == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", float64(t.ProfitableFlips)/float64(total)*100)
}
