package reconcile

import (
	"context"

	"github.com/shopspring/decimal"

	"radbot-core/internal/domain"
)

// ConversionTier tags which price source produced the converted figures, so
// callers and tests can tell a live conversion from a degraded one.
type ConversionTier string

const (
	// TierDirect: live prices covered both denominations.
	TierDirect ConversionTier = "converted"
	// TierSecondaryPrice: XRD figure exact (accumulating XRD), USD taken
	// from the stored USD delta of the two legs because no USD price exists.
	TierSecondaryPrice ConversionTier = "fallback_secondary_price"
	// TierHistoricalDelta: no usable price; USD from the stored leg delta,
	// XRD implied from the closing leg's own USD-per-XRD rate.
	TierHistoricalDelta ConversionTier = "fallback_historical_delta"
	// TierUnavailable: no price and no way to imply a rate; the XRD figure
	// is recorded as zero.
	TierUnavailable ConversionTier = "unavailable"
)

// conversion is a profit expressed in the two reporting denominations.
type conversion struct {
	XRD  decimal.Decimal
	USD  decimal.Decimal
	Tier ConversionTier
}

// convertProfit turns a profit in accumulation-token units into XRD and USD
// figures, degrading tier by tier as price data is missing. usdDelta is the
// difference of the two legs' stored USD values; hasDelta reports whether
// both legs actually carried one.
func (e *Engine) convertProfit(
	ctx context.Context,
	accumulationToken string,
	profit decimal.Decimal,
	pair *domain.TradePair,
	closingLeg *domain.FlipLeg,
	closingUSD decimal.Decimal,
	usdDelta decimal.Decimal,
	hasDelta bool,
) conversion {
	if accumulationToken == e.native {
		// Profit is already denominated in XRD.
		if p, err := e.oracle.TokenPrice(ctx, e.native); err == nil && p.HasUSD() {
			return conversion{XRD: profit, USD: profit.Mul(p.USDPrice), Tier: TierDirect}
		}
		if hasDelta {
			return conversion{XRD: profit, USD: usdDelta, Tier: TierSecondaryPrice}
		}
		return conversion{XRD: profit, Tier: TierSecondaryPrice}
	}

	if p, err := e.oracle.TokenPrice(ctx, accumulationToken); err == nil && p.HasNative() && p.HasUSD() {
		return conversion{
			XRD:  profit.Mul(p.NativePrice),
			USD:  profit.Mul(p.USDPrice),
			Tier: TierDirect,
		}
	}

	// No usable price. USD falls back to the stored leg delta; XRD can only
	// be implied when the quote side of the pair is XRD, using the closing
	// leg's own USD-per-XRD rate.
	out := conversion{Tier: TierUnavailable}
	if hasDelta {
		out.USD = usdDelta
		if pair != nil && pair.QuoteTokenAddress == e.native {
			quoteAmt := closingLeg.QuoteAmount(pair)
			if quoteAmt.IsPositive() && closingUSD.IsPositive() {
				impliedRate := closingUSD.Div(quoteAmt) // USD per XRD
				out.XRD = usdDelta.Div(impliedRate)
				out.Tier = TierHistoricalDelta
			}
		}
	}
	return out
}
