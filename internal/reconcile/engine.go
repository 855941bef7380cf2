// Package reconcile implements the profit reconciliation engine: given an
// executed swap leg, it appends the ledger and history records, advances the
// trade's position state, and — when a measurable round trip just completed —
// computes realized profit, converts it, and propagates wallet statistics.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"radbot-core/internal/domain"
	"radbot-core/internal/observability"
	"radbot-core/internal/pricing"
	"radbot-core/internal/stats"
	"radbot-core/internal/storage"
)

// profitEpsilon guards against binary float noise accumulated upstream:
// anything at or below it counts as unprofitable.
var profitEpsilon = decimal.NewFromFloat(1e-8)

// Deps wires the engine's collaborators.
type Deps struct {
	DB         storage.TxRunner
	Trades     storage.TradeStore
	Ledger     storage.FlipLedger
	History    storage.HistoryStore
	Pairs      storage.PairDirectory
	Wallets    storage.WalletDirectory
	Aggregator *stats.Aggregator
	Oracle     pricing.Oracle

	// NativeTokenAddress overrides the mainnet XRD address, for tests
	// against other networks. Empty selects mainnet.
	NativeTokenAddress string
	Metrics            *observability.Metrics
}

// Engine is the profit reconciliation engine. All mutating work for one
// trade runs under that trade's own critical section and inside a single
// storage transaction, so two interleaved executions can never both read
// the same pre-flip state and double count a cycle.
type Engine struct {
	db      storage.TxRunner
	trades  storage.TradeStore
	ledger  storage.FlipLedger
	history storage.HistoryStore
	pairs   storage.PairDirectory
	wallets storage.WalletDirectory
	agg     *stats.Aggregator
	oracle  pricing.Oracle
	native  string
	metrics *observability.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an engine over the given dependencies.
func NewEngine(d Deps) *Engine {
	native := d.NativeTokenAddress
	if native == "" {
		native = pricing.XRDAddress
	}
	metrics := d.Metrics
	if metrics == nil {
		metrics = observability.Default()
	}
	return &Engine{
		db:      d.DB,
		trades:  d.Trades,
		ledger:  d.Ledger,
		history: d.History,
		pairs:   d.Pairs,
		wallets: d.Wallets,
		agg:     d.Aggregator,
		oracle:  d.Oracle,
		native:  native,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

// CycleOutcome reports what one recorded execution did.
type CycleOutcome struct {
	TimesFlipped float64

	// Measured is true when this leg completed a measurable round trip and
	// the fields below are meaningful.
	Measured   bool
	Profit     decimal.Decimal // accumulation-token units
	ProfitXRD  decimal.Decimal
	ProfitUSD  decimal.Decimal
	Profitable bool
	Tier       ConversionTier
	Display    string
}

// lockFor returns the mutex serializing work for one trade id.
func (e *Engine) lockFor(tradeID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, exists := e.locks[tradeID]
	if !exists {
		l = &sync.Mutex{}
		e.locks[tradeID] = l
	}
	return l
}

// RecordExecution records one executed swap leg against a trade: ledger
// append, history row, position update, and — if the new flip count is
// eligible — profit reconciliation and statistics propagation, all in one
// storage transaction.
//
// A missing trade is a logged no-op (the swap already happened; bookkeeping
// must not pretend otherwise). A duplicate transaction id returns
// storage.ErrDuplicateKey without touching anything.
func (e *Engine) RecordExecution(ctx context.Context, tradeID string, leg *domain.FlipLeg) (*CycleOutcome, error) {
	l := e.lockFor(tradeID)
	l.Lock()
	defer l.Unlock()

	var out *CycleOutcome
	err := e.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = e.recordExecutionTx(ctx, tradeID, leg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) recordExecutionTx(ctx context.Context, tradeID string, leg *domain.FlipLeg) (*CycleOutcome, error) {
	t, err := e.trades.GetByID(ctx, tradeID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("reconcile: trade %s not found, skipping execution record", tradeID)
		e.metrics.ReconcileSkips.WithLabelValues("missing_trade").Inc()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	leg.TradeID = tradeID
	if leg.Timestamp == 0 {
		leg.Timestamp = time.Now().UnixMilli()
	}
	if _, err := e.ledger.Append(ctx, leg); err != nil {
		return nil, fmt.Errorf("append execution leg: %w", err)
	}
	e.metrics.LegsAppended.Inc()

	pair, err := e.pairs.Get(ctx, t.TradePairID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("reconcile: trade %s references unknown pair %d, reconciliation skipped", tradeID, t.TradePairID)
		e.metrics.ReconcileSkips.WithLabelValues("missing_pair").Inc()
		pair = nil
	} else if err != nil {
		return nil, err
	}

	volumeXRD := e.legVolumeXRD(ctx, leg)
	entry := e.historyEntry(ctx, t, pair, leg, volumeXRD)
	if _, err := e.history.Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("record execution history: %w", err)
	}

	newFlipped := t.TimesFlipped + 0.5
	out := &CycleOutcome{TimesFlipped: newFlipped}

	if pair != nil && cycleEligible(t.SameToken(), newFlipped) {
		if err := e.measureCycle(ctx, t, pair, out); err != nil {
			return nil, err
		}
	}

	if err := e.applyExecution(ctx, t, leg, pair, newFlipped, volumeXRD, out); err != nil {
		return nil, err
	}

	if err := e.propagateStatistics(ctx, t, out, volumeXRD, entry.USDValue); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordFailure records a FAILED history row for a rejected execution. No
// ledger leg is appended and no statistics move; the rollback coordinator
// handles restoring the trade's position state.
func (e *Engine) RecordFailure(ctx context.Context, tradeID string, leg *domain.FlipLeg) error {
	t, err := e.trades.GetByID(ctx, tradeID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("reconcile: trade %s not found, skipping failure record", tradeID)
		return nil
	}
	if err != nil {
		return err
	}

	pair, err := e.pairs.Get(ctx, t.TradePairID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("reconcile: trade %s references unknown pair %d, failure recorded without pair labels", tradeID, t.TradePairID)
		e.metrics.ReconcileSkips.WithLabelValues("missing_pair").Inc()
		pair = nil
	} else if err != nil {
		return err
	}

	entry := e.historyEntry(ctx, t, pair, leg, decimal.Zero)
	entry.Status = domain.StatusFailed
	if _, err := e.history.Record(ctx, entry); err != nil {
		return fmt.Errorf("record failed execution: %w", err)
	}
	e.metrics.ExecutionsFailed.Inc()
	return nil
}

// cycleEligible reports whether a trade at the given flip count has a
// measurable round trip. Trades whose starting token is the accumulation
// token measure at whole counts; everything else needs the extra half leg
// before the denominations line up.
func cycleEligible(sameToken bool, timesFlipped float64) bool {
	if sameToken {
		return timesFlipped >= 1.0 && timesFlipped == math.Trunc(timesFlipped)
	}
	return timesFlipped >= 1.5 && math.Mod(timesFlipped, 1.0) == 0.5
}

// cycleProfit computes realized profit in accumulation-token units from the
// closing and opening legs of a round trip. Orientation follows the closing
// leg's direction: a closing BUY means base was just received, so base-side
// profit is received-now minus given-before; the quote side mirrors with
// SELL. The second return is false when the accumulation token matches
// neither side of the pair.
func cycleProfit(accumulationToken string, pair *domain.TradePair, closing, opening *domain.FlipLeg) (decimal.Decimal, bool) {
	switch accumulationToken {
	case pair.BaseTokenAddress:
		if closing.Side == domain.SideBuy {
			return closing.BaseAmount(pair).Sub(opening.BaseAmount(pair)), true
		}
		return opening.BaseAmount(pair).Sub(closing.BaseAmount(pair)), true
	case pair.QuoteTokenAddress:
		if closing.Side == domain.SideSell {
			return closing.QuoteAmount(pair).Sub(opening.QuoteAmount(pair)), true
		}
		return opening.QuoteAmount(pair).Sub(closing.QuoteAmount(pair)), true
	}
	return decimal.Zero, false
}

// measureCycle computes and converts the realized profit of the round trip
// that just completed and annotates the closing ledger and history rows.
// The trade's own counters are folded into the position update later so the
// whole execution commits as one write.
func (e *Engine) measureCycle(ctx context.Context, t *domain.Trade, pair *domain.TradePair, out *CycleOutcome) error {
	legs, err := e.ledger.Recent(ctx, t.TradeID, 2)
	if err != nil {
		return fmt.Errorf("read cycle legs: %w", err)
	}
	if len(legs) < 2 {
		log.Printf("reconcile: trade %s eligible at %.1f flips but has %d ledger legs, skipping",
			t.TradeID, out.TimesFlipped, len(legs))
		return nil
	}
	closing, opening := legs[0], legs[1]

	profit, matched := cycleProfit(t.AccumulationTokenAddress, pair, closing, opening)
	if !matched {
		log.Printf("reconcile: trade %s accumulation token %s matches neither side of pair %s, recording zero profit",
			t.TradeID, t.AccumulationTokenAddress, pair.Label())
		e.metrics.ReconcileSkips.WithLabelValues("token_mismatch").Inc()
	}

	closingUSD, usdDelta, hasDelta := e.storedUSDDelta(ctx, t.TradeID)
	conv := e.convertProfit(ctx, t.AccumulationTokenAddress, profit, pair, closing, closingUSD, usdDelta, hasDelta)

	out.Measured = true
	out.Profit = profit
	out.ProfitXRD = conv.XRD
	out.ProfitUSD = conv.USD
	out.Profitable = profit.GreaterThan(profitEpsilon)
	out.Tier = conv.Tier
	out.Display = fmt.Sprintf("%s %s", profit.StringFixed(8), t.AccumulationTokenSymbol)
	e.metrics.ConversionTiers.WithLabelValues(string(conv.Tier)).Inc()

	ann := domain.ProfitAnnotation{Display: out.Display, USD: conv.USD, XRD: conv.XRD}
	if err := e.ledger.AnnotateLatest(ctx, t.TradeID, ann); err != nil {
		return fmt.Errorf("annotate ledger: %w", err)
	}
	if err := e.history.AnnotateLatest(ctx, t.TradeID, ann); err != nil {
		return fmt.Errorf("annotate history: %w", err)
	}
	return nil
}

// storedUSDDelta returns the closing leg's stored USD value and the
// difference between the two most recent stored USD values. hasDelta is
// false unless both rows carry a positive USD value.
func (e *Engine) storedUSDDelta(ctx context.Context, tradeID string) (closingUSD, delta decimal.Decimal, hasDelta bool) {
	entries, err := e.history.Recent(ctx, tradeID, 2)
	if err != nil || len(entries) < 2 {
		return decimal.Zero, decimal.Zero, false
	}
	closingUSD = entries[0].USDValue
	if !entries[0].USDValue.IsPositive() || !entries[1].USDValue.IsPositive() {
		return closingUSD, decimal.Zero, false
	}
	return closingUSD, entries[0].USDValue.Sub(entries[1].USDValue), true
}

// applyExecution advances the trade's position state for the recorded leg:
// held token and amount, flip count, cumulative volume and profit counters,
// reserved-amount recovery, and signal neutralization.
func (e *Engine) applyExecution(ctx context.Context, t *domain.Trade, leg *domain.FlipLeg, pair *domain.TradePair, newFlipped float64, volumeXRD decimal.Decimal, out *CycleOutcome) error {
	heldToken := leg.TokenOutAddress
	heldSymbol := tokenSymbol(pair, heldToken, t)
	heldAmount := leg.AmountOut
	reserved := t.ReservedAmount

	// A reserve held back from position sizing folds back into the position
	// once the trade returns to the token it was carved out of.
	if reserved.IsPositive() && heldToken == t.StartTokenAddress {
		heldAmount = heldAmount.Add(reserved)
		reserved = decimal.Zero
	}

	// Non-compounding trades never re-stake profit: back on the start token
	// the position is capped at the original stake, excess stays in the
	// wallet untouched.
	if !t.IsCompounding && t.SameToken() && heldToken == t.StartTokenAddress &&
		heldAmount.GreaterThan(t.StartAmount) {
		heldAmount = t.StartAmount
	}

	newVolume := t.TradeVolume.Add(volumeXRD)
	hold := domain.SignalHold
	now := time.Now().Unix()

	u := storage.TradeUpdate{
		TradeTokenAddress:   &heldToken,
		TradeTokenSymbol:    &heldSymbol,
		TradeAmount:         &heldAmount,
		TimesFlipped:        &newFlipped,
		TradeVolume:         &newVolume,
		ReservedAmount:      &reserved,
		CurrentSignal:       &hold,
		LastSignalUpdatedAt: &now,
	}
	if out.Measured {
		pf, uf := t.ProfitableFlips, t.UnprofitableFlips
		if out.Profitable {
			pf++
		} else {
			uf++
		}
		total := t.TotalProfit.Add(out.Profit)
		u.ProfitableFlips = &pf
		u.UnprofitableFlips = &uf
		u.TotalProfit = &total
	}

	if err := e.trades.Update(ctx, t.TradeID, u); err != nil {
		return fmt.Errorf("apply execution to trade %s: %w", t.TradeID, err)
	}
	return nil
}

// propagateStatistics routes a measured cycle to the wallet-level
// aggregator. Half-cycle legs leave the wallet statistics and the daily
// rollups alone; only the closing leg's volume counts toward the day. An
// unmapped wallet address degrades to a logged no-op.
func (e *Engine) propagateStatistics(ctx context.Context, t *domain.Trade, out *CycleOutcome, volumeXRD, volumeUSD decimal.Decimal) error {
	if !out.Measured {
		return nil
	}

	walletID, err := e.wallets.IDByAddress(ctx, t.WalletAddress)
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("reconcile: wallet %s has no id mapping, statistics skipped", t.WalletAddress)
		e.metrics.ReconcileSkips.WithLabelValues("missing_wallet").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	if err := e.agg.RecordFlip(ctx, walletID, out.ProfitXRD, out.ProfitUSD, out.Profitable); err != nil {
		return err
	}
	return e.agg.RecordDaily(ctx, walletID, out.ProfitXRD, out.ProfitUSD, volumeXRD, volumeUSD)
}

// legVolumeXRD expresses the leg's traded size in XRD. When neither side of
// the swap is XRD the sold token's XRD price converts it; with no price the
// volume contribution is zero.
func (e *Engine) legVolumeXRD(ctx context.Context, leg *domain.FlipLeg) decimal.Decimal {
	if leg.TokenInAddress == e.native {
		return leg.AmountIn
	}
	if leg.TokenOutAddress == e.native {
		return leg.AmountOut
	}
	if p, err := e.oracle.TokenPrice(ctx, leg.TokenInAddress); err == nil && p.HasNative() {
		return leg.AmountIn.Mul(p.NativePrice)
	}
	if p, err := e.oracle.TokenPrice(ctx, leg.TokenOutAddress); err == nil && p.HasNative() {
		return leg.AmountOut.Mul(p.NativePrice)
	}
	return decimal.Zero
}

// historyEntry builds the denormalized history row for a leg.
func (e *Engine) historyEntry(ctx context.Context, t *domain.Trade, pair *domain.TradePair, leg *domain.FlipLeg, volumeXRD decimal.Decimal) *domain.HistoryEntry {
	entry := &domain.HistoryEntry{
		TradeID:         t.TradeID,
		WalletAddress:   t.WalletAddress,
		Side:            leg.Side,
		Price:           leg.Price,
		Timestamp:       leg.Timestamp,
		Status:          domain.StatusSuccess,
		StrategyName:    t.StrategyName,
		TransactionHash: leg.TransactionID,
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}
	if pair != nil {
		entry.Pair = pair.Label()
		entry.AmountBase = leg.BaseAmount(pair)
		entry.AmountQuote = leg.QuoteAmount(pair)
	} else {
		entry.AmountBase = leg.AmountOut
		entry.AmountQuote = leg.AmountIn
	}
	if p, err := e.oracle.TokenPrice(ctx, e.native); err == nil && p.HasUSD() {
		entry.USDValue = volumeXRD.Mul(p.USDPrice)
	}
	return entry
}

// tokenSymbol resolves a token address to its display symbol using the
// pair, falling back to the trade's own configuration.
func tokenSymbol(pair *domain.TradePair, address string, t *domain.Trade) string {
	if pair != nil {
		switch address {
		case pair.BaseTokenAddress:
			return pair.BaseTokenSymbol
		case pair.QuoteTokenAddress:
			return pair.QuoteTokenSymbol
		}
	}
	switch address {
	case t.StartTokenAddress:
		return t.StartTokenSymbol
	case t.AccumulationTokenAddress:
		return t.AccumulationTokenSymbol
	}
	return t.TradeTokenSymbol
}
