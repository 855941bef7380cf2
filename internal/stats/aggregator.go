// Package stats maintains the per-wallet statistics and daily chart
// rollups. The aggregator is the only writer of those rows; the
// reconciliation engine and trade lifecycle feed it, everything else reads.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"radbot-core/internal/domain"
	"radbot-core/internal/observability"
	"radbot-core/internal/storage"
)

// DefaultRetentionDays is how long daily chart rows are kept.
const DefaultRetentionDays = 30

// Aggregator applies flip outcomes and lifecycle events to wallet
// statistics. Callers needing atomicity with other writes run it inside a
// TxRunner unit; the aggregator itself performs plain read-modify-write.
type Aggregator struct {
	stats         storage.StatisticsStore
	daily         storage.DailyStatisticsStore
	retentionDays int
	metrics       *observability.Metrics
	now           func() time.Time
}

// NewAggregator creates an aggregator over the given stores.
// retentionDays <= 0 selects the default window.
func NewAggregator(stats storage.StatisticsStore, daily storage.DailyStatisticsStore, retentionDays int, metrics *observability.Metrics) *Aggregator {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if metrics == nil {
		metrics = observability.Default()
	}
	return &Aggregator{
		stats:         stats,
		daily:         daily,
		retentionDays: retentionDays,
		metrics:       metrics,
		now:           time.Now,
	}
}

// EnsureEntry idempotently creates a zeroed statistics row for the wallet.
func (a *Aggregator) EnsureEntry(ctx context.Context, walletID int64) error {
	return a.stats.Ensure(ctx, walletID)
}

// RecordFlip applies one measured cycle outcome to the wallet's statistics:
// win/loss counters, streaks with high-water marks, per-denomination profit
// and loss totals (losses as positive magnitudes), win rate, and average
// profit per cycle.
func (a *Aggregator) RecordFlip(ctx context.Context, walletID int64, profitXRD, profitUSD decimal.Decimal, profitable bool) error {
	if err := a.stats.Ensure(ctx, walletID); err != nil {
		return err
	}
	st, err := a.stats.Get(ctx, walletID)
	if err != nil {
		return fmt.Errorf("read statistics for wallet %d: %w", walletID, err)
	}

	if profitable {
		st.WinningTrades++
		st.CurrentWinningStreak++
		st.CurrentLosingStreak = 0
		if st.CurrentWinningStreak > st.LongestWinningStreak {
			st.LongestWinningStreak = st.CurrentWinningStreak
		}
		st.TotalProfitXRD = st.TotalProfitXRD.Add(profitXRD)
		st.TotalProfitUSD = st.TotalProfitUSD.Add(profitUSD)
	} else {
		st.LosingTrades++
		st.CurrentLosingStreak++
		st.CurrentWinningStreak = 0
		if st.CurrentLosingStreak > st.LongestLosingStreak {
			st.LongestLosingStreak = st.CurrentLosingStreak
		}
		st.TotalLossXRD = st.TotalLossXRD.Add(profitXRD.Abs())
		st.TotalLossUSD = st.TotalLossUSD.Add(profitUSD.Abs())
	}
	st.TotalProfitLossUSD = st.TotalProfitLossUSD.Add(profitUSD)

	total := st.CompletedCycles()
	st.WinRatePercentage = float64(st.WinningTrades) / float64(total) * 100
	// Gross profit over all completed cycles; losses do not reduce the
	// numerator, they only grow the denominator.
	st.AverageProfitPerTrade = st.TotalProfitUSD.Div(decimal.NewFromInt(int64(total)))
	st.LastCalculated = a.now().Unix()

	if err := a.stats.Put(ctx, st); err != nil {
		return fmt.Errorf("write statistics for wallet %d: %w", walletID, err)
	}

	outcome := "unprofitable"
	if profitable {
		outcome = "profitable"
	}
	a.metrics.CyclesMeasured.WithLabelValues(outcome).Inc()
	return nil
}

// RecordDaily sums profit and volume into today's row for the wallet and
// prunes rows older than the retention window.
func (a *Aggregator) RecordDaily(ctx context.Context, walletID int64, profitXRD, profitUSD, volumeXRD, volumeUSD decimal.Decimal) error {
	today := a.now().UTC()
	err := a.daily.AddDelta(ctx, &domain.DailyStatistics{
		WalletID:      walletID,
		Date:          today.Format("2006-01-02"),
		ProfitLossXRD: profitXRD,
		ProfitLossUSD: profitUSD,
		VolumeXRD:     volumeXRD,
		VolumeUSD:     volumeUSD,
	})
	if err != nil {
		return fmt.Errorf("record daily statistics for wallet %d: %w", walletID, err)
	}

	cutoff := today.AddDate(0, 0, -a.retentionDays).Format("2006-01-02")
	pruned, err := a.daily.PruneBefore(ctx, walletID, cutoff)
	if err != nil {
		return fmt.Errorf("prune daily statistics for wallet %d: %w", walletID, err)
	}
	if pruned > 0 {
		a.metrics.DailyRowsPruned.Add(float64(pruned))
		log.Printf("stats: pruned %d daily rows before %s for wallet %d", pruned, cutoff, walletID)
	}
	return nil
}

// TradeCreated bumps the wallet's created-trades counter.
func (a *Aggregator) TradeCreated(ctx context.Context, walletID int64) error {
	return a.stats.IncrementCreated(ctx, walletID)
}

// TradeDeleted bumps the wallet's deleted-trades counter.
func (a *Aggregator) TradeDeleted(ctx context.Context, walletID int64) error {
	return a.stats.IncrementDeleted(ctx, walletID)
}

// Statistics returns the wallet's statistics row, or a zeroed row if the
// wallet has no recorded activity yet.
func (a *Aggregator) Statistics(ctx context.Context, walletID int64) (*domain.WalletStatistics, error) {
	st, err := a.stats.Get(ctx, walletID)
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.WalletStatistics{WalletID: walletID}, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Daily returns up to days most recent daily rows for the wallet, newest first.
func (a *Aggregator) Daily(ctx context.Context, walletID int64, days int) ([]*domain.DailyStatistics, error) {
	if days <= 0 || days > a.retentionDays {
		days = a.retentionDays
	}
	return a.daily.ListRecent(ctx, walletID, days)
}
