// Package rollback restores a trade's position state after a rejected
// execution. Only the position fields captured before submission are
// restored; the trade's signal stays neutral so the monitor loop re-decides
// on its own cadence, and already-committed ledger legs are left alone.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"radbot-core/internal/observability"
	"radbot-core/internal/storage"
)

// Snapshot captures the position fields of a trade before an execution is
// submitted. The current signal is deliberately absent: it is set to a
// neutral hold before submission and never restored, which prevents a
// submit-reject-retry race from putting two executions in flight.
type Snapshot struct {
	TradeTokenAddress string
	TradeTokenSymbol  string
	TradeAmount       decimal.Decimal
	TimesFlipped      float64
	TradeVolume       decimal.Decimal
}

// Coordinator takes and applies trade snapshots.
type Coordinator struct {
	db      storage.TxRunner
	trades  storage.TradeStore
	history storage.HistoryStore
	metrics *observability.Metrics
}

// NewCoordinator creates a coordinator over the given stores.
func NewCoordinator(db storage.TxRunner, trades storage.TradeStore, history storage.HistoryStore, metrics *observability.Metrics) *Coordinator {
	if metrics == nil {
		metrics = observability.Default()
	}
	return &Coordinator{db: db, trades: trades, history: history, metrics: metrics}
}

// Snapshot captures the trade's current position state.
func (c *Coordinator) Snapshot(ctx context.Context, tradeID string) (*Snapshot, error) {
	t, err := c.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("snapshot trade %s: %w", tradeID, err)
	}
	return &Snapshot{
		TradeTokenAddress: t.TradeTokenAddress,
		TradeTokenSymbol:  t.TradeTokenSymbol,
		TradeAmount:       t.TradeAmount,
		TimesFlipped:      t.TimesFlipped,
		TradeVolume:       t.TradeVolume,
	}, nil
}

// Rollback restores the snapshot's position fields and deletes the single
// most recent trade-history row, atomically. The current signal and the
// flip ledger are not touched.
func (c *Coordinator) Rollback(ctx context.Context, tradeID string, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", storage.ErrInvalidInput)
	}

	err := c.db.InTx(ctx, func(ctx context.Context) error {
		u := storage.TradeUpdate{
			TradeTokenAddress: &snap.TradeTokenAddress,
			TradeTokenSymbol:  &snap.TradeTokenSymbol,
			TradeAmount:       &snap.TradeAmount,
			TimesFlipped:      &snap.TimesFlipped,
			TradeVolume:       &snap.TradeVolume,
		}
		if err := c.trades.Update(ctx, tradeID, u); err != nil {
			return fmt.Errorf("restore trade %s: %w", tradeID, err)
		}

		err := c.history.DeleteLatest(ctx, tradeID)
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("rollback: trade %s has no history row to remove", tradeID)
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	c.metrics.RollbacksTotal.Inc()
	log.Printf("rollback: trade %s restored to %.1f flips holding %s %s",
		tradeID, snap.TimesFlipped, snap.TradeAmount, snap.TradeTokenSymbol)
	return nil
}
