package memory

import (
	"context"
	"fmt"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

// FlipLedger is the in-memory implementation of storage.FlipLedger.
type FlipLedger struct {
	b *Backend
}

// NewFlipLedger creates a ledger view over the backend.
func NewFlipLedger(b *Backend) *FlipLedger {
	return &FlipLedger{b: b}
}

// Compile-time interface check.
var _ storage.FlipLedger = (*FlipLedger)(nil)

// Append inserts a leg. Returns ErrDuplicateKey if the transaction id is
// already recorded.
func (s *FlipLedger) Append(_ context.Context, leg *domain.FlipLeg) (int64, error) {
	if leg == nil || (leg.Side != domain.SideBuy && leg.Side != domain.SideSell) {
		return 0, fmt.Errorf("%w: leg side", storage.ErrInvalidInput)
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	if leg.TransactionID != "" {
		for _, existing := range s.b.legs {
			if existing.TransactionID == leg.TransactionID {
				return 0, storage.ErrDuplicateKey
			}
		}
	}

	s.b.nextLegID++
	legCopy := *leg
	legCopy.LedgerID = s.b.nextLegID
	s.b.legs = append(s.b.legs, &legCopy)
	leg.LedgerID = legCopy.LedgerID
	return legCopy.LedgerID, nil
}

// Recent retrieves the n most recent legs for a trade, newest first.
func (s *FlipLedger) Recent(_ context.Context, tradeID string, n int) ([]*domain.FlipLeg, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	var result []*domain.FlipLeg
	for i := len(s.b.legs) - 1; i >= 0 && len(result) < n; i-- {
		if s.b.legs[i].TradeID == tradeID {
			legCopy := *s.b.legs[i]
			result = append(result, &legCopy)
		}
	}
	return result, nil
}

// ByTrade retrieves all legs for a trade in insertion order.
func (s *FlipLedger) ByTrade(_ context.Context, tradeID string) ([]*domain.FlipLeg, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	var result []*domain.FlipLeg
	for _, leg := range s.b.legs {
		if leg.TradeID == tradeID {
			legCopy := *leg
			result = append(result, &legCopy)
		}
	}
	return result, nil
}

// AnnotateLatest attaches profit figures to the most recent leg of the trade.
func (s *FlipLedger) AnnotateLatest(_ context.Context, tradeID string, ann domain.ProfitAnnotation) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	for i := len(s.b.legs) - 1; i >= 0; i-- {
		if s.b.legs[i].TradeID == tradeID {
			annCopy := ann
			s.b.legs[i].Annotation = &annCopy
			return nil
		}
	}
	return storage.ErrNotFound
}
