package memory

import (
	"context"
	"sort"
	"time"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

const defaultHistoryLimit = 500

// HistoryStore is the in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	b *Backend
}

// NewHistoryStore creates a history view over the backend.
func NewHistoryStore(b *Backend) *HistoryStore {
	return &HistoryStore{b: b}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// Record inserts a history entry and returns its id.
func (s *HistoryStore) Record(_ context.Context, e *domain.HistoryEntry) (int64, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	s.b.nextHistoryID++
	entryCopy := *e
	entryCopy.HistoryID = s.b.nextHistoryID
	s.b.history = append(s.b.history, &entryCopy)
	e.HistoryID = entryCopy.HistoryID
	return entryCopy.HistoryID, nil
}

// AnnotateLatest attaches profit figures to the most recent entry for the trade.
func (s *HistoryStore) AnnotateLatest(_ context.Context, tradeID string, ann domain.ProfitAnnotation) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	for i := len(s.b.history) - 1; i >= 0; i-- {
		if s.b.history[i].TradeID == tradeID {
			annCopy := ann
			s.b.history[i].Annotation = &annCopy
			return nil
		}
	}
	return storage.ErrNotFound
}

// DeleteLatest removes the most recently inserted entry for the trade.
func (s *HistoryStore) DeleteLatest(_ context.Context, tradeID string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	for i := len(s.b.history) - 1; i >= 0; i-- {
		if s.b.history[i].TradeID == tradeID {
			s.b.history = append(s.b.history[:i], s.b.history[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

// Recent retrieves the n most recent entries for a trade, newest first.
func (s *HistoryStore) Recent(_ context.Context, tradeID string, n int) ([]*domain.HistoryEntry, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	var result []*domain.HistoryEntry
	for i := len(s.b.history) - 1; i >= 0 && len(result) < n; i-- {
		if s.b.history[i].TradeID == tradeID {
			entryCopy := *s.b.history[i]
			result = append(result, &entryCopy)
		}
	}
	return result, nil
}

// Query retrieves entries matching the filter, newest first.
func (s *HistoryStore) Query(_ context.Context, f storage.HistoryFilter) ([]*domain.HistoryEntry, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	var result []*domain.HistoryEntry
	for _, e := range s.b.history {
		if f.WalletAddress != "" && e.WalletAddress != f.WalletAddress {
			continue
		}
		if f.StartTime > 0 && e.Timestamp < f.StartTime {
			continue
		}
		if f.EndTime > 0 && e.Timestamp > f.EndTime {
			continue
		}
		entryCopy := *e
		result = append(result, &entryCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].HistoryID > result[j].HistoryID
	})

	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
