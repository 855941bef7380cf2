package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

// StatisticsStore is the in-memory implementation of storage.StatisticsStore.
type StatisticsStore struct {
	b *Backend
}

// NewStatisticsStore creates a statistics view over the backend.
func NewStatisticsStore(b *Backend) *StatisticsStore {
	return &StatisticsStore{b: b}
}

// Compile-time interface check.
var _ storage.StatisticsStore = (*StatisticsStore)(nil)

// Ensure idempotently creates a zeroed statistics row for the wallet.
func (s *StatisticsStore) Ensure(_ context.Context, walletID int64) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	s.b.ensureStatsLocked(walletID)
	return nil
}

// Get retrieves the wallet's statistics. Returns ErrNotFound if absent.
func (s *StatisticsStore) Get(_ context.Context, walletID int64) (*domain.WalletStatistics, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	st, exists := s.b.stats[walletID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	statsCopy := *st
	return &statsCopy, nil
}

// Put replaces the wallet's statistics row.
func (s *StatisticsStore) Put(_ context.Context, st *domain.WalletStatistics) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	if _, exists := s.b.stats[st.WalletID]; !exists {
		return storage.ErrNotFound
	}
	statsCopy := *st
	s.b.stats[st.WalletID] = &statsCopy
	return nil
}

// IncrementCreated bumps the created-trades counter.
func (s *StatisticsStore) IncrementCreated(_ context.Context, walletID int64) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	s.b.ensureStatsLocked(walletID).TotalTradesCreated++
	return nil
}

// IncrementDeleted bumps the deleted-trades counter.
func (s *StatisticsStore) IncrementDeleted(_ context.Context, walletID int64) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	s.b.ensureStatsLocked(walletID).TotalTradesDeleted++
	return nil
}

// DailyStatisticsStore is the in-memory implementation of
// storage.DailyStatisticsStore.
type DailyStatisticsStore struct {
	b *Backend
}

// NewDailyStatisticsStore creates a daily-statistics view over the backend.
func NewDailyStatisticsStore(b *Backend) *DailyStatisticsStore {
	return &DailyStatisticsStore{b: b}
}

// Compile-time interface check.
var _ storage.DailyStatisticsStore = (*DailyStatisticsStore)(nil)

// AddDelta sums the delta into the (wallet, date) row, creating it if absent.
func (s *DailyStatisticsStore) AddDelta(_ context.Context, d *domain.DailyStatistics) error {
	if d.Date == "" {
		return fmt.Errorf("%w: daily statistics date", storage.ErrInvalidInput)
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	days, exists := s.b.daily[d.WalletID]
	if !exists {
		days = make(map[string]*domain.DailyStatistics)
		s.b.daily[d.WalletID] = days
	}

	now := time.Now().Unix()
	row, exists := days[d.Date]
	if !exists {
		rowCopy := *d
		rowCopy.CreatedAt = now
		rowCopy.UpdatedAt = now
		days[d.Date] = &rowCopy
		return nil
	}

	row.ProfitLossXRD = row.ProfitLossXRD.Add(d.ProfitLossXRD)
	row.ProfitLossUSD = row.ProfitLossUSD.Add(d.ProfitLossUSD)
	row.VolumeXRD = row.VolumeXRD.Add(d.VolumeXRD)
	row.VolumeUSD = row.VolumeUSD.Add(d.VolumeUSD)
	row.UpdatedAt = now
	return nil
}

// ListRecent retrieves up to days most recent rows for the wallet, newest first.
func (s *DailyStatisticsStore) ListRecent(_ context.Context, walletID int64, days int) ([]*domain.DailyStatistics, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	var result []*domain.DailyStatistics
	for _, row := range s.b.daily[walletID] {
		rowCopy := *row
		result = append(result, &rowCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date > result[j].Date
	})
	if len(result) > days {
		result = result[:days]
	}
	return result, nil
}

// PruneBefore deletes the wallet's rows strictly older than cutoffDate.
func (s *DailyStatisticsStore) PruneBefore(_ context.Context, walletID int64, cutoffDate string) (int64, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	var n int64
	for date := range s.b.daily[walletID] {
		if date < cutoffDate {
			delete(s.b.daily[walletID], date)
			n++
		}
	}
	return n, nil
}
