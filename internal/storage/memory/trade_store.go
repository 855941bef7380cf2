package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

// TradeStore is the in-memory implementation of storage.TradeStore.
type TradeStore struct {
	b *Backend
}

// NewTradeStore creates a trade store view over the backend.
func NewTradeStore(b *Backend) *TradeStore {
	return &TradeStore{b: b}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Create inserts a new trade, assigns its id, and bumps the wallet's
// created counter.
func (s *TradeStore) Create(_ context.Context, t *domain.Trade) (string, error) {
	if t == nil || t.TradePairID == 0 || t.WalletAddress == "" {
		return "", fmt.Errorf("%w: trade needs a pair and wallet", storage.ErrInvalidInput)
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	w, exists := s.b.wallets[t.WalletAddress]
	if !exists {
		return "", fmt.Errorf("%w: wallet %s not registered", storage.ErrInvalidInput, t.WalletAddress)
	}

	now := time.Now().Unix()
	t.TradeID = ulid.Make().String()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.CurrentSignal == "" {
		t.CurrentSignal = domain.SignalHold
	}

	tradeCopy := *t
	s.b.trades[t.TradeID] = &tradeCopy
	s.b.ensureStatsLocked(w.WalletID).TotalTradesCreated++
	return t.TradeID, nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	t, exists := s.b.trades[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	tradeCopy := *t
	return &tradeCopy, nil
}

// Update applies a partial update and stamps updated_at.
func (s *TradeStore) Update(_ context.Context, tradeID string, u storage.TradeUpdate) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	t, exists := s.b.trades[tradeID]
	if !exists {
		return storage.ErrNotFound
	}

	if u.IsActive != nil {
		t.IsActive = *u.IsActive
	}
	if u.CurrentSignal != nil {
		t.CurrentSignal = *u.CurrentSignal
	}
	if u.LastSignalUpdatedAt != nil {
		t.LastSignalUpdatedAt = *u.LastSignalUpdatedAt
	}
	if u.TradeTokenAddress != nil {
		t.TradeTokenAddress = *u.TradeTokenAddress
	}
	if u.TradeTokenSymbol != nil {
		t.TradeTokenSymbol = *u.TradeTokenSymbol
	}
	if u.TradeAmount != nil {
		t.TradeAmount = *u.TradeAmount
	}
	if u.TimesFlipped != nil {
		t.TimesFlipped = *u.TimesFlipped
	}
	if u.ProfitableFlips != nil {
		t.ProfitableFlips = *u.ProfitableFlips
	}
	if u.UnprofitableFlips != nil {
		t.UnprofitableFlips = *u.UnprofitableFlips
	}
	if u.TotalProfit != nil {
		t.TotalProfit = *u.TotalProfit
	}
	if u.TradeVolume != nil {
		t.TradeVolume = *u.TradeVolume
	}
	if u.ReservedAmount != nil {
		t.ReservedAmount = *u.ReservedAmount
	}
	t.UpdatedAt = time.Now().Unix()
	return nil
}

// UpdateSignal sets current_signal and last_signal_updated_at.
func (s *TradeStore) UpdateSignal(ctx context.Context, tradeID, signal string) error {
	now := time.Now().Unix()
	return s.Update(ctx, tradeID, storage.TradeUpdate{
		CurrentSignal:       &signal,
		LastSignalUpdatedAt: &now,
	})
}

// ToggleActive flips the active/paused flag and returns the new state.
func (s *TradeStore) ToggleActive(_ context.Context, tradeID string) (bool, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	t, exists := s.b.trades[tradeID]
	if !exists {
		return false, storage.ErrNotFound
	}
	t.IsActive = !t.IsActive
	t.UpdatedAt = time.Now().Unix()
	return t.IsActive, nil
}

// Delete removes a trade with its ledger legs and bumps the wallet's
// deleted counter.
func (s *TradeStore) Delete(_ context.Context, tradeID string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	t, exists := s.b.trades[tradeID]
	if !exists {
		return storage.ErrNotFound
	}

	delete(s.b.trades, tradeID)

	kept := s.b.legs[:0]
	for _, leg := range s.b.legs {
		if leg.TradeID != tradeID {
			kept = append(kept, leg)
		}
	}
	s.b.legs = kept

	if w, ok := s.b.wallets[t.WalletAddress]; ok {
		s.b.ensureStatsLocked(w.WalletID).TotalTradesDeleted++
	}
	return nil
}

// ListByWallet retrieves all trades for a wallet, newest first.
func (s *TradeStore) ListByWallet(_ context.Context, walletAddress string) ([]*domain.Trade, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.b.trades {
		if t.WalletAddress == walletAddress {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].TradeID > result[j].TradeID
	})
	return result, nil
}

// ListActive retrieves all active trades.
func (s *TradeStore) ListActive(ctx context.Context) ([]*domain.Trade, error) {
	return s.listWhere(func(t *domain.Trade) bool { return t.IsActive })
}

// ListBySignal retrieves active trades carrying the given signal.
func (s *TradeStore) ListBySignal(_ context.Context, signal string) ([]*domain.Trade, error) {
	return s.listWhere(func(t *domain.Trade) bool {
		return t.IsActive && t.CurrentSignal == signal
	})
}

func (s *TradeStore) listWhere(keep func(*domain.Trade) bool) ([]*domain.Trade, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.b.trades {
		if keep(t) {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].TradeID < result[j].TradeID
	})
	return result, nil
}

// CountByPair returns the number of trades referencing a trade pair.
func (s *TradeStore) CountByPair(_ context.Context, tradePairID int64) (int, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	n := 0
	for _, t := range s.b.trades {
		if t.TradePairID == tradePairID {
			n++
		}
	}
	return n, nil
}
