// Package memory provides in-memory implementations of the storage
// interfaces for tests and dry-run sessions. All stores share one Backend
// so cross-store operations (trade deletion, wallet counters) stay
// consistent. InTx serializes units of work but does not roll back partial
// writes; durable sessions use the sqlite backend.
package memory

import (
	"context"
	"sync"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

// Backend holds the shared state behind every in-memory store.
type Backend struct {
	mu sync.RWMutex

	trades  map[string]*domain.Trade
	legs    []*domain.FlipLeg
	history []*domain.HistoryEntry
	stats   map[int64]*domain.WalletStatistics
	daily   map[int64]map[string]*domain.DailyStatistics
	wallets map[string]*domain.Wallet
	pairs   map[int64]*domain.TradePair

	nextLegID     int64
	nextHistoryID int64
	nextWalletID  int64
	nextPairID    int64

	txMu sync.Mutex
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		trades:  make(map[string]*domain.Trade),
		stats:   make(map[int64]*domain.WalletStatistics),
		daily:   make(map[int64]map[string]*domain.DailyStatistics),
		wallets: make(map[string]*domain.Wallet),
		pairs:   make(map[int64]*domain.TradePair),
	}
}

// Compile-time interface check.
var _ storage.TxRunner = (*Backend)(nil)

type txKey struct{}

// InTx serializes fn against all other units of work. Unlike the sqlite
// backend there is no rollback: fn returning an error leaves any writes it
// already made in place.
func (b *Backend) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	b.txMu.Lock()
	defer b.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, struct{}{}))
}

// RegisterWallet adds a wallet if its address is new and returns its id.
func (b *Backend) RegisterWallet(_ context.Context, address, label string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w, exists := b.wallets[address]; exists {
		return w.WalletID, nil
	}
	b.nextWalletID++
	b.wallets[address] = &domain.Wallet{
		WalletID: b.nextWalletID,
		Address:  address,
		Label:    label,
	}
	return b.nextWalletID, nil
}

// RegisterPair adds a trade pair and returns its id. Re-registering the
// same (base, quote) combination returns the existing id.
func (b *Backend) RegisterPair(_ context.Context, p *domain.TradePair) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.pairs {
		if existing.BaseTokenAddress == p.BaseTokenAddress &&
			existing.QuoteTokenAddress == p.QuoteTokenAddress {
			p.TradePairID = existing.TradePairID
			return existing.TradePairID, nil
		}
	}
	b.nextPairID++
	pairCopy := *p
	pairCopy.TradePairID = b.nextPairID
	b.pairs[b.nextPairID] = &pairCopy
	p.TradePairID = b.nextPairID
	return b.nextPairID, nil
}

// WalletDirectory is the in-memory implementation of storage.WalletDirectory.
type WalletDirectory struct {
	b *Backend
}

// NewWalletDirectory creates a directory view over the backend.
func NewWalletDirectory(b *Backend) *WalletDirectory {
	return &WalletDirectory{b: b}
}

// Compile-time interface check.
var _ storage.WalletDirectory = (*WalletDirectory)(nil)

// IDByAddress returns the wallet id for an address.
func (d *WalletDirectory) IDByAddress(_ context.Context, address string) (int64, error) {
	d.b.mu.RLock()
	defer d.b.mu.RUnlock()

	w, exists := d.b.wallets[address]
	if !exists {
		return 0, storage.ErrNotFound
	}
	return w.WalletID, nil
}

// PairDirectory is the in-memory implementation of storage.PairDirectory.
type PairDirectory struct {
	b *Backend
}

// NewPairDirectory creates a directory view over the backend.
func NewPairDirectory(b *Backend) *PairDirectory {
	return &PairDirectory{b: b}
}

// Compile-time interface check.
var _ storage.PairDirectory = (*PairDirectory)(nil)

// Get returns the pair. Returns ErrNotFound for unknown ids.
func (d *PairDirectory) Get(_ context.Context, tradePairID int64) (*domain.TradePair, error) {
	d.b.mu.RLock()
	defer d.b.mu.RUnlock()

	p, exists := d.b.pairs[tradePairID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	pairCopy := *p
	return &pairCopy, nil
}

// ensureStatsLocked returns the statistics row for a wallet, creating a
// zeroed one if needed. Caller must hold b.mu.
func (b *Backend) ensureStatsLocked(walletID int64) *domain.WalletStatistics {
	st, exists := b.stats[walletID]
	if !exists {
		st = &domain.WalletStatistics{WalletID: walletID}
		b.stats[walletID] = st
	}
	return st
}
