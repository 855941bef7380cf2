package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"radbot-core/internal/domain"
)

// TxRunner executes a function inside a single serializable unit of work.
// Every store call made with the context passed to fn joins that unit; any
// error rolls the whole unit back. Mutating sequences that must be
// all-or-nothing (reconciliation, trade deletion) run through this.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TradeUpdate is a partial update of a trade's mutable fields. Nil fields
// are left untouched. Updates are last-writer-wins at the field level;
// callers needing read-modify-write consistency run inside a TxRunner unit
// and their own per-trade critical section.
type TradeUpdate struct {
	IsActive            *bool
	CurrentSignal       *string
	LastSignalUpdatedAt *int64
	TradeTokenAddress   *string
	TradeTokenSymbol    *string
	TradeAmount         *decimal.Decimal
	TimesFlipped        *float64
	ProfitableFlips     *int
	UnprofitableFlips   *int
	TotalProfit         *decimal.Decimal
	TradeVolume         *decimal.Decimal
	ReservedAmount      *decimal.Decimal
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Create inserts a new trade, assigns its TradeID, stamps timestamps,
	// and increments the owning wallet's created-trades counter in the same
	// unit of work. Returns the assigned id.
	Create(ctx context.Context, t *domain.Trade) (string, error)

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// Update applies a partial update and stamps updated_at.
	// Returns ErrNotFound if the trade does not exist.
	Update(ctx context.Context, tradeID string, u TradeUpdate) error

	// UpdateSignal sets current_signal and last_signal_updated_at.
	UpdateSignal(ctx context.Context, tradeID, signal string) error

	// ToggleActive flips the active/paused flag and returns the new state.
	ToggleActive(ctx context.Context, tradeID string) (bool, error)

	// Delete removes a trade and all of its ledger legs, and increments the
	// owning wallet's deleted-trades counter, atomically.
	Delete(ctx context.Context, tradeID string) error

	// ListByWallet retrieves all trades (active and paused) for a wallet,
	// newest first.
	ListByWallet(ctx context.Context, walletAddress string) ([]*domain.Trade, error)

	// ListActive retrieves all active trades.
	ListActive(ctx context.Context) ([]*domain.Trade, error)

	// ListBySignal retrieves active trades carrying the given signal.
	ListBySignal(ctx context.Context, signal string) ([]*domain.Trade, error)

	// CountByPair returns the number of trades (any state) referencing a
	// trade pair. Used before removing a pair from the configured list.
	CountByPair(ctx context.Context, tradePairID int64) (int, error)
}

// FlipLedger provides access to the append-only trade_flips storage.
// Core leg fields never change after insert; only the profit annotation of
// the single most recent leg for a trade may be filled in later.
type FlipLedger interface {
	// Append inserts a leg and returns its ledger id. Returns
	// ErrDuplicateKey if the leg's transaction id is already recorded.
	// Legs must be appended in event-occurrence order.
	Append(ctx context.Context, leg *domain.FlipLeg) (int64, error)

	// Recent retrieves the n most recent legs for a trade, newest first.
	Recent(ctx context.Context, tradeID string, n int) ([]*domain.FlipLeg, error)

	// ByTrade retrieves all legs for a trade in insertion order.
	ByTrade(ctx context.Context, tradeID string) ([]*domain.FlipLeg, error)

	// AnnotateLatest attaches profit figures to the most recent leg of the
	// trade. Returns ErrNotFound if the trade has no legs.
	AnnotateLatest(ctx context.Context, tradeID string, ann domain.ProfitAnnotation) error
}

// HistoryFilter narrows a trade-history query. Zero values mean
// "no constraint"; Limit <= 0 applies the store's default cap.
type HistoryFilter struct {
	WalletAddress string
	StartTime     int64 // unix milliseconds, inclusive
	EndTime       int64 // unix milliseconds, inclusive
	Limit         int
}

// HistoryStore provides access to the denormalized trade_history storage.
type HistoryStore interface {
	// Record inserts a history entry and returns its id.
	Record(ctx context.Context, e *domain.HistoryEntry) (int64, error)

	// AnnotateLatest attaches profit figures to the most recent entry for
	// the trade. Returns ErrNotFound if the trade has no entries.
	AnnotateLatest(ctx context.Context, tradeID string, ann domain.ProfitAnnotation) error

	// DeleteLatest removes the single most recently inserted entry for the
	// trade. Used by rollback after a rejected execution.
	DeleteLatest(ctx context.Context, tradeID string) error

	// Recent retrieves the n most recent entries for a trade, newest first.
	// Reconciliation reads the stored USD values of the last two swaps here
	// when live prices are unavailable.
	Recent(ctx context.Context, tradeID string, n int) ([]*domain.HistoryEntry, error)

	// Query retrieves entries matching the filter, newest first.
	Query(ctx context.Context, f HistoryFilter) ([]*domain.HistoryEntry, error)
}

// StatisticsStore provides access to per-wallet statistics rows. Rows are
// written only through the statistics aggregator.
type StatisticsStore interface {
	// Ensure idempotently creates a zeroed statistics row for the wallet.
	Ensure(ctx context.Context, walletID int64) error

	// Get retrieves the wallet's statistics. Returns ErrNotFound if absent.
	Get(ctx context.Context, walletID int64) (*domain.WalletStatistics, error)

	// Put replaces the wallet's statistics row.
	Put(ctx context.Context, s *domain.WalletStatistics) error

	// IncrementCreated bumps the created-trades counter.
	IncrementCreated(ctx context.Context, walletID int64) error

	// IncrementDeleted bumps the deleted-trades counter.
	IncrementDeleted(ctx context.Context, walletID int64) error
}

// DailyStatisticsStore provides access to per-(wallet, day) chart rollups.
type DailyStatisticsStore interface {
	// AddDelta sums the delta into the (wallet, date) row, creating it if
	// absent. Repeated calls for the same day accumulate.
	AddDelta(ctx context.Context, d *domain.DailyStatistics) error

	// ListRecent retrieves up to days most recent rows for the wallet,
	// newest first.
	ListRecent(ctx context.Context, walletID int64, days int) ([]*domain.DailyStatistics, error)

	// PruneBefore deletes the wallet's rows strictly older than cutoffDate
	// ("YYYY-MM-DD"). Returns the number of rows removed.
	PruneBefore(ctx context.Context, walletID int64, cutoffDate string) (int64, error)
}

// WalletDirectory resolves ledger addresses to wallet ids for statistics
// routing. The wallets table itself is owned by the application shell.
type WalletDirectory interface {
	// IDByAddress returns the wallet id for an address.
	// Returns ErrNotFound for unknown addresses.
	IDByAddress(ctx context.Context, address string) (int64, error)
}

// PairDirectory resolves trade pair ids to their token sides. The
// trade_pairs table itself is owned by the application shell.
type PairDirectory interface {
	// Get returns the pair. Returns ErrNotFound for unknown ids.
	Get(ctx context.Context, tradePairID int64) (*domain.TradePair, error)
}
