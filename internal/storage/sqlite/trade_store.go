package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

// TradeStore implements storage.TradeStore using SQLite.
type TradeStore struct {
	db *DB
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(db *DB) *TradeStore {
	return &TradeStore{db: db}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, trade_pair_id, wallet_address,
	start_token_address, start_token_symbol, start_amount,
	strategy_name, is_compounding,
	accumulation_token_address, accumulation_token_symbol,
	indicator_settings, pool_address,
	is_active, current_signal, last_signal_updated_at,
	trade_token_address, trade_token_symbol, trade_amount,
	times_flipped, profitable_flips, unprofitable_flips,
	total_profit, trade_volume, reserved_amount,
	created_at, updated_at`

// Insert/counter run in one unit so a trade never exists without its
// wallet's created counter reflecting it.
func (s *TradeStore) Create(ctx context.Context, t *domain.Trade) (string, error) {
	if t.TradePairID == 0 || t.WalletAddress == "" {
		return "", fmt.Errorf("%w: trade needs a pair and wallet", storage.ErrInvalidInput)
	}

	now := time.Now()
	t.TradeID = ulid.Make().String()
	t.CreatedAt = now.Unix()
	t.UpdatedAt = now.Unix()
	if t.CurrentSignal == "" {
		t.CurrentSignal = domain.SignalHold
	}

	err := s.db.InTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO trades (` + tradeColumns + `
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := s.db.conn(ctx).ExecContext(ctx, query,
			t.TradeID, t.TradePairID, t.WalletAddress,
			t.StartTokenAddress, t.StartTokenSymbol, t.StartAmount.String(),
			t.StrategyName, t.IsCompounding,
			t.AccumulationTokenAddress, t.AccumulationTokenSymbol,
			t.IndicatorSettings, t.PoolAddress,
			t.IsActive, t.CurrentSignal, t.LastSignalUpdatedAt,
			t.TradeTokenAddress, t.TradeTokenSymbol, t.TradeAmount.String(),
			t.TimesFlipped, t.ProfitableFlips, t.UnprofitableFlips,
			t.TotalProfit.String(), t.TradeVolume.String(), t.ReservedAmount.String(),
			t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade: %w", err)
		}

		return s.bumpWalletCounter(ctx, t.WalletAddress, "total_trades_created")
	})
	if err != nil {
		return "", err
	}
	return t.TradeID, nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `SELECT` + tradeColumns + ` FROM trades WHERE trade_id = ?`
	row := s.db.conn(ctx).QueryRowContext(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// Update applies a partial update and stamps updated_at.
func (s *TradeStore) Update(ctx context.Context, tradeID string, u storage.TradeUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().Unix()}

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.IsActive != nil {
		add("is_active", *u.IsActive)
	}
	if u.CurrentSignal != nil {
		add("current_signal", *u.CurrentSignal)
	}
	if u.LastSignalUpdatedAt != nil {
		add("last_signal_updated_at", *u.LastSignalUpdatedAt)
	}
	if u.TradeTokenAddress != nil {
		add("trade_token_address", *u.TradeTokenAddress)
	}
	if u.TradeTokenSymbol != nil {
		add("trade_token_symbol", *u.TradeTokenSymbol)
	}
	if u.TradeAmount != nil {
		add("trade_amount", u.TradeAmount.String())
	}
	if u.TimesFlipped != nil {
		add("times_flipped", *u.TimesFlipped)
	}
	if u.ProfitableFlips != nil {
		add("profitable_flips", *u.ProfitableFlips)
	}
	if u.UnprofitableFlips != nil {
		add("unprofitable_flips", *u.UnprofitableFlips)
	}
	if u.TotalProfit != nil {
		add("total_profit", u.TotalProfit.String())
	}
	if u.TradeVolume != nil {
		add("trade_volume", u.TradeVolume.String())
	}
	if u.ReservedAmount != nil {
		add("reserved_amount", u.ReservedAmount.String())
	}

	query := `UPDATE trades SET ` + strings.Join(sets, ", ") + ` WHERE trade_id = ?`
	args = append(args, tradeID)

	res, err := s.db.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update trade rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
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
func (s *TradeStore) ToggleActive(ctx context.Context, tradeID string) (bool, error) {
	var active bool
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		t, err := s.GetByID(ctx, tradeID)
		if err != nil {
			return err
		}
		active = !t.IsActive
		return s.Update(ctx, tradeID, storage.TradeUpdate{IsActive: &active})
	})
	if err != nil {
		return false, err
	}
	return active, nil
}

// Delete removes a trade, its ledger legs (via FK cascade), and bumps the
// owning wallet's deleted counter, atomically. The trade's history entries
// are kept: history is the permanent record.
func (s *TradeStore) Delete(ctx context.Context, tradeID string) error {
	return s.db.InTx(ctx, func(ctx context.Context) error {
		t, err := s.GetByID(ctx, tradeID)
		if err != nil {
			return err
		}

		if _, err := s.db.conn(ctx).ExecContext(ctx,
			`DELETE FROM trades WHERE trade_id = ?`, tradeID); err != nil {
			return fmt.Errorf("delete trade: %w", err)
		}

		return s.bumpWalletCounter(ctx, t.WalletAddress, "total_trades_deleted")
	})
}

// ListByWallet retrieves all trades for a wallet, newest first.
func (s *TradeStore) ListByWallet(ctx context.Context, walletAddress string) ([]*domain.Trade, error) {
	query := `SELECT` + tradeColumns + ` FROM trades WHERE wallet_address = ? ORDER BY created_at DESC, trade_id DESC`
	rows, err := s.db.conn(ctx).QueryContext(ctx, query, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("list trades by wallet: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// ListActive retrieves all active trades.
func (s *TradeStore) ListActive(ctx context.Context) ([]*domain.Trade, error) {
	query := `SELECT` + tradeColumns + ` FROM trades WHERE is_active = 1 ORDER BY created_at ASC, trade_id ASC`
	rows, err := s.db.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// ListBySignal retrieves active trades carrying the given signal.
func (s *TradeStore) ListBySignal(ctx context.Context, signal string) ([]*domain.Trade, error) {
	query := `SELECT` + tradeColumns + ` FROM trades WHERE is_active = 1 AND current_signal = ? ORDER BY created_at ASC, trade_id ASC`
	rows, err := s.db.conn(ctx).QueryContext(ctx, query, signal)
	if err != nil {
		return nil, fmt.Errorf("list trades by signal: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// CountByPair returns the number of trades referencing a trade pair.
func (s *TradeStore) CountByPair(ctx context.Context, tradePairID int64) (int, error) {
	var n int
	err := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE trade_pair_id = ?`, tradePairID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trades by pair: %w", err)
	}
	return n, nil
}

// bumpWalletCounter increments a statistics counter for the wallet owning
// the address, creating the statistics row if needed. Unknown addresses are
// an error: trades must belong to a registered wallet.
func (s *TradeStore) bumpWalletCounter(ctx context.Context, walletAddress, column string) error {
	var walletID int64
	err := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT wallet_id FROM wallets WHERE address = ?`, walletAddress).Scan(&walletID)
	if err != nil {
		if isNotFoundError(err) {
			return fmt.Errorf("%w: wallet %s not registered", storage.ErrInvalidInput, walletAddress)
		}
		return fmt.Errorf("resolve wallet %s: %w", walletAddress, err)
	}

	if _, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO statistics (wallet_id) VALUES (?) ON CONFLICT (wallet_id) DO NOTHING`,
		walletID); err != nil {
		return fmt.Errorf("ensure statistics row: %w", err)
	}

	query := fmt.Sprintf(
		`UPDATE statistics SET %s = %s + 1 WHERE wallet_id = ?`, column, column)
	if _, err := s.db.conn(ctx).ExecContext(ctx, query, walletID); err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTrade scans a single row into a Trade.
func scanTrade(row rowScanner) (*domain.Trade, error) {
	var (
		t                                     domain.Trade
		startAmount, tradeAmount, totalProfit string
		tradeVolume, reservedAmount           string
	)

	err := row.Scan(
		&t.TradeID, &t.TradePairID, &t.WalletAddress,
		&t.StartTokenAddress, &t.StartTokenSymbol, &startAmount,
		&t.StrategyName, &t.IsCompounding,
		&t.AccumulationTokenAddress, &t.AccumulationTokenSymbol,
		&t.IndicatorSettings, &t.PoolAddress,
		&t.IsActive, &t.CurrentSignal, &t.LastSignalUpdatedAt,
		&t.TradeTokenAddress, &t.TradeTokenSymbol, &tradeAmount,
		&t.TimesFlipped, &t.ProfitableFlips, &t.UnprofitableFlips,
		&totalProfit, &tradeVolume, &reservedAmount,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t.StartAmount, err = parseDecimal(startAmount); err != nil {
		return nil, err
	}
	if t.TradeAmount, err = parseDecimal(tradeAmount); err != nil {
		return nil, err
	}
	if t.TotalProfit, err = parseDecimal(totalProfit); err != nil {
		return nil, err
	}
	if t.TradeVolume, err = parseDecimal(tradeVolume); err != nil {
		return nil, err
	}
	if t.ReservedAmount, err = parseDecimal(reservedAmount); err != nil {
		return nil, err
	}
	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows *sql.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
