package sqlite

import (
	"context"
	"fmt"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

// StatisticsStore implements storage.StatisticsStore using SQLite.
type StatisticsStore struct {
	db *DB
}

// NewStatisticsStore creates a new StatisticsStore.
func NewStatisticsStore(db *DB) *StatisticsStore {
	return &StatisticsStore{db: db}
}

// Compile-time interface check.
var _ storage.StatisticsStore = (*StatisticsStore)(nil)

// Ensure idempotently creates a zeroed statistics row for the wallet.
func (s *StatisticsStore) Ensure(ctx context.Context, walletID int64) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO statistics (wallet_id) VALUES (?) ON CONFLICT (wallet_id) DO NOTHING`,
		walletID)
	if err != nil {
		return fmt.Errorf("ensure statistics row: %w", err)
	}
	return nil
}

// Get retrieves the wallet's statistics. Returns ErrNotFound if absent.
func (s *StatisticsStore) Get(ctx context.Context, walletID int64) (*domain.WalletStatistics, error) {
	query := `
		SELECT
			wallet_id, total_trades_created, total_trades_deleted,
			winning_trades, losing_trades,
			current_winning_streak, current_losing_streak,
			longest_winning_streak, longest_losing_streak,
			total_profit_loss_usd, total_profit_usd, total_loss_usd,
			total_profit_xrd, total_loss_xrd,
			win_rate_percentage, average_profit_per_trade, last_calculated
		FROM statistics
		WHERE wallet_id = ?
	`

	var (
		st                            domain.WalletStatistics
		netUSD, profitUSD, lossUSD    string
		profitXRD, lossXRD, avgProfit string
	)
	err := s.db.conn(ctx).QueryRowContext(ctx, query, walletID).Scan(
		&st.WalletID, &st.TotalTradesCreated, &st.TotalTradesDeleted,
		&st.WinningTrades, &st.LosingTrades,
		&st.CurrentWinningStreak, &st.CurrentLosingStreak,
		&st.LongestWinningStreak, &st.LongestLosingStreak,
		&netUSD, &profitUSD, &lossUSD,
		&profitXRD, &lossXRD,
		&st.WinRatePercentage, &avgProfit, &st.LastCalculated,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get statistics: %w", err)
	}

	if st.TotalProfitLossUSD, err = parseDecimal(netUSD); err != nil {
		return nil, err
	}
	if st.TotalProfitUSD, err = parseDecimal(profitUSD); err != nil {
		return nil, err
	}
	if st.TotalLossUSD, err = parseDecimal(lossUSD); err != nil {
		return nil, err
	}
	if st.TotalProfitXRD, err = parseDecimal(profitXRD); err != nil {
		return nil, err
	}
	if st.TotalLossXRD, err = parseDecimal(lossXRD); err != nil {
		return nil, err
	}
	if st.AverageProfitPerTrade, err = parseDecimal(avgProfit); err != nil {
		return nil, err
	}
	return &st, nil
}

// Put replaces the wallet's statistics row.
func (s *StatisticsStore) Put(ctx context.Context, st *domain.WalletStatistics) error {
	query := `
		UPDATE statistics SET
			total_trades_created = ?, total_trades_deleted = ?,
			winning_trades = ?, losing_trades = ?,
			current_winning_streak = ?, current_losing_streak = ?,
			longest_winning_streak = ?, longest_losing_streak = ?,
			total_profit_loss_usd = ?, total_profit_usd = ?, total_loss_usd = ?,
			total_profit_xrd = ?, total_loss_xrd = ?,
			win_rate_percentage = ?, average_profit_per_trade = ?, last_calculated = ?
		WHERE wallet_id = ?
	`
	res, err := s.db.conn(ctx).ExecContext(ctx, query,
		st.TotalTradesCreated, st.TotalTradesDeleted,
		st.WinningTrades, st.LosingTrades,
		st.CurrentWinningStreak, st.CurrentLosingStreak,
		st.LongestWinningStreak, st.LongestLosingStreak,
		st.TotalProfitLossUSD.String(), st.TotalProfitUSD.String(), st.TotalLossUSD.String(),
		st.TotalProfitXRD.String(), st.TotalLossXRD.String(),
		st.WinRatePercentage, st.AverageProfitPerTrade.String(), st.LastCalculated,
		st.WalletID,
	)
	if err != nil {
		return fmt.Errorf("put statistics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put statistics rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// IncrementCreated bumps the created-trades counter.
func (s *StatisticsStore) IncrementCreated(ctx context.Context, walletID int64) error {
	return s.increment(ctx, walletID, "total_trades_created")
}

// IncrementDeleted bumps the deleted-trades counter.
func (s *StatisticsStore) IncrementDeleted(ctx context.Context, walletID int64) error {
	return s.increment(ctx, walletID, "total_trades_deleted")
}

func (s *StatisticsStore) increment(ctx context.Context, walletID int64, column string) error {
	if err := s.Ensure(ctx, walletID); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE statistics SET %s = %s + 1 WHERE wallet_id = ?`, column, column)
	if _, err := s.db.conn(ctx).ExecContext(ctx, query, walletID); err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}
