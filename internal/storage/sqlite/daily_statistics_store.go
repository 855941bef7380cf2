package sqlite

import (
	"context"
	"fmt"
	"time"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

// DailyStatisticsStore implements storage.DailyStatisticsStore using SQLite.
type DailyStatisticsStore struct {
	db *DB
}

// NewDailyStatisticsStore creates a new DailyStatisticsStore.
func NewDailyStatisticsStore(db *DB) *DailyStatisticsStore {
	return &DailyStatisticsStore{db: db}
}

// Compile-time interface check.
var _ storage.DailyStatisticsStore = (*DailyStatisticsStore)(nil)

// AddDelta sums the delta into the (wallet, date) row, creating it if
// absent. Stored amounts stay TEXT, so the summation happens in Go via
// read-modify-write; callers run inside a transaction when they need the
// upsert to be atomic with other writes.
func (s *DailyStatisticsStore) AddDelta(ctx context.Context, d *domain.DailyStatistics) error {
	if d.Date == "" {
		return fmt.Errorf("%w: daily statistics date", storage.ErrInvalidInput)
	}
	now := time.Now().Unix()

	return s.db.InTx(ctx, func(ctx context.Context) error {
		row := s.db.conn(ctx).QueryRowContext(ctx, `
			SELECT profit_loss_xrd, profit_loss_usd, volume_xrd, volume_usd
			FROM daily_statistics
			WHERE wallet_id = ? AND date = ?`,
			d.WalletID, d.Date)

		var plXRD, plUSD, volXRD, volUSD string
		err := row.Scan(&plXRD, &plUSD, &volXRD, &volUSD)
		switch {
		case isNotFoundError(err):
			_, err := s.db.conn(ctx).ExecContext(ctx, `
				INSERT INTO daily_statistics (
					wallet_id, date, profit_loss_xrd, profit_loss_usd,
					volume_xrd, volume_usd, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				d.WalletID, d.Date,
				d.ProfitLossXRD.String(), d.ProfitLossUSD.String(),
				d.VolumeXRD.String(), d.VolumeUSD.String(),
				now, now)
			if err != nil {
				return fmt.Errorf("insert daily statistics: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("read daily statistics: %w", err)
		}

		curPLXRD, err := parseDecimal(plXRD)
		if err != nil {
			return err
		}
		curPLUSD, err := parseDecimal(plUSD)
		if err != nil {
			return err
		}
		curVolXRD, err := parseDecimal(volXRD)
		if err != nil {
			return err
		}
		curVolUSD, err := parseDecimal(volUSD)
		if err != nil {
			return err
		}

		_, err = s.db.conn(ctx).ExecContext(ctx, `
			UPDATE daily_statistics
			SET profit_loss_xrd = ?, profit_loss_usd = ?,
			    volume_xrd = ?, volume_usd = ?, updated_at = ?
			WHERE wallet_id = ? AND date = ?`,
			curPLXRD.Add(d.ProfitLossXRD).String(),
			curPLUSD.Add(d.ProfitLossUSD).String(),
			curVolXRD.Add(d.VolumeXRD).String(),
			curVolUSD.Add(d.VolumeUSD).String(),
			now, d.WalletID, d.Date)
		if err != nil {
			return fmt.Errorf("update daily statistics: %w", err)
		}
		return nil
	})
}

// ListRecent retrieves up to days most recent rows for the wallet, newest first.
func (s *DailyStatisticsStore) ListRecent(ctx context.Context, walletID int64, days int) ([]*domain.DailyStatistics, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx, `
		SELECT wallet_id, date, profit_loss_xrd, profit_loss_usd,
		       volume_xrd, volume_usd, created_at, updated_at
		FROM daily_statistics
		WHERE wallet_id = ?
		ORDER BY date DESC
		LIMIT ?`,
		walletID, days)
	if err != nil {
		return nil, fmt.Errorf("list daily statistics: %w", err)
	}
	defer rows.Close()

	var out []*domain.DailyStatistics
	for rows.Next() {
		var (
			d                            domain.DailyStatistics
			plXRD, plUSD, volXRD, volUSD string
		)
		if err := rows.Scan(&d.WalletID, &d.Date, &plXRD, &plUSD,
			&volXRD, &volUSD, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan daily statistics row: %w", err)
		}
		if d.ProfitLossXRD, err = parseDecimal(plXRD); err != nil {
			return nil, err
		}
		if d.ProfitLossUSD, err = parseDecimal(plUSD); err != nil {
			return nil, err
		}
		if d.VolumeXRD, err = parseDecimal(volXRD); err != nil {
			return nil, err
		}
		if d.VolumeUSD, err = parseDecimal(volUSD); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily statistics rows: %w", err)
	}
	return out, nil
}

// PruneBefore deletes the wallet's rows strictly older than cutoffDate.
func (s *DailyStatisticsStore) PruneBefore(ctx context.Context, walletID int64, cutoffDate string) (int64, error) {
	res, err := s.db.conn(ctx).ExecContext(ctx,
		`DELETE FROM daily_statistics WHERE wallet_id = ? AND date < ?`,
		walletID, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("prune daily statistics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune daily statistics rows affected: %w", err)
	}
	return n, nil
}
