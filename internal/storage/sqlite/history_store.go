package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

// defaultHistoryLimit caps unbounded history queries.
const defaultHistoryLimit = 500

// HistoryStore implements storage.HistoryStore using SQLite.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

const historyColumns = `
	history_id, trade_id, wallet_address, pair, side,
	amount_base, amount_quote, price, usd_value, ts, status,
	strategy_name, transaction_hash,
	profit_display, profit_usd, profit_xrd, created_at`

// Record inserts a history entry and returns its id.
func (s *HistoryStore) Record(ctx context.Context, e *domain.HistoryEntry) (int64, error) {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO trade_history (
			trade_id, wallet_address, pair, side,
			amount_base, amount_quote, price, usd_value, ts, status,
			strategy_name, transaction_hash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.conn(ctx).ExecContext(ctx, query,
		e.TradeID, e.WalletAddress, e.Pair, e.Side,
		e.AmountBase.String(), e.AmountQuote.String(), e.Price,
		e.USDValue.String(), e.Timestamp, e.Status,
		e.StrategyName, e.TransactionHash, e.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("record history entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history entry insert id: %w", err)
	}
	e.HistoryID = id
	return id, nil
}

// AnnotateLatest attaches profit figures to the most recent entry for the trade.
func (s *HistoryStore) AnnotateLatest(ctx context.Context, tradeID string, ann domain.ProfitAnnotation) error {
	query := `
		UPDATE trade_history
		SET profit_display = ?, profit_usd = ?, profit_xrd = ?
		WHERE history_id = (SELECT MAX(history_id) FROM trade_history WHERE trade_id = ?)
	`
	res, err := s.db.conn(ctx).ExecContext(ctx, query,
		ann.Display, ann.USD.String(), ann.XRD.String(), tradeID)
	if err != nil {
		return fmt.Errorf("annotate latest history entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("annotate history rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteLatest removes the most recently inserted entry for the trade.
func (s *HistoryStore) DeleteLatest(ctx context.Context, tradeID string) error {
	query := `
		DELETE FROM trade_history
		WHERE history_id = (SELECT MAX(history_id) FROM trade_history WHERE trade_id = ?)
	`
	res, err := s.db.conn(ctx).ExecContext(ctx, query, tradeID)
	if err != nil {
		return fmt.Errorf("delete latest history entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete history rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Recent retrieves the n most recent entries for a trade, newest first.
func (s *HistoryStore) Recent(ctx context.Context, tradeID string, n int) ([]*domain.HistoryEntry, error) {
	query := `SELECT` + historyColumns + ` FROM trade_history WHERE trade_id = ? ORDER BY history_id DESC LIMIT ?`
	rows, err := s.db.conn(ctx).QueryContext(ctx, query, tradeID, n)
	if err != nil {
		return nil, fmt.Errorf("recent history entries: %w", err)
	}
	defer rows.Close()

	return scanHistoryEntries(rows)
}

// Query retrieves entries matching the filter, newest first.
func (s *HistoryStore) Query(ctx context.Context, f storage.HistoryFilter) ([]*domain.HistoryEntry, error) {
	query := `SELECT` + historyColumns + ` FROM trade_history WHERE 1 = 1`
	var args []any

	if f.WalletAddress != "" {
		query += ` AND wallet_address = ?`
		args = append(args, f.WalletAddress)
	}
	if f.StartTime > 0 {
		query += ` AND ts >= ?`
		args = append(args, f.StartTime)
	}
	if f.EndTime > 0 {
		query += ` AND ts <= ?`
		args = append(args, f.EndTime)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query += ` ORDER BY ts DESC, history_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return scanHistoryEntries(rows)
}

// scanHistoryEntries scans rows into HistoryEntries.
func scanHistoryEntries(rows *sql.Rows) ([]*domain.HistoryEntry, error) {
	var entries []*domain.HistoryEntry

	for rows.Next() {
		var (
			e                                 domain.HistoryEntry
			amountBase, amountQuote, usdValue string
			display, usd, xrd                 sql.NullString
		)

		err := rows.Scan(
			&e.HistoryID, &e.TradeID, &e.WalletAddress, &e.Pair, &e.Side,
			&amountBase, &amountQuote, &e.Price, &usdValue, &e.Timestamp, &e.Status,
			&e.StrategyName, &e.TransactionHash,
			&display, &usd, &xrd, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		if e.AmountBase, err = parseDecimal(amountBase); err != nil {
			return nil, err
		}
		if e.AmountQuote, err = parseDecimal(amountQuote); err != nil {
			return nil, err
		}
		if e.USDValue, err = parseDecimal(usdValue); err != nil {
			return nil, err
		}

		if display.Valid {
			ann := domain.ProfitAnnotation{Display: display.String}
			if ann.USD, err = parseNullDecimal(usd); err != nil {
				return nil, err
			}
			if ann.XRD, err = parseNullDecimal(xrd); err != nil {
				return nil, err
			}
			e.Annotation = &ann
		}

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}
