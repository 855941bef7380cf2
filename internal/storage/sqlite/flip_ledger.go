package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

// FlipLedger implements storage.FlipLedger using SQLite.
type FlipLedger struct {
	db *DB
}

// NewFlipLedger creates a new FlipLedger.
func NewFlipLedger(db *DB) *FlipLedger {
	return &FlipLedger{db: db}
}

// Compile-time interface check.
var _ storage.FlipLedger = (*FlipLedger)(nil)

const flipColumns = `
	ledger_id, trade_id, ts, side,
	amount_in, token_in_address, amount_out, token_out_address,
	price, transaction_id, profit_display, profit_usd, profit_xrd`

// Append inserts a leg. Returns ErrDuplicateKey if the transaction id is
// already recorded.
func (s *FlipLedger) Append(ctx context.Context, leg *domain.FlipLeg) (int64, error) {
	if leg.Side != domain.SideBuy && leg.Side != domain.SideSell {
		return 0, fmt.Errorf("%w: leg side %q", storage.ErrInvalidInput, leg.Side)
	}

	query := `
		INSERT INTO trade_flips (
			trade_id, ts, side,
			amount_in, token_in_address, amount_out, token_out_address,
			price, transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.conn(ctx).ExecContext(ctx, query,
		leg.TradeID, leg.Timestamp, leg.Side,
		leg.AmountIn.String(), leg.TokenInAddress,
		leg.AmountOut.String(), leg.TokenOutAddress,
		leg.Price, nullString(leg.TransactionID),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return 0, storage.ErrDuplicateKey
		}
		return 0, fmt.Errorf("append flip leg: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("flip leg insert id: %w", err)
	}
	leg.LedgerID = id
	return id, nil
}

// Recent retrieves the n most recent legs for a trade, newest first.
func (s *FlipLedger) Recent(ctx context.Context, tradeID string, n int) ([]*domain.FlipLeg, error) {
	query := `SELECT` + flipColumns + ` FROM trade_flips WHERE trade_id = ? ORDER BY ledger_id DESC LIMIT ?`
	rows, err := s.db.conn(ctx).QueryContext(ctx, query, tradeID, n)
	if err != nil {
		return nil, fmt.Errorf("recent flip legs: %w", err)
	}
	defer rows.Close()

	return scanFlipLegs(rows)
}

// ByTrade retrieves all legs for a trade in insertion order.
func (s *FlipLedger) ByTrade(ctx context.Context, tradeID string) ([]*domain.FlipLeg, error) {
	query := `SELECT` + flipColumns + ` FROM trade_flips WHERE trade_id = ? ORDER BY ledger_id ASC`
	rows, err := s.db.conn(ctx).QueryContext(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("flip legs by trade: %w", err)
	}
	defer rows.Close()

	return scanFlipLegs(rows)
}

// AnnotateLatest attaches profit figures to the most recent leg of the trade.
func (s *FlipLedger) AnnotateLatest(ctx context.Context, tradeID string, ann domain.ProfitAnnotation) error {
	query := `
		UPDATE trade_flips
		SET profit_display = ?, profit_usd = ?, profit_xrd = ?
		WHERE ledger_id = (SELECT MAX(ledger_id) FROM trade_flips WHERE trade_id = ?)
	`
	res, err := s.db.conn(ctx).ExecContext(ctx, query,
		ann.Display, ann.USD.String(), ann.XRD.String(), tradeID)
	if err != nil {
		return fmt.Errorf("annotate latest flip leg: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("annotate flip leg rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// scanFlipLegs scans rows into FlipLegs, decoding the optional annotation.
func scanFlipLegs(rows *sql.Rows) ([]*domain.FlipLeg, error) {
	var legs []*domain.FlipLeg

	for rows.Next() {
		var (
			leg                 domain.FlipLeg
			amountIn, amountOut string
			txID                sql.NullString
			display             sql.NullString
			usd, xrd            sql.NullString
		)

		err := rows.Scan(
			&leg.LedgerID, &leg.TradeID, &leg.Timestamp, &leg.Side,
			&amountIn, &leg.TokenInAddress, &amountOut, &leg.TokenOutAddress,
			&leg.Price, &txID, &display, &usd, &xrd,
		)
		if err != nil {
			return nil, fmt.Errorf("scan flip leg row: %w", err)
		}

		if leg.AmountIn, err = parseDecimal(amountIn); err != nil {
			return nil, err
		}
		if leg.AmountOut, err = parseDecimal(amountOut); err != nil {
			return nil, err
		}
		leg.TransactionID = txID.String

		if display.Valid {
			ann := domain.ProfitAnnotation{Display: display.String}
			if ann.USD, err = parseNullDecimal(usd); err != nil {
				return nil, err
			}
			if ann.XRD, err = parseNullDecimal(xrd); err != nil {
				return nil, err
			}
			leg.Annotation = &ann
		}

		legs = append(legs, &leg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flip leg rows: %w", err)
	}
	return legs, nil
}
