package sqlite

import (
	"context"
	"fmt"

	"radbot-core/internal/domain"
	"radbot-core/internal/storage"
)

// WalletDirectory implements storage.WalletDirectory using SQLite.
type WalletDirectory struct {
	db *DB
}

// NewWalletDirectory creates a new WalletDirectory.
func NewWalletDirectory(db *DB) *WalletDirectory {
	return &WalletDirectory{db: db}
}

// Compile-time interface check.
var _ storage.WalletDirectory = (*WalletDirectory)(nil)

// IDByAddress returns the wallet id for an address.
func (s *WalletDirectory) IDByAddress(ctx context.Context, address string) (int64, error) {
	var id int64
	err := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT wallet_id FROM wallets WHERE address = ?`, address).Scan(&id)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("wallet id by address: %w", err)
	}
	return id, nil
}

// Register inserts a wallet if its address is new and returns its id.
// Used by the application shell at startup; not part of the directory
// interface consumed by the engine.
func (s *WalletDirectory) Register(ctx context.Context, address, label string) (int64, error) {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO wallets (address, label) VALUES (?, ?) ON CONFLICT (address) DO NOTHING`,
		address, label)
	if err != nil {
		return 0, fmt.Errorf("register wallet: %w", err)
	}
	return s.IDByAddress(ctx, address)
}

// PairDirectory implements storage.PairDirectory using SQLite.
type PairDirectory struct {
	db *DB
}

// NewPairDirectory creates a new PairDirectory.
func NewPairDirectory(db *DB) *PairDirectory {
	return &PairDirectory{db: db}
}

// Compile-time interface check.
var _ storage.PairDirectory = (*PairDirectory)(nil)

// Get returns the pair. Returns ErrNotFound for unknown ids.
func (s *PairDirectory) Get(ctx context.Context, tradePairID int64) (*domain.TradePair, error) {
	var p domain.TradePair
	err := s.db.conn(ctx).QueryRowContext(ctx, `
		SELECT trade_pair_id, base_token_address, base_token_symbol,
		       quote_token_address, quote_token_symbol
		FROM trade_pairs
		WHERE trade_pair_id = ?`,
		tradePairID).Scan(
		&p.TradePairID, &p.BaseTokenAddress, &p.BaseTokenSymbol,
		&p.QuoteTokenAddress, &p.QuoteTokenSymbol)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade pair: %w", err)
	}
	return &p, nil
}

// Register inserts a pair if the (base, quote) combination is new and
// returns its id. Used by the application shell.
func (s *PairDirectory) Register(ctx context.Context, p *domain.TradePair) (int64, error) {
	_, err := s.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO trade_pairs (
			base_token_address, base_token_symbol,
			quote_token_address, quote_token_symbol
		) VALUES (?, ?, ?, ?)
		ON CONFLICT (base_token_address, quote_token_address) DO NOTHING`,
		p.BaseTokenAddress, p.BaseTokenSymbol,
		p.QuoteTokenAddress, p.QuoteTokenSymbol)
	if err != nil {
		return 0, fmt.Errorf("register trade pair: %w", err)
	}

	var id int64
	err = s.db.conn(ctx).QueryRowContext(ctx, `
		SELECT trade_pair_id FROM trade_pairs
		WHERE base_token_address = ? AND quote_token_address = ?`,
		p.BaseTokenAddress, p.QuoteTokenAddress).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("registered trade pair id: %w", err)
	}
	p.TradePairID = id
	return id, nil
}
