// Package pricing defines the price oracle contract the reconciliation
// engine consumes. The production oracle lives in the application shell
// next to the network clients; this package carries the interface and a
// static implementation for tests and dry runs.
package pricing

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// XRDAddress is the Radix mainnet native token resource address.
const XRDAddress = "resource_rdx1tknxxxxxxxxxradaborxxxxxxxxxxx007685388597"

// ErrUnavailable is returned when the oracle has no quote for a token.
// Callers degrade to fallback conversions instead of failing.
var ErrUnavailable = errors.New("price unavailable")

// TokenPrice is a point-in-time quote for one token. Either field may be
// zero when the upstream feed lags; a zero price counts as missing.
type TokenPrice struct {
	NativePrice decimal.Decimal // price in XRD
	USDPrice    decimal.Decimal
}

// HasNative reports whether the XRD-denominated price is usable.
func (p TokenPrice) HasNative() bool {
	return p.NativePrice.IsPositive()
}

// HasUSD reports whether the USD-denominated price is usable.
func (p TokenPrice) HasUSD() bool {
	return p.USDPrice.IsPositive()
}

// Oracle resolves token addresses to current prices.
type Oracle interface {
	// TokenPrice returns the current quote for a token address.
	// Returns ErrUnavailable when no quote exists.
	TokenPrice(ctx context.Context, address string) (TokenPrice, error)
}

// StaticOracle is a fixed price table. Safe for concurrent use.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]TokenPrice
}

// NewStaticOracle creates an oracle with no quotes.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[string]TokenPrice)}
}

// Compile-time interface check.
var _ Oracle = (*StaticOracle)(nil)

// Set installs or replaces the quote for an address.
func (o *StaticOracle) Set(address string, price TokenPrice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[address] = price
}

// Remove drops the quote for an address.
func (o *StaticOracle) Remove(address string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.prices, address)
}

// TokenPrice returns the stored quote, or ErrUnavailable.
func (o *StaticOracle) TokenPrice(_ context.Context, address string) (TokenPrice, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	p, exists := o.prices[address]
	if !exists {
		return TokenPrice{}, ErrUnavailable
	}
	return p, nil
}
