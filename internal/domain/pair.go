package domain

// TradePair identifies the two tokens a trade rotates between.
// Corresponds to the trade_pairs table, owned by the application shell.
type TradePair struct {
	TradePairID       int64
	BaseTokenAddress  string
	BaseTokenSymbol   string
	QuoteTokenAddress string
	QuoteTokenSymbol  string
}

// Label returns the pair's display label, e.g. "DFP2/XRD".
func (p *TradePair) Label() string {
	return p.BaseTokenSymbol + "/" + p.QuoteTokenSymbol
}

// Wallet maps a ledger address to the internal wallet id used for
// statistics routing. Owned by the application shell.
type Wallet struct {
	WalletID int64
	Address  string
	Label    string
}
