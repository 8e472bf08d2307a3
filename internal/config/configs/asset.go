package configs

// Asset identifies the funding asset campaigns are denominated in and the
// account that holds pledged funds in custody. One asset per deployment.
type Asset struct {
	// Symbol is the funding asset symbol, e.g. USDC.
	Symbol string `env:"SYMBOL" envDefault:"USDC"`
	// Custody is the ledger account holding pledged funds between
	// contribution and settlement. Donors approve this account as the
	// spender of their allowance.
	Custody string `env:"CUSTODY" envDefault:"melodyne-custody"`
}
