package port

import "context"

// FundingAsset is the engine's view of the external value-moving entity a
// campaign is denominated in. The engine holds pledged funds in a custody
// account of this asset and never trusts a transfer unless the call returns
// nil; any error is a hard failure of the enclosing operation.
type FundingAsset interface {
	// Symbol identifies the asset (e.g. "USDC").
	Symbol() string

	// BalanceOf returns the account's balance in smallest units.
	BalanceOf(ctx context.Context, account string) (int64, error)

	// TransferFrom pulls amount from the from-account into to, consuming
	// the from-account's allowance granted to the engine's custody
	// account.
	TransferFrom(ctx context.Context, from, to string, amount int64) error

	// Transfer pushes amount out of the custody account to the recipient.
	Transfer(ctx context.Context, to string, amount int64) error
}

// TokenAdmin is the management surface of ledger-backed assets. It exists
// for seeding and operational tooling; the campaign engine itself only ever
// uses FundingAsset.
type TokenAdmin interface {
	Mint(ctx context.Context, account string, amount int64) error
	Approve(ctx context.Context, owner, spender string, amount int64) error
	Allowance(ctx context.Context, owner, spender string) (int64, error)
}
