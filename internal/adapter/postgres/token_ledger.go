package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Muzikie/melodyne/internal/core/port"
)

var (
	_ port.FundingAsset = (*TokenLedger)(nil)
	_ port.TokenAdmin   = (*TokenLedger)(nil)
)

// TokenLedger implements port.FundingAsset (and port.TokenAdmin) on top of
// PostgreSQL balance and allowance tables. It models an external token with
// approve/transferFrom semantics: the holder account acts as the spender of
// granted allowances and as the source of outbound transfers, mirroring a
// contract address holding custody funds.
type TokenLedger struct {
	pool   *pgxpool.Pool
	symbol string
	holder string
}

// NewTokenLedger returns a ledger for the given asset symbol with holder as
// the custody/spender account.
func NewTokenLedger(pool *pgxpool.Pool, symbol, holder string) *TokenLedger {
	return &TokenLedger{pool: pool, symbol: symbol, holder: holder}
}

// Symbol identifies the asset.
func (t *TokenLedger) Symbol() string { return t.symbol }

// BalanceOf returns the account's balance. Unknown accounts hold zero.
func (t *TokenLedger) BalanceOf(ctx context.Context, account string) (int64, error) {
	var balance int64
	err := t.pool.QueryRow(ctx, `SELECT balance FROM token_accounts WHERE asset = $1 AND account = $2`,
		t.symbol, account).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// TransferFrom moves amount from the from-account to the to-account,
// consuming the allowance from granted to the holder. Balance and allowance
// are checked on locked rows; any shortfall fails the transfer with nothing
// moved.
func (t *TokenLedger) TransferFrom(ctx context.Context, from, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be > 0, got %d", amount)
	}
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	var allowance int64
	err = tx.QueryRow(ctx, `SELECT amount FROM token_allowances WHERE asset = $1 AND owner_account = $2 AND spender = $3 FOR UPDATE`,
		t.symbol, from, t.holder).Scan(&allowance)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("no allowance from %s to %s", from, t.holder)
		return err
	}
	if err != nil {
		return err
	}
	if allowance < amount {
		err = fmt.Errorf("insufficient allowance: have %d, need %d", allowance, amount)
		return err
	}

	if err = t.debit(ctx, tx, from, amount); err != nil {
		return err
	}
	if err = t.credit(ctx, tx, to, amount); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE token_allowances SET amount = amount - $1 WHERE asset = $2 AND owner_account = $3 AND spender = $4`,
		amount, t.symbol, from, t.holder)
	return err
}

// Transfer pushes amount out of the holder account to the recipient.
func (t *TokenLedger) Transfer(ctx context.Context, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be > 0, got %d", amount)
	}
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	if err = t.debit(ctx, tx, t.holder, amount); err != nil {
		return err
	}
	err = t.credit(ctx, tx, to, amount)
	return err
}

// Mint credits newly issued units to the account. Seeding/tooling only.
func (t *TokenLedger) Mint(ctx context.Context, account string, amount int64) error {
	_, err := t.pool.Exec(ctx, `INSERT INTO token_accounts (asset, account, balance)
VALUES ($1,$2,$3)
ON CONFLICT (asset, account) DO UPDATE SET balance = token_accounts.balance + EXCLUDED.balance`,
		t.symbol, account, amount)
	return err
}

// Approve sets (not raises) the allowance the owner grants the spender.
func (t *TokenLedger) Approve(ctx context.Context, owner, spender string, amount int64) error {
	_, err := t.pool.Exec(ctx, `INSERT INTO token_allowances (asset, owner_account, spender, amount)
VALUES ($1,$2,$3,$4)
ON CONFLICT (asset, owner_account, spender) DO UPDATE SET amount = EXCLUDED.amount`,
		t.symbol, owner, spender, amount)
	return err
}

// Allowance returns the remaining allowance from owner to spender.
func (t *TokenLedger) Allowance(ctx context.Context, owner, spender string) (int64, error) {
	var amount int64
	err := t.pool.QueryRow(ctx, `SELECT amount FROM token_allowances WHERE asset = $1 AND owner_account = $2 AND spender = $3`,
		t.symbol, owner, spender).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (t *TokenLedger) debit(ctx context.Context, tx pgx.Tx, account string, amount int64) error {
	var balance int64
	err := tx.QueryRow(ctx, `SELECT balance FROM token_accounts WHERE asset = $1 AND account = $2 FOR UPDATE`,
		t.symbol, account).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && balance < amount) {
		return fmt.Errorf("insufficient balance on %s: have %d, need %d", account, balance, amount)
	}
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE token_accounts SET balance = balance - $1 WHERE asset = $2 AND account = $3`,
		amount, t.symbol, account)
	return err
}

func (t *TokenLedger) credit(ctx context.Context, tx pgx.Tx, account string, amount int64) error {
	_, err := tx.Exec(ctx, `INSERT INTO token_accounts (asset, account, balance)
VALUES ($1,$2,$3)
ON CONFLICT (asset, account) DO UPDATE SET balance = token_accounts.balance + EXCLUDED.balance`,
		t.symbol, account, amount)
	return err
}
