package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Muzikie/melodyne/internal/adapter/postgres"
	"github.com/Muzikie/melodyne/internal/core/domain"
)

// Seed inserts demo data for local development: funded donor accounts with
// allowances granted to the custody account, and a published demo campaign
// with three tiers. Everything is idempotent via ON CONFLICT guards or
// existence checks, so repeated startups do not duplicate data.
func Seed(ctx context.Context, pool *pgxpool.Pool, symbol, custody string) error {
	ledger := postgres.NewTokenLedger(pool, symbol, custody)

	var seeded bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns)`).Scan(&seeded)
	if err != nil {
		return err
	}
	if seeded {
		return nil
	}

	// fund demo donors and grant the custody account an allowance
	donorBalance := int64(1_000_000_000) // 1000 USDC at 6 decimals
	for i := 1; i <= 5; i++ {
		account := fmt.Sprintf("acct:donor-%d", i)
		if err := ledger.Mint(ctx, account, donorBalance); err != nil {
			return err
		}
		if err := ledger.Approve(ctx, account, custody, donorBalance); err != nil {
			return err
		}
	}

	// one published campaign owned by a demo artist
	repo := postgres.NewCampaignRepository(pool)
	id, err := repo.Create(ctx, &domain.Campaign{
		Owner:    "acct:artist-1",
		Goal:     200_000_000, // 200 USDC
		HardCap:  500_000_000,
		Deadline: time.Now().UTC().Add(10 * 24 * time.Hour),
		Status:   domain.StatusDraft,
	})
	if err != nil {
		return err
	}
	for i, amount := range []int64{10_000_000, 50_000_000, 100_000_000} {
		if err := repo.AddTier(ctx, id, i, amount); err != nil {
			return err
		}
	}
	return repo.SetStatus(ctx, id, domain.StatusPublished)
}
