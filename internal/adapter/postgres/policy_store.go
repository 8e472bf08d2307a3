package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Muzikie/melodyne/internal/core/domain"
)

// PolicyStore implements port.ConfigPolicy over the single-row
// platform_config table. The campaign engine only reads the row; whoever
// governs the platform writes it (the seeder installs the initial values).
type PolicyStore struct {
	pool *pgxpool.Pool
}

// NewPolicyStore returns a policy reader over the pool.
func NewPolicyStore(pool *pgxpool.Pool) *PolicyStore {
	return &PolicyStore{pool: pool}
}

// Snapshot reads the current platform settings.
func (s *PolicyStore) Snapshot(ctx context.Context) (domain.Policy, error) {
	var (
		p      domain.Policy
		minSec int64
		maxSec int64
	)
	err := s.pool.QueryRow(ctx, `SELECT paused, allowed_assets, min_duration_seconds, max_duration_seconds,
    max_active_per_owner, creation_fee, creation_fee_asset, fee_recipient, platform_fee_bps
FROM platform_config WHERE id = 1`).
		Scan(&p.Paused, &p.AllowedAssets, &minSec, &maxSec,
			&p.MaxActivePerOwner, &p.CreationFee, &p.CreationFeeAsset, &p.FeeRecipient, &p.PlatformFeeBps)
	if err != nil {
		return domain.Policy{}, err
	}
	p.MinDuration = time.Duration(minSec) * time.Second
	p.MaxDuration = time.Duration(maxSec) * time.Second
	return p, nil
}

// Ensure installs the given settings when no config row exists yet. An
// existing row wins, so externally applied changes survive restarts.
func (s *PolicyStore) Ensure(ctx context.Context, p domain.Policy) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO platform_config
    (id, paused, allowed_assets, min_duration_seconds, max_duration_seconds,
     max_active_per_owner, creation_fee, creation_fee_asset, fee_recipient, platform_fee_bps, updated_at)
VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8,$9,now()) ON CONFLICT (id) DO NOTHING`,
		p.Paused, p.AllowedAssets, int64(p.MinDuration/time.Second), int64(p.MaxDuration/time.Second),
		p.MaxActivePerOwner, p.CreationFee, p.CreationFeeAsset, p.FeeRecipient, p.PlatformFeeBps)
	return err
}
