package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Muzikie/melodyne/internal/core/domain"
	"github.com/Muzikie/melodyne/internal/core/port"
)

// CampaignRepository implements port.CampaignRepository using pgxpool for
// PostgreSQL. Composite mutations run in serializable transactions with the
// campaign row locked, so two calls racing on the same campaign cannot both
// pass the in-transaction checks.
type CampaignRepository struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository returns a new repository instance.
func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

// Create stores a new draft campaign and returns its assigned id.
func (r *CampaignRepository) Create(ctx context.Context, c *domain.Campaign) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO campaigns
    (owner_account, goal, hard_cap, deadline, status, total_contributed, owner_withdrawn, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,0,false,now(),now()) RETURNING id`,
		c.Owner, c.Goal, c.HardCap, c.Deadline, c.Status).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetByID loads a campaign with its tiers. Returns (nil, nil) on unknown id.
func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	var c domain.Campaign
	err := r.pool.QueryRow(ctx, `SELECT id, owner_account, goal, hard_cap, deadline, status, total_contributed, owner_withdrawn, created_at, updated_at
FROM campaigns WHERE id = $1`, id).
		Scan(&c.ID, &c.Owner, &c.Goal, &c.HardCap, &c.Deadline, &c.Status, &c.TotalContributed, &c.OwnerWithdrawn, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT tier_index, amount FROM campaign_tiers WHERE campaign_id = $1 ORDER BY tier_index`, id)
	if err != nil {
		return nil, err
	}
	c.Tiers, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Tier, error) {
		var t domain.Tier
		err := row.Scan(&t.Index, &t.Amount)
		return t, err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AddTier appends a tier at the given index.
func (r *CampaignRepository) AddTier(ctx context.Context, id int64, index int, amount int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO campaign_tiers (campaign_id, tier_index, amount, created_at) VALUES ($1,$2,$3,now())`,
		id, index, amount)
	return err
}

// SetStatus persists a lazily resolved status transition.
func (r *CampaignRepository) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	_, err := r.pool.Exec(ctx, `UPDATE campaigns SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

// ApplyContribution raises the campaign total and the donor's cumulative
// ledger entry in one transaction, re-verifying the hard cap on the locked
// row.
func (r *CampaignRepository) ApplyContribution(ctx context.Context, id int64, donor string, amount int64, status domain.Status) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
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

	// lock campaign
	var total, hardCap int64
	err = tx.QueryRow(ctx, `SELECT total_contributed, hard_cap FROM campaigns WHERE id = $1 FOR UPDATE`, id).Scan(&total, &hardCap)
	if err != nil {
		return err
	}
	if total+amount > hardCap {
		err = port.ErrExceedsHardCap
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE campaigns SET total_contributed = total_contributed + $1, status = $2, updated_at = now() WHERE id = $3`,
		amount, status, id)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO contributions (campaign_id, account, amount, created_at, updated_at)
VALUES ($1,$2,$3,now(),now())
ON CONFLICT (campaign_id, account) DO UPDATE SET amount = contributions.amount + EXCLUDED.amount, updated_at = now()`,
		id, donor, amount)
	return err
}

// ContributionOf returns the donor's cumulative ledger entry.
func (r *CampaignRepository) ContributionOf(ctx context.Context, id int64, donor string) (int64, error) {
	var amount int64
	err := r.pool.QueryRow(ctx, `SELECT amount FROM contributions WHERE campaign_id = $1 AND account = $2`, id, donor).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// ApplyRefund zeroes the donor's ledger entry and returns the amount it
// held. The campaign total is untouched.
func (r *CampaignRepository) ApplyRefund(ctx context.Context, id int64, donor string) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	var amount int64
	err = tx.QueryRow(ctx, `SELECT amount FROM contributions WHERE campaign_id = $1 AND account = $2 FOR UPDATE`, id, donor).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && amount <= 0) {
		err = port.ErrNoContribution
		return 0, err
	}
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(ctx, `UPDATE contributions SET amount = 0, updated_at = now() WHERE campaign_id = $1 AND account = $2`, id, donor)
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// RestoreContribution re-credits a ledger entry after a refund payout could
// not be issued.
func (r *CampaignRepository) RestoreContribution(ctx context.Context, id int64, donor string, amount int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO contributions (campaign_id, account, amount, created_at, updated_at)
VALUES ($1,$2,$3,now(),now())
ON CONFLICT (campaign_id, account) DO UPDATE SET amount = contributions.amount + EXCLUDED.amount, updated_at = now()`,
		id, donor, amount)
	return err
}

// SetWithdrawn flips the withdrawal guard flag.
func (r *CampaignRepository) SetWithdrawn(ctx context.Context, id int64, withdrawn bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE campaigns SET owner_withdrawn = $1, updated_at = now() WHERE id = $2`, withdrawn, id)
	return err
}

// CountActiveByOwner counts the owner's non-terminal campaigns. Stored
// statuses are lazily materialized, so a published campaign past its
// deadline is terminal in fact and excluded here even if untouched since.
func (r *CampaignRepository) CountActiveByOwner(ctx context.Context, owner string, now time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM campaigns
WHERE owner_account = $1 AND (status = $2 OR (status = $3 AND deadline > $4))`,
		owner, domain.StatusDraft, domain.StatusPublished, now).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
