package port

import (
	"context"
	"time"

	"github.com/Muzikie/melodyne/internal/core/domain"
)

// CampaignRepository is the persistence port for campaigns and their
// contribution ledgers. Each method is one atomic unit of work;
// implementations must make the composite mutations (ApplyContribution,
// ApplyRefund) all-or-nothing.
type CampaignRepository interface {
	// Create stores a new draft campaign and returns its assigned id.
	Create(ctx context.Context, c *domain.Campaign) (int64, error)

	// GetByID loads a campaign with its tiers. Returns (nil, nil) when the
	// id is unknown.
	GetByID(ctx context.Context, id int64) (*domain.Campaign, error)

	// AddTier appends a tier at the given index.
	AddTier(ctx context.Context, id int64, index int, amount int64) error

	// SetStatus persists a lazily resolved status transition.
	SetStatus(ctx context.Context, id int64, status domain.Status) error

	// ApplyContribution atomically raises the campaign total and the
	// donor's cumulative ledger entry by amount, persisting status as the
	// post-contribution state. It re-verifies totalContributed + amount
	// <= hardCap inside the transaction and fails with ErrExceedsHardCap
	// when violated.
	ApplyContribution(ctx context.Context, id int64, donor string, amount int64, status domain.Status) error

	// ContributionOf returns the donor's cumulative ledger entry.
	ContributionOf(ctx context.Context, id int64, donor string) (int64, error)

	// ApplyRefund zeroes the donor's ledger entry and returns the amount
	// it held. Fails with ErrNoContribution when the entry is absent or
	// already zero. The campaign total is untouched: it is a historical
	// high-water mark.
	ApplyRefund(ctx context.Context, id int64, donor string) (int64, error)

	// RestoreContribution re-credits a ledger entry after a refund payout
	// could not be issued.
	RestoreContribution(ctx context.Context, id int64, donor string, amount int64) error

	// SetWithdrawn flips the withdrawal guard flag.
	SetWithdrawn(ctx context.Context, id int64, withdrawn bool) error

	// CountActiveByOwner counts the owner's non-terminal campaigns as of
	// now: drafts, and published campaigns whose deadline has not passed.
	CountActiveByOwner(ctx context.Context, owner string, now time.Time) (int, error)
}
