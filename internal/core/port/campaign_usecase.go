package port

import (
	"context"
	"time"

	"github.com/Muzikie/melodyne/internal/core/domain"
)

// CampaignUseCase is the primary port into the fundraising engine. Every
// mutating operation identifies its caller by account; the engine resolves
// the addressed campaign's status lazily before applying its guards, so the
// deadline-driven transitions happen on the next call that touches the
// campaign rather than on a timer.
type CampaignUseCase interface {
	// CreateCampaign validates the terms against the platform policy,
	// collects the creation fee when one is configured, and appends a new
	// draft campaign owned by the caller. It returns the campaign id.
	CreateCampaign(ctx context.Context, owner string, goal, hardCap int64, deadline time.Time) (int64, error)

	// AddTier appends a pledge tier to a draft campaign. Owner only.
	AddTier(ctx context.Context, caller string, campaignID int64, amount int64) error

	// PublishCampaign moves a draft campaign with at least one tier to
	// published. Owner only.
	PublishCampaign(ctx context.Context, caller string, campaignID int64) error

	// Contribute pledges the amount of the addressed tier. The funds are
	// pulled from the donor's pre-approved allowance into custody before
	// any state is committed.
	Contribute(ctx context.Context, donor string, campaignID int64, tierIndex int) error

	// Refund returns the caller's full cumulative contribution of a failed
	// campaign. Idempotent per donor: a second call finds no contribution.
	Refund(ctx context.Context, donor string, campaignID int64) error

	// Withdraw settles a successful or sold-out campaign exactly once:
	// the platform fee goes to the configured recipient and the remainder
	// to the stored campaign owner, regardless of who triggered it.
	Withdraw(ctx context.Context, caller string, campaignID int64) error

	// GetCampaign returns the campaign with its status resolved against
	// the current time.
	GetCampaign(ctx context.Context, campaignID int64) (*CampaignView, error)
}

// CampaignView is the read DTO returned to transport adapters. It carries
// no domain behaviour.
type CampaignView struct {
	ID               int64         `json:"id"`
	Owner            string        `json:"owner"`
	Goal             int64         `json:"goal"`
	HardCap          int64         `json:"hard_cap"`
	Deadline         time.Time     `json:"deadline"`
	Status           domain.Status `json:"status"`
	TotalContributed int64         `json:"total_contributed"`
	OwnerWithdrawn   bool          `json:"owner_withdrawn"`
	Tiers            []TierView    `json:"tiers"`
}

type TierView struct {
	Index  int   `json:"index"`
	Amount int64 `json:"amount"`
}
