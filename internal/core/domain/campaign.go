package domain

import "time"

// Status is the lifecycle state of a campaign. Draft campaigns are being
// set up by their owner, published campaigns accept contributions, and the
// remaining three states are terminal: once reached, no tier, contribution
// or status mutation is possible.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPublished  Status = "published"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusSoldOut    Status = "sold_out"
)

// Terminal reports whether no further status transition exists.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusSoldOut:
		return true
	}
	return false
}

// MaxTiers bounds the tier list of a single campaign.
const MaxTiers = 5

// Tier is a fixed pledge amount donors commit to per contribution call.
// Tiers are append-only while the campaign is in draft and immutable after
// publishing, since pledges reference a tier by index.
type Tier struct {
	Index  int
	Amount int64
}

// Campaign represents one fundraising effort. Amounts are stored in the
// funding asset's smallest unit (e.g. micro-USDC).
type Campaign struct {
	ID       int64
	Owner    string
	Goal     int64
	HardCap  int64
	Deadline time.Time
	Tiers    []Tier
	Status   Status

	// TotalContributed is a historical high-water mark used for goal and
	// cap comparisons. Refunds never reduce it.
	TotalContributed int64

	// OwnerWithdrawn is set exactly once, before the payout transfer is
	// issued, and guards against double withdrawal.
	OwnerWithdrawn bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resolve derives the campaign's current status from stored facts and the
// given time. It is pure and idempotent: terminal statuses are returned
// unchanged, and a draft never transitions on its own. Reaching the hard
// cap takes priority over deadline evaluation, so a capped campaign is
// sold out even before its deadline.
func Resolve(c *Campaign, now time.Time) Status {
	if c.Status.Terminal() || c.Status == StatusDraft {
		return c.Status
	}
	if c.TotalContributed >= c.HardCap {
		return StatusSoldOut
	}
	if !now.Before(c.Deadline) {
		if c.TotalContributed >= c.Goal {
			return StatusSuccessful
		}
		return StatusFailed
	}
	return StatusPublished
}
