package port

import "errors"

// Every violated precondition surfaces as a distinct sentinel so callers
// (and the HTTP layer) can branch on the rejection reason with errors.Is.
// Nothing is silently recovered; a failed call commits no state.
var (
	// authorization
	ErrNotOwner = errors.New("not owner")

	// validation
	ErrGoalExceedsCap    = errors.New("goal exceeds cap")
	ErrInvalidDeadline   = errors.New("invalid deadline")
	ErrBelowMinDuration  = errors.New("campaign duration below minimum")
	ErrAboveMaxDuration  = errors.New("campaign duration above maximum")
	ErrAmountNotPositive = errors.New("amount must be > 0")
	ErrTooManyTiers      = errors.New("max 5 tiers")
	ErrNoTiers           = errors.New("at least one tier required")
	ErrInvalidTier       = errors.New("invalid tier index")

	// state
	ErrNotPublished     = errors.New("not published yet")
	ErrSoldOut          = errors.New("already sold out")
	ErrNotRefundable    = errors.New("not refundable")
	ErrNotAllowed       = errors.New("not allowed")
	ErrAlreadyWithdrawn = errors.New("already withdrawn")

	// accounting
	ErrExceedsHardCap = errors.New("exceeds hard cap")
	ErrNoContribution = errors.New("no contribution")

	// policy
	ErrPlatformPaused         = errors.New("platform paused")
	ErrAssetNotAllowed        = errors.New("funding asset not allowed")
	ErrTooManyActiveCampaigns = errors.New("too many active campaigns")

	// collaborators
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrAssetTransfer    = errors.New("asset transfer failed")
)
