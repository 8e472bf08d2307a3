package domain

import (
	"slices"
	"time"
)

// Policy is a read-only snapshot of the platform-wide settings consulted by
// the campaign manager on every mutating call. The settings themselves are
// governed externally; the engine never writes them.
type Policy struct {
	// Paused blocks campaign creation platform-wide.
	Paused bool

	// AllowedAssets lists funding asset symbols campaigns may be
	// denominated in. An empty list allows any asset.
	AllowedAssets []string

	// MinDuration and MaxDuration bound deadline - creation time. A zero
	// bound is treated as unbounded.
	MinDuration time.Duration
	MaxDuration time.Duration

	// MaxActivePerOwner caps the number of non-terminal campaigns a single
	// owner may hold. Zero means no cap.
	MaxActivePerOwner int

	// CreationFee, when positive, is pulled from the campaign creator in
	// CreationFeeAsset and sent to FeeRecipient before the campaign exists.
	CreationFee      int64
	CreationFeeAsset string

	FeeRecipient string

	// PlatformFeeBps is the withdrawal fee in basis points (0-10000),
	// deducted from the owner payout and sent to FeeRecipient.
	PlatformFeeBps int64
}

// AssetAllowed reports whether campaigns may be denominated in the asset.
func (p Policy) AssetAllowed(symbol string) bool {
	if len(p.AllowedAssets) == 0 {
		return true
	}
	return slices.Contains(p.AllowedAssets, symbol)
}

// FeeBpsDenominator is the basis-point scale for the platform fee.
const FeeBpsDenominator = 10000

// PlatformFee returns the fee owed on the given raised total, floored, so
// division dust stays with the campaign owner.
func (p Policy) PlatformFee(total int64) int64 {
	if p.PlatformFeeBps <= 0 {
		return 0
	}
	return total * p.PlatformFeeBps / FeeBpsDenominator
}
