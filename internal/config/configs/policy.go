package configs

import (
	"time"

	"github.com/Muzikie/melodyne/internal/core/domain"
)

// Policy holds the initial platform settings. They are written to the
// platform_config row only when none exists; after that the stored row is
// authoritative and governed externally.
type Policy struct {
	// Paused blocks campaign creation platform-wide.
	Paused bool `env:"PAUSED" envDefault:"false"`
	// AllowedAssets lists permitted funding asset symbols. Empty allows any.
	AllowedAssets []string `env:"ALLOWED_ASSETS" envDefault:"USDC"`
	// MinDuration and MaxDuration bound deadline - creation time.
	MinDuration time.Duration `env:"MIN_DURATION" envDefault:"1m"`
	MaxDuration time.Duration `env:"MAX_DURATION" envDefault:"240h"`
	// MaxActivePerOwner caps non-terminal campaigns per owner. Zero = no cap.
	MaxActivePerOwner int `env:"MAX_ACTIVE_PER_OWNER" envDefault:"2"`
	// CreationFee (smallest units of CreationFeeAsset) is charged per
	// campaign creation. Zero disables the fee.
	CreationFee      int64  `env:"CREATION_FEE" envDefault:"0"`
	CreationFeeAsset string `env:"CREATION_FEE_ASSET" envDefault:"USDC"`
	// FeeRecipient receives creation and platform fees.
	FeeRecipient string `env:"FEE_RECIPIENT" envDefault:"melodyne-fees"`
	// PlatformFeeBps is the withdrawal fee in basis points (0-10000).
	PlatformFeeBps int64 `env:"PLATFORM_FEE_BPS" envDefault:"500"`
}

// Domain converts the section into the engine's policy snapshot type.
func (p Policy) Domain() domain.Policy {
	return domain.Policy{
		Paused:            p.Paused,
		AllowedAssets:     p.AllowedAssets,
		MinDuration:       p.MinDuration,
		MaxDuration:       p.MaxDuration,
		MaxActivePerOwner: p.MaxActivePerOwner,
		CreationFee:       p.CreationFee,
		CreationFeeAsset:  p.CreationFeeAsset,
		FeeRecipient:      p.FeeRecipient,
		PlatformFeeBps:    p.PlatformFeeBps,
	}
}
