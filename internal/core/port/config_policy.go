package port

import (
	"context"

	"github.com/Muzikie/melodyne/internal/core/domain"
)

// ConfigPolicy exposes the externally governed platform settings the
// campaign engine consults on every mutating call. The engine only reads;
// the setters live with whoever owns the configuration.
type ConfigPolicy interface {
	Snapshot(ctx context.Context) (domain.Policy, error)
}
