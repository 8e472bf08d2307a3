package port

import (
	"context"

	"github.com/Muzikie/melodyne/internal/core/domain"
)

// EventSink receives notifications after a campaign mutation was committed.
// Publishing is fire-and-forget: a sink must not fail the operation that
// produced the event.
type EventSink interface {
	Publish(ctx context.Context, ev domain.Event)
}

// EventStream lets consumers follow notifications as they are published.
// Every subscriber must be unsubscribed when it stops reading, or its
// channel keeps receiving (and dropping) events for the process lifetime.
type EventStream interface {
	Subscribe() <-chan domain.Event
	Unsubscribe(<-chan domain.Event)
}
