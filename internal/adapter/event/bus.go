package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Muzikie/melodyne/internal/core/domain"
	"github.com/Muzikie/melodyne/internal/core/port"
)

// Bus is an in-process fan-out of campaign notifications. Subscribers get
// buffered channels; a subscriber that falls behind loses events rather
// than blocking the publishing call.
type Bus struct {
	mu   sync.Mutex
	subs []chan domain.Event
}

var (
	_ port.EventSink   = (*Bus)(nil)
	_ port.EventStream = (*Bus)(nil)
)

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new listener and returns its channel.
func (b *Bus) Subscribe() <-chan domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan domain.Event, 64)
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes a listener previously returned by Subscribe. The
// channel is left open; events already buffered can still be drained.
func (b *Bus) Unsubscribe(ch <-chan domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if (<-chan domain.Event)(sub) == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(_ context.Context, ev domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SlogSink logs every notification through a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink writing to the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// Publish logs the event.
func (s *SlogSink) Publish(_ context.Context, ev domain.Event) {
	s.logger.Info("campaign event",
		slog.String("type", string(ev.Type)),
		slog.Int64("campaign_id", ev.CampaignID),
		slog.String("account", ev.Account),
		slog.Int64("amount", ev.Amount),
		slog.String("event_id", ev.ID),
	)
}

// Multi fans one publish out to several sinks.
type Multi []port.EventSink

// Publish delivers the event to each wrapped sink in order.
func (m Multi) Publish(ctx context.Context, ev domain.Event) {
	for _, s := range m {
		s.Publish(ctx, ev)
	}
}
