package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muzikie/melodyne/internal/core/domain"
)

func TestBusFanOut(t *testing.T) {
	b := NewBus()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	ev := domain.Event{ID: "e1", Type: domain.EventContributionMade, CampaignID: 3, Amount: 100}
	b.Publish(context.Background(), ev)

	require.Len(t, ch1, 1)
	require.Len(t, ch2, 1)
	assert.Equal(t, ev, <-ch1)
	assert.Equal(t, ev, <-ch2)
}

func TestBusUnsubscribe(t *testing.T) {
	b := NewBus()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	b.Unsubscribe(ch1)
	b.Publish(context.Background(), domain.Event{ID: "e2", Type: domain.EventRefundIssued})

	assert.Empty(t, ch1)
	require.Len(t, ch2, 1)
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()

	for i := 0; i < 100; i++ {
		b.Publish(context.Background(), domain.Event{ID: "e", Type: domain.EventTierAdded})
	}

	// the buffer bounds delivery; publishing never blocked
	assert.Equal(t, 64, len(ch))
}
