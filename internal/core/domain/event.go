package domain

import "time"

// EventType identifies an observable side effect of a campaign operation.
type EventType string

const (
	EventCampaignCreated   EventType = "campaign_created"
	EventTierAdded         EventType = "tier_added"
	EventCampaignPublished EventType = "campaign_published"
	EventContributionMade  EventType = "contribution_made"
	EventRefundIssued      EventType = "refund_issued"
	EventOwnerWithdrawn    EventType = "owner_withdrawn"
)

// Event is a notification emitted after a campaign mutation was committed.
// Account is the party relevant to the event: the owner for creation,
// publishing and withdrawal, the donor for contributions and refunds.
// Amount is zero for events with no monetary component.
type Event struct {
	ID         string
	Type       EventType
	CampaignID int64
	Account    string
	Amount     int64
	At         time.Time
}
