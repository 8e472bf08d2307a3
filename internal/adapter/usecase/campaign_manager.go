package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Muzikie/melodyne/internal/core/domain"
	"github.com/Muzikie/melodyne/internal/core/port"
)

// CampaignManager implements port.CampaignUseCase. It is the only mutator
// of campaign state, the sole caller of funding-asset transfers and the
// sole reader of the config policy.
//
// Every mutating call follows the same ordering: resolve the campaign's
// status lazily, apply the operation's guards, confirm any inbound value,
// commit state, and only then issue outbound transfers, with guard state
// (ledger zeroing, the withdrawn flag) persisted before the push. Calls
// addressing the same campaign id are serialized by a keyed mutex; calls on
// different campaigns are independent.
type CampaignManager struct {
	repo     port.CampaignRepository
	asset    port.FundingAsset
	feeAsset port.FundingAsset
	policy   port.ConfigPolicy
	events   port.EventSink

	// custody is the account holding pledged funds between contribution
	// and settlement.
	custody string

	now   func() time.Time
	locks keyedLocks
}

// NewCampaignManager wires the engine. feeAsset is the asset the campaign
// creation fee is denominated in; pass the funding asset itself when the
// platform charges fees in the same token. now may be nil for wall-clock
// time.
func NewCampaignManager(
	repo port.CampaignRepository,
	asset port.FundingAsset,
	feeAsset port.FundingAsset,
	policy port.ConfigPolicy,
	events port.EventSink,
	custody string,
	now func() time.Time,
) *CampaignManager {
	if feeAsset == nil {
		feeAsset = asset
	}
	if now == nil {
		now = time.Now
	}
	return &CampaignManager{
		repo:     repo,
		asset:    asset,
		feeAsset: feeAsset,
		policy:   policy,
		events:   events,
		custody:  custody,
		now:      now,
	}
}

// CreateCampaign enforces the platform policy, collects the creation fee
// and stores a new draft campaign.
func (m *CampaignManager) CreateCampaign(ctx context.Context, owner string, goal, hardCap int64, deadline time.Time) (int64, error) {
	pol, err := m.policy.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("load policy: %w", err)
	}
	if pol.Paused {
		return 0, port.ErrPlatformPaused
	}
	if !pol.AssetAllowed(m.asset.Symbol()) {
		return 0, port.ErrAssetNotAllowed
	}
	if goal <= 0 || hardCap <= 0 {
		return 0, port.ErrAmountNotPositive
	}
	if goal > hardCap {
		return 0, port.ErrGoalExceedsCap
	}

	now := m.now()
	if !deadline.After(now) {
		return 0, port.ErrInvalidDeadline
	}
	duration := deadline.Sub(now)
	if pol.MinDuration > 0 && duration < pol.MinDuration {
		return 0, port.ErrBelowMinDuration
	}
	if pol.MaxDuration > 0 && duration > pol.MaxDuration {
		return 0, port.ErrAboveMaxDuration
	}

	if pol.MaxActivePerOwner > 0 {
		active, err := m.repo.CountActiveByOwner(ctx, owner, now)
		if err != nil {
			return 0, fmt.Errorf("count active campaigns: %w", err)
		}
		if active >= pol.MaxActivePerOwner {
			return 0, port.ErrTooManyActiveCampaigns
		}
	}

	// The fee moves before the campaign exists; a failed pull aborts
	// creation with nothing stored.
	if pol.CreationFee > 0 {
		if err := m.feeAsset.TransferFrom(ctx, owner, pol.FeeRecipient, pol.CreationFee); err != nil {
			return 0, fmt.Errorf("%w: creation fee: %v", port.ErrAssetTransfer, err)
		}
	}

	id, err := m.repo.Create(ctx, &domain.Campaign{
		Owner:    owner,
		Goal:     goal,
		HardCap:  hardCap,
		Deadline: deadline,
		Status:   domain.StatusDraft,
	})
	if err != nil {
		return 0, fmt.Errorf("store campaign: %w", err)
	}

	m.publish(ctx, domain.EventCampaignCreated, id, owner, 0)
	return id, nil
}

// AddTier appends a pledge tier to a draft campaign.
func (m *CampaignManager) AddTier(ctx context.Context, caller string, campaignID int64, amount int64) error {
	unlock := m.locks.lock(campaignID)
	defer unlock()

	c, err := m.load(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.Owner != caller {
		return port.ErrNotOwner
	}
	if c.Status != domain.StatusDraft {
		return port.ErrNotAllowed
	}
	if amount <= 0 {
		return port.ErrAmountNotPositive
	}
	if len(c.Tiers) >= domain.MaxTiers {
		return port.ErrTooManyTiers
	}

	if err := m.repo.AddTier(ctx, campaignID, len(c.Tiers), amount); err != nil {
		return fmt.Errorf("store tier: %w", err)
	}
	m.publish(ctx, domain.EventTierAdded, campaignID, caller, amount)
	return nil
}

// PublishCampaign opens a draft campaign with at least one tier for
// contributions.
func (m *CampaignManager) PublishCampaign(ctx context.Context, caller string, campaignID int64) error {
	unlock := m.locks.lock(campaignID)
	defer unlock()

	c, err := m.load(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.Owner != caller {
		return port.ErrNotOwner
	}
	if c.Status != domain.StatusDraft {
		return port.ErrNotAllowed
	}
	if len(c.Tiers) == 0 {
		return port.ErrNoTiers
	}

	if err := m.repo.SetStatus(ctx, campaignID, domain.StatusPublished); err != nil {
		return fmt.Errorf("publish campaign: %w", err)
	}
	m.publish(ctx, domain.EventCampaignPublished, campaignID, caller, 0)
	return nil
}

// Contribute pledges the addressed tier's amount to a published campaign.
// The donor's funds are pulled into custody before any state is committed;
// a failed pull leaves the campaign untouched, and a failed commit returns
// the pulled funds.
func (m *CampaignManager) Contribute(ctx context.Context, donor string, campaignID int64, tierIndex int) error {
	unlock := m.locks.lock(campaignID)
	defer unlock()

	c, err := m.loadResolved(ctx, campaignID)
	if err != nil {
		return err
	}
	switch c.Status {
	case domain.StatusPublished:
	case domain.StatusSoldOut:
		return port.ErrSoldOut
	default:
		return port.ErrNotPublished
	}
	if tierIndex < 0 || tierIndex >= len(c.Tiers) {
		return port.ErrInvalidTier
	}
	amount := c.Tiers[tierIndex].Amount
	if c.TotalContributed+amount > c.HardCap {
		return port.ErrExceedsHardCap
	}

	if err := m.asset.TransferFrom(ctx, donor, m.custody, amount); err != nil {
		return fmt.Errorf("%w: pull contribution: %v", port.ErrAssetTransfer, err)
	}

	// A single contribution can itself hit the cap, so the status is
	// re-resolved against the post-contribution total.
	after := *c
	after.TotalContributed += amount
	status := domain.Resolve(&after, m.now())

	if err := m.repo.ApplyContribution(ctx, campaignID, donor, amount, status); err != nil {
		// the pull already happened; hand the funds back
		if rbErr := m.asset.Transfer(ctx, donor, amount); rbErr != nil {
			return fmt.Errorf("record contribution: %w (return transfer also failed: %v)", err, rbErr)
		}
		return fmt.Errorf("record contribution: %w", err)
	}

	m.publish(ctx, domain.EventContributionMade, campaignID, donor, amount)
	return nil
}

// Refund returns the donor's full cumulative contribution of a failed
// campaign. The ledger entry is zeroed before the payout transfer so a
// reentering call observes no remaining contribution.
func (m *CampaignManager) Refund(ctx context.Context, donor string, campaignID int64) error {
	unlock := m.locks.lock(campaignID)
	defer unlock()

	c, err := m.loadResolved(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.Status != domain.StatusFailed {
		return port.ErrNotRefundable
	}

	amount, err := m.repo.ApplyRefund(ctx, campaignID, donor)
	if err != nil {
		return err
	}

	if err := m.asset.Transfer(ctx, donor, amount); err != nil {
		if rbErr := m.repo.RestoreContribution(ctx, campaignID, donor, amount); rbErr != nil {
			return fmt.Errorf("%w: refund payout: %v (ledger restore also failed: %v)", port.ErrAssetTransfer, err, rbErr)
		}
		return fmt.Errorf("%w: refund payout: %v", port.ErrAssetTransfer, err)
	}

	m.publish(ctx, domain.EventRefundIssued, campaignID, donor, amount)
	return nil
}

// Withdraw settles a successful or sold-out campaign exactly once. Any
// caller may trigger settlement; the payout destination is always the
// stored campaign owner. The withdrawn flag is set before any outbound
// transfer so a reentering call fails with ErrAlreadyWithdrawn.
func (m *CampaignManager) Withdraw(ctx context.Context, caller string, campaignID int64) error {
	unlock := m.locks.lock(campaignID)
	defer unlock()

	c, err := m.loadResolved(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.Status != domain.StatusSuccessful && c.Status != domain.StatusSoldOut {
		return port.ErrNotAllowed
	}
	if c.OwnerWithdrawn {
		return port.ErrAlreadyWithdrawn
	}

	pol, err := m.policy.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	fee := pol.PlatformFee(c.TotalContributed)
	remainder := c.TotalContributed - fee

	if err := m.repo.SetWithdrawn(ctx, campaignID, true); err != nil {
		return fmt.Errorf("mark withdrawn: %w", err)
	}

	if fee > 0 {
		if err := m.asset.Transfer(ctx, pol.FeeRecipient, fee); err != nil {
			// nothing moved yet; release the guard so settlement can be retried
			if rbErr := m.repo.SetWithdrawn(ctx, campaignID, false); rbErr != nil {
				return fmt.Errorf("%w: fee payout: %v (flag restore also failed: %v)", port.ErrAssetTransfer, err, rbErr)
			}
			return fmt.Errorf("%w: fee payout: %v", port.ErrAssetTransfer, err)
		}
	}

	// A full-fee policy leaves the owner with nothing; the asset rejects
	// zero-amount pushes, so the payout is skipped entirely.
	if remainder > 0 {
		if err := m.asset.Transfer(ctx, c.Owner, remainder); err != nil {
			if fee > 0 {
				// the fee already settled; keep the flag so funds cannot be
				// paid out twice, and surface the partial settlement
				return fmt.Errorf("%w: owner payout after fee settled: %v", port.ErrAssetTransfer, err)
			}
			if rbErr := m.repo.SetWithdrawn(ctx, campaignID, false); rbErr != nil {
				return fmt.Errorf("%w: owner payout: %v (flag restore also failed: %v)", port.ErrAssetTransfer, err, rbErr)
			}
			return fmt.Errorf("%w: owner payout: %v", port.ErrAssetTransfer, err)
		}
	}

	m.publish(ctx, domain.EventOwnerWithdrawn, campaignID, c.Owner, remainder)
	return nil
}

// GetCampaign returns the campaign with its status resolved against the
// current time. Reads do not persist the lazy transition; that happens on
// the next mutating call.
func (m *CampaignManager) GetCampaign(ctx context.Context, campaignID int64) (*port.CampaignView, error) {
	c, err := m.load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	view := &port.CampaignView{
		ID:               c.ID,
		Owner:            c.Owner,
		Goal:             c.Goal,
		HardCap:          c.HardCap,
		Deadline:         c.Deadline,
		Status:           domain.Resolve(c, m.now()),
		TotalContributed: c.TotalContributed,
		OwnerWithdrawn:   c.OwnerWithdrawn,
		Tiers:            make([]port.TierView, 0, len(c.Tiers)),
	}
	for _, t := range c.Tiers {
		view.Tiers = append(view.Tiers, port.TierView{Index: t.Index, Amount: t.Amount})
	}
	return view, nil
}

func (m *CampaignManager) load(ctx context.Context, id int64) (*domain.Campaign, error) {
	c, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load campaign %d: %w", id, err)
	}
	if c == nil {
		return nil, port.ErrCampaignNotFound
	}
	return c, nil
}

// loadResolved loads the campaign and materializes any pending lazy status
// transition before the caller's guards run.
func (m *CampaignManager) loadResolved(ctx context.Context, id int64) (*domain.Campaign, error) {
	c, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if status := domain.Resolve(c, m.now()); status != c.Status {
		if err := m.repo.SetStatus(ctx, id, status); err != nil {
			return nil, fmt.Errorf("persist status %s: %w", status, err)
		}
		c.Status = status
	}
	return c, nil
}

func (m *CampaignManager) publish(ctx context.Context, typ domain.EventType, campaignID int64, account string, amount int64) {
	if m.events == nil {
		return
	}
	m.events.Publish(ctx, domain.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		CampaignID: campaignID,
		Account:    account,
		Amount:     amount,
		At:         m.now(),
	})
}

// keyedLocks serializes calls addressing the same campaign id, mirroring
// the one-call-at-a-time execution the state machine assumes. Entries are
// never removed; the set of campaigns a process touches is bounded.
type keyedLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func (k *keyedLocks) lock(id int64) (unlock func()) {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[int64]*sync.Mutex)
	}
	l, ok := k.m[id]
	if !ok {
		l = &sync.Mutex{}
		k.m[id] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
