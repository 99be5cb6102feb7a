package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"crowdfund/internal/custody"
	"crowdfund/internal/infrastructure/database"
	"crowdfund/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testOwner   = "owner"
	testCustody = "crowdfund:custody"
	testCreator = "creator"
	day         = 24 * time.Hour
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier 记录事件，只在操作成功后断言
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, _ *gorm.DB, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]string, 0, len(n.events))
	for _, e := range n.events {
		types = append(types, e.Type)
	}
	return types
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	wallet   *custody.Wallet
	clock    *fakeClock
	notifier *recordingNotifier
	ledger   *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := database.NewTestDB(t)
	wallet := custody.NewWallet(db, nil)
	wallet.Reserve(testCustody)

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	l := New(db, wallet, testCustody, WithClock(clock), WithNotifier(notifier))
	require.NoError(t, l.Init(context.Background(), testOwner, DefaultFeePercent))

	return &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       db,
		wallet:   wallet,
		clock:    clock,
		notifier: notifier,
		ledger:   l,
	}
}

func (f *fixture) fund(account string, amount int64) {
	f.t.Helper()
	_, err := f.wallet.Deposit(f.ctx, account, amount)
	require.NoError(f.t, err)
}

func (f *fixture) balance(account string) int64 {
	f.t.Helper()
	balance, err := f.wallet.Balance(f.ctx, account)
	require.NoError(f.t, err)
	return balance
}

func (f *fixture) create(title string, goal, durationDays int64) *model.Campaign {
	f.t.Helper()
	c, err := f.ledger.CreateCampaign(f.ctx, testCreator, CreateCampaignRequest{
		Title:        title,
		Description:  "description of " + title,
		Goal:         goal,
		DurationDays: durationDays,
		Category:     model.CategoryTechnology,
	})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) donate(donor string, id, amount int64) {
	f.t.Helper()
	f.fund(donor, amount)
	_, err := f.ledger.Donate(f.ctx, donor, id, amount)
	require.NoError(f.t, err)
}

func (f *fixture) campaign(id int64) *model.Campaign {
	f.t.Helper()
	c, err := f.ledger.Campaign(f.ctx, id)
	require.NoError(f.t, err)
	return c
}

// assertConservation 每个活动的 raised 等于出资余额之和（紧急提取后的活动除外），
// 托管账户余额等于账本负债
func (f *fixture) assertConservation() {
	f.t.Helper()

	var campaigns []*model.Campaign
	require.NoError(f.t, f.db.Order("id ASC").Find(&campaigns).Error)

	for _, c := range campaigns {
		rec, err := f.ledger.ReconcileCampaign(f.ctx, c.ID)
		require.NoError(f.t, err)
		require.True(f.t, rec.Balanced, "campaign %d: raised=%d contributions=%d", c.ID, rec.Raised, rec.Contributions)
		if !rec.Drained {
			require.Equal(f.t, c.Raised, rec.Contributions, "campaign %d", c.ID)
		}
	}

	liabilities, err := f.ledger.Liabilities(f.ctx)
	require.NoError(f.t, err)
	require.Equal(f.t, liabilities, f.balance(testCustody))
	require.False(f.t, f.ledger.Busy())
}

// ============================================================================
// 场景
// ============================================================================

func TestScenarioSuccessfulCampaignSettles(t *testing.T) {
	f := newFixture(t)
	c := f.create("solar lamp", 5000, 30)
	require.Equal(t, int64(0), c.ID)

	f.donate("donor1", c.ID, 2000)
	f.donate("donor2", c.ID, 3000)
	require.Equal(t, int64(5000), f.campaign(c.ID).Raised)
	f.assertConservation()

	f.clock.Advance(30 * day)

	settlement, err := f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.NoError(t, err)
	require.Equal(t, &Settlement{CampaignID: c.ID, Raised: 5000, Fee: 100, Payout: 4900}, settlement)
	require.Equal(t, int64(4900), f.balance(testCreator))

	state, err := f.ledger.GuardState(f.ctx)
	require.NoError(t, err)
	require.Equal(t, int64(100), state.FeeBalance)
	require.Equal(t, int64(100), f.balance(testCustody))

	stored := f.campaign(c.ID)
	require.True(t, stored.Withdrawn)
	require.False(t, stored.Active)

	_, err = f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.ErrorIs(t, err, ErrAlreadySettled)
	_, err = f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.ErrorIs(t, err, ErrAlreadySettled)

	require.Equal(t, int64(4900), f.balance(testCreator))
	f.assertConservation()
}

func TestScenarioFailedCampaignRefundsOnce(t *testing.T) {
	f := newFixture(t)
	c := f.create("board game", 10000, 30)
	f.donate("donor1", c.ID, 3000)

	f.clock.Advance(30 * day)

	_, err := f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.ErrorIs(t, err, ErrGoalNotReached)

	refunded, err := f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3000), refunded)
	require.Equal(t, int64(3000), f.balance("donor1"))

	_, err = f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.ErrorIs(t, err, ErrNoContribution)
	require.Equal(t, int64(3000), f.balance("donor1"))

	amount, err := f.ledger.Contribution(f.ctx, c.ID, "donor1")
	require.NoError(t, err)
	require.Zero(t, amount)
	require.Zero(t, f.campaign(c.ID).Raised)
	f.assertConservation()
}

func TestScenarioCancelledCampaignRefundsBeforeDeadline(t *testing.T) {
	f := newFixture(t)
	c := f.create("documentary", 8000, 30)
	f.donate("donor1", c.ID, 1500)
	f.clock.Advance(2 * day)

	require.ErrorIs(t, f.ledger.CancelCampaign(f.ctx, "donor1", c.ID, "nope"), ErrUnauthorized)
	require.NoError(t, f.ledger.CancelCampaign(f.ctx, testCreator, c.ID, "supplier went bankrupt"))

	stored := f.campaign(c.ID)
	require.False(t, stored.Active)
	require.False(t, stored.Withdrawn)
	require.Equal(t, "supplier went bankrupt", stored.CancelReason)

	phase, err := f.ledger.Phase(f.ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, PhaseCancelled, phase)

	refunded, err := f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1500), refunded)

	f.fund("donor2", 100)
	_, err = f.ledger.Donate(f.ctx, "donor2", c.ID, 100)
	require.ErrorIs(t, err, ErrCampaignCancelled)
	require.ErrorIs(t, f.ledger.CancelCampaign(f.ctx, testCreator, c.ID, ""), ErrCampaignCancelled)

	// 取消只对退款视为已结束
	f.clock.Advance(30 * day)
	_, err = f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.ErrorIs(t, err, ErrCampaignCancelled)
	f.assertConservation()
}

func TestScenarioPauseBlocksNewLiabilitiesOnly(t *testing.T) {
	f := newFixture(t)
	c := f.create("failing", 10000, 10)
	f.donate("donor1", c.ID, 400)
	f.clock.Advance(10 * day)

	require.NoError(t, f.ledger.Pause(f.ctx, testOwner))

	f.fund("donor2", 100)
	_, err := f.ledger.Donate(f.ctx, "donor2", c.ID, 100)
	require.ErrorIs(t, err, ErrPaused)

	_, err = f.ledger.CreateCampaign(f.ctx, testCreator, CreateCampaignRequest{
		Title: "another", Description: "d", Goal: 1, DurationDays: 1, Category: model.CategoryArt,
	})
	require.ErrorIs(t, err, ErrPaused)

	refunded, err := f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(400), refunded)

	require.NoError(t, f.ledger.Unpause(f.ctx, testOwner))
	f.assertConservation()
}

func TestWithdrawBlockedWhilePaused(t *testing.T) {
	f := newFixture(t)
	c := f.create("paused payout", 100, 1)
	f.donate("donor1", c.ID, 100)
	f.clock.Advance(day)

	require.NoError(t, f.ledger.Pause(f.ctx, testOwner))
	_, err := f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.ErrorIs(t, err, ErrPaused)

	require.NoError(t, f.ledger.Unpause(f.ctx, testOwner))
	_, err = f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.NoError(t, err)
}

func TestWithdrawChecks(t *testing.T) {
	f := newFixture(t)
	c := f.create("checks", 1000, 5)
	f.donate("donor1", c.ID, 1000)

	_, err := f.ledger.WithdrawFunds(f.ctx, testCreator, 99)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.ledger.WithdrawFunds(f.ctx, "donor1", c.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.ErrorIs(t, err, ErrCampaignOngoing)

	_, err = f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.ErrorIs(t, err, ErrCampaignOngoing)

	f.clock.Advance(5 * day)

	_, err = f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.ErrorIs(t, err, ErrGoalReached)

	_, err = f.ledger.GetRefund(f.ctx, "stranger", 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGuardStateAndEvents(t *testing.T) {
	f := newFixture(t)
	c := f.create("events", 100, 1)
	f.donate("donor1", c.ID, 100)
	f.clock.Advance(day)
	_, err := f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.NoError(t, err)

	require.Equal(t, []string{EventCampaignCreated, EventDonationReceived, EventFundsWithdrawn}, f.notifier.types())

	state, err := f.ledger.GuardState(f.ctx)
	require.NoError(t, err)
	require.Equal(t, testOwner, state.Owner)
	require.Equal(t, int64(1), state.CampaignCount)
	require.Equal(t, int64(DefaultFeePercent), state.FeePercent)
	require.False(t, state.Paused)
	require.False(t, state.Busy)
}

func TestInitKeepsExistingSettings(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.UpdatePlatformFee(f.ctx, testOwner, 5))

	require.NoError(t, f.ledger.Init(f.ctx, "someone-else", 1))
	state, err := f.ledger.GuardState(f.ctx)
	require.NoError(t, err)
	require.Equal(t, testOwner, state.Owner)
	require.Equal(t, int64(5), state.FeePercent)

	require.ErrorIs(t, f.ledger.Init(f.ctx, "", 1), ErrInvalidInput)
	require.ErrorIs(t, f.ledger.Init(f.ctx, testOwner, MaxFeePercent+1), ErrInvalidInput)
}
