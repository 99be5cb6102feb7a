package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"crowdfund/internal/model"

	"github.com/stretchr/testify/require"
)

// 收款方回调在划转过程中尝试回调账本
func TestReentrantWithdrawIsRejected(t *testing.T) {
	f := newFixture(t)
	c := f.create("reentrant", 1000, 5)
	f.donate("donor1", c.ID, 1000)
	f.clock.Advance(5 * day)

	var (
		nested   []error
		observed *model.Campaign
	)
	f.wallet.OnReceive(testCreator, func(ctx context.Context, from string, amount int64) error {
		_, err := f.ledger.WithdrawFunds(ctx, testCreator, c.ID)
		nested = append(nested, err)
		_, err = f.ledger.GetRefund(ctx, testCreator, c.ID)
		nested = append(nested, err)
		_, err = f.ledger.WithdrawPlatformFees(ctx, testOwner)
		nested = append(nested, err)

		// 回调中看到的已经是结算后的状态
		observed, err = f.ledger.Campaign(ctx, c.ID)
		require.NoError(t, err)
		return nil
	})

	settlement, err := f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(980), settlement.Payout)

	require.Len(t, nested, 3)
	for _, err := range nested {
		require.ErrorIs(t, err, ErrReentrantCall)
	}
	require.True(t, observed.Withdrawn)
	require.False(t, observed.Active)

	require.Equal(t, int64(980), f.balance(testCreator))
	require.False(t, f.ledger.Busy())
	f.assertConservation()
}

func TestReentrantRefundIsRejected(t *testing.T) {
	f := newFixture(t)
	c := f.create("reentrant refund", 1000, 5)
	f.donate("attacker", c.ID, 300)
	f.clock.Advance(5 * day)

	var nested []error
	f.wallet.OnReceive("attacker", func(ctx context.Context, from string, amount int64) error {
		_, err := f.ledger.GetRefund(ctx, "attacker", c.ID)
		nested = append(nested, err)
		_, err = f.ledger.Donate(ctx, "attacker", c.ID, amount)
		nested = append(nested, err)
		return nil
	})

	refunded, err := f.ledger.GetRefund(f.ctx, "attacker", c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(300), refunded)
	require.Equal(t, []error{ErrReentrantCall, ErrReentrantCall}, nested)

	_, err = f.ledger.GetRefund(f.ctx, "attacker", c.ID)
	require.ErrorIs(t, err, ErrNoContribution)
	require.Equal(t, int64(300), f.balance("attacker"))
	f.assertConservation()
}

func TestWithdrawTransferFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	c := f.create("rollback", 1000, 5)
	f.donate("donor1", c.ID, 1200)
	f.clock.Advance(5 * day)

	f.wallet.OnReceive(testCreator, func(context.Context, string, int64) error {
		return errors.New("receiver is broken")
	})

	_, err := f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.ErrorIs(t, err, ErrTransferFailed)

	stored := f.campaign(c.ID)
	require.False(t, stored.Withdrawn)
	require.True(t, stored.Active)
	require.Equal(t, int64(1200), stored.Raised)

	state, err := f.ledger.GuardState(f.ctx)
	require.NoError(t, err)
	require.Zero(t, state.FeeBalance)
	require.Zero(t, f.balance(testCreator))
	f.assertConservation()

	f.wallet.OnReceive(testCreator, nil)
	settlement, err := f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(24), settlement.Fee)
	require.Equal(t, int64(1176), settlement.Payout)
	f.assertConservation()
}

func TestRefundTransferFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	c := f.create("refund rollback", 1000, 5)
	f.donate("donor1", c.ID, 400)
	f.donate("donor2", c.ID, 100)
	f.clock.Advance(5 * day)

	f.wallet.OnReceive("donor1", func(context.Context, string, int64) error {
		return errors.New("cannot receive")
	})

	_, err := f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.ErrorIs(t, err, ErrTransferFailed)

	amount, err := f.ledger.Contribution(f.ctx, c.ID, "donor1")
	require.NoError(t, err)
	require.Equal(t, int64(400), amount)
	require.Equal(t, int64(500), f.campaign(c.ID).Raised)
	f.assertConservation()

	refunded, err := f.ledger.GetRefund(f.ctx, "donor2", c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), refunded)
	require.Equal(t, int64(400), f.campaign(c.ID).Raised)
	f.assertConservation()
}

func TestGuardReleasedWhenTransferPanics(t *testing.T) {
	f := newFixture(t)
	c := f.create("panic", 100, 1)
	f.donate("donor1", c.ID, 100)
	f.clock.Advance(day)

	f.wallet.OnReceive(testCreator, func(context.Context, string, int64) error {
		panic("receiver exploded")
	})
	require.Panics(t, func() {
		_, _ = f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	})
	require.False(t, f.ledger.Busy())
	require.False(t, f.campaign(c.ID).Withdrawn)

	f.wallet.OnReceive(testCreator, nil)
	_, err := f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.NoError(t, err)
}

func TestPlatformFees(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.ledger.UpdatePlatformFee(f.ctx, testCreator, 5), ErrUnauthorized)
	require.ErrorIs(t, f.ledger.UpdatePlatformFee(f.ctx, testOwner, MaxFeePercent+1), ErrInvalidInput)
	require.ErrorIs(t, f.ledger.UpdatePlatformFee(f.ctx, testOwner, -1), ErrInvalidInput)
	require.NoError(t, f.ledger.UpdatePlatformFee(f.ctx, testOwner, 5))

	_, err := f.ledger.WithdrawPlatformFees(f.ctx, testOwner)
	require.ErrorIs(t, err, ErrNothingToWithdraw)

	c := f.create("fees", 999, 1)
	f.donate("donor1", c.ID, 999)
	f.clock.Advance(day)

	settlement, err := f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(49), settlement.Fee)
	require.Equal(t, int64(950), settlement.Payout)

	_, err = f.ledger.WithdrawPlatformFees(f.ctx, testCreator)
	require.ErrorIs(t, err, ErrUnauthorized)

	withdrawn, err := f.ledger.WithdrawPlatformFees(f.ctx, testOwner)
	require.NoError(t, err)
	require.Equal(t, int64(49), withdrawn)
	require.Equal(t, int64(49), f.balance(testOwner))

	_, err = f.ledger.WithdrawPlatformFees(f.ctx, testOwner)
	require.ErrorIs(t, err, ErrNothingToWithdraw)
	f.assertConservation()
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t)
	c := f.create("emergency", 10000, 10)
	f.donate("donor1", c.ID, 700)
	f.donate("donor2", c.ID, 300)
	empty := f.create("empty", 10000, 10)

	_, err := f.ledger.EmergencyWithdraw(f.ctx, testOwner, c.ID)
	require.ErrorIs(t, err, ErrNotPaused)

	require.NoError(t, f.ledger.Pause(f.ctx, testOwner))

	_, err = f.ledger.EmergencyWithdraw(f.ctx, testCreator, c.ID)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.ledger.EmergencyWithdraw(f.ctx, testOwner, empty.ID)
	require.ErrorIs(t, err, ErrNothingToWithdraw)
	_, err = f.ledger.EmergencyWithdraw(f.ctx, testOwner, 77)
	require.ErrorIs(t, err, ErrNotFound)

	drained, err := f.ledger.EmergencyWithdraw(f.ctx, testOwner, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), drained)
	require.Equal(t, int64(1000), f.balance(testOwner))

	stored := f.campaign(c.ID)
	require.Zero(t, stored.Raised)
	require.True(t, stored.Withdrawn)
	require.False(t, stored.Active)

	// 出资记录保留，作为线下赔付依据
	amount, err := f.ledger.Contribution(f.ctx, c.ID, "donor1")
	require.NoError(t, err)
	require.Equal(t, int64(700), amount)

	rec, err := f.ledger.ReconcileCampaign(f.ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, Reconciliation{CampaignID: c.ID, Raised: 0, Contributions: 700, Drained: true, Balanced: true}, *rec)

	_, err = f.ledger.EmergencyWithdraw(f.ctx, testOwner, c.ID)
	require.ErrorIs(t, err, ErrAlreadySettled)

	f.clock.Advance(10 * day)
	_, err = f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.ErrorIs(t, err, ErrAlreadySettled)
	f.assertConservation()
}

func TestConservationAcrossMixedOperations(t *testing.T) {
	f := newFixture(t)
	success := f.create("success", 500, 3)
	failure := f.create("failure", 5000, 3)
	cancelled := f.create("cancelled", 5000, 10)

	f.donate("a", success.ID, 200)
	f.donate("b", success.ID, 350)
	f.donate("a", failure.ID, 120)
	f.donate("c", failure.ID, 80)
	f.donate("b", cancelled.ID, 999)
	f.donate("c", cancelled.ID, 1)
	f.assertConservation()

	require.NoError(t, f.ledger.CancelCampaign(f.ctx, testCreator, cancelled.ID, "scope change"))
	_, err := f.ledger.GetRefund(f.ctx, "b", cancelled.ID)
	require.NoError(t, err)
	f.assertConservation()

	f.clock.Advance(3 * day)
	_, err = f.ledger.WithdrawFunds(f.ctx, testCreator, success.ID)
	require.NoError(t, err)
	f.assertConservation()

	_, err = f.ledger.GetRefund(f.ctx, "a", failure.ID)
	require.NoError(t, err)
	_, err = f.ledger.GetRefund(f.ctx, "c", failure.ID)
	require.NoError(t, err)
	_, err = f.ledger.GetRefund(f.ctx, "c", cancelled.ID)
	require.NoError(t, err)
	f.assertConservation()

	_, err = f.ledger.WithdrawPlatformFees(f.ctx, testOwner)
	require.NoError(t, err)
	f.assertConservation()
	require.Zero(t, f.balance(testCustody))

	// 每个账户最终拿回的金额
	require.Equal(t, int64(120), f.balance("a"))
	require.Equal(t, int64(999), f.balance("b"))
	require.Equal(t, int64(81), f.balance("c"))
	require.Equal(t, int64(539), f.balance(testCreator))
	require.Equal(t, int64(11), f.balance(testOwner))
}

// 发起人收款后在回调里查询余额并把款项转给供应商，控制权正常返回账本
func TestCreatorHookForwardsPayout(t *testing.T) {
	f := newFixture(t)
	c := f.create("forward payout", 1000, 5)
	f.donate("donor1", c.ID, 1000)
	f.clock.Advance(5 * day)

	var seen int64
	f.wallet.OnReceive(testCreator, func(ctx context.Context, from string, amount int64) error {
		balance, err := f.wallet.Balance(ctx, testCreator)
		if err != nil {
			return err
		}
		seen = balance
		return f.wallet.Transfer(ctx, testCreator, "supplier", amount)
	})

	ctx, cancel := context.WithTimeout(f.ctx, 5*time.Second)
	defer cancel()
	settlement, err := f.ledger.WithdrawFunds(ctx, testCreator, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(980), settlement.Payout)
	require.Equal(t, int64(980), seen)

	require.False(t, f.ledger.Busy())
	require.Zero(t, f.balance(testCreator))
	require.Equal(t, int64(980), f.balance("supplier"))

	_, err = f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.ErrorIs(t, err, ErrAlreadySettled)
	f.assertConservation()
}
