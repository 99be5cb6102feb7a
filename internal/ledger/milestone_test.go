package ledger

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMilestoneLifecycle(t *testing.T) {
	f := newFixture(t)
	c := f.create("milestones", 1000, 10)
	f.donate("donor1", c.ID, 100)
	f.donate("donor2", c.ID, 100)

	_, err := f.ledger.AddMilestone(f.ctx, "donor1", c.ID, "prototype", 300)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.ledger.AddMilestone(f.ctx, testCreator, c.ID, "", 300)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.ledger.AddMilestone(f.ctx, testCreator, c.ID, strings.Repeat("m", MaxMilestoneDescriptionLength+1), 300)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.ledger.AddMilestone(f.ctx, testCreator, c.ID, "prototype", -1)
	require.ErrorIs(t, err, ErrInvalidInput)

	m, err := f.ledger.AddMilestone(f.ctx, testCreator, c.ID, "prototype", 300)
	require.NoError(t, err)
	require.Equal(t, int64(0), m.Index)

	_, err = f.ledger.ApproveMilestone(f.ctx, "donor1", c.ID, 0)
	require.ErrorIs(t, err, ErrMilestoneNotCompleted)

	require.ErrorIs(t, f.ledger.CompleteMilestone(f.ctx, "donor1", c.ID, 0), ErrUnauthorized)
	require.ErrorIs(t, f.ledger.CompleteMilestone(f.ctx, testCreator, c.ID, 5), ErrNotFound)
	require.NoError(t, f.ledger.CompleteMilestone(f.ctx, testCreator, c.ID, 0))
	require.ErrorIs(t, f.ledger.CompleteMilestone(f.ctx, testCreator, c.ID, 0), ErrMilestoneCompleted)

	_, err = f.ledger.ApproveMilestone(f.ctx, "stranger", c.ID, 0)
	require.ErrorIs(t, err, ErrUnauthorized)

	approvals, err := f.ledger.ApproveMilestone(f.ctx, "donor1", c.ID, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), approvals)

	_, err = f.ledger.ApproveMilestone(f.ctx, "donor1", c.ID, 0)
	require.ErrorIs(t, err, ErrAlreadyApproved)

	approvals, err = f.ledger.ApproveMilestone(f.ctx, "donor2", c.ID, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), approvals)

	milestones, err := f.ledger.Milestones(f.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, milestones, 1)
	require.True(t, milestones[0].Completed)
	require.Equal(t, int64(2), milestones[0].ApprovalCount)

	// 里程碑不移动资金
	require.Equal(t, int64(200), f.campaign(c.ID).Raised)
	f.assertConservation()
}

func TestRefundedContributorCanStillApprove(t *testing.T) {
	f := newFixture(t)
	c := f.create("past contributor", 1000, 2)
	f.donate("donor1", c.ID, 10)
	_, err := f.ledger.AddMilestone(f.ctx, testCreator, c.ID, "first", 0)
	require.NoError(t, err)
	require.NoError(t, f.ledger.CompleteMilestone(f.ctx, testCreator, c.ID, 0))

	f.clock.Advance(2 * day)
	_, err = f.ledger.GetRefund(f.ctx, "donor1", c.ID)
	require.NoError(t, err)

	approvals, err := f.ledger.ApproveMilestone(f.ctx, "donor1", c.ID, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), approvals)
}

func TestMilestoneLimit(t *testing.T) {
	f := newFixture(t)
	c := f.create("many milestones", 1000, 10)

	for i := 0; i < MaxMilestones; i++ {
		m, err := f.ledger.AddMilestone(f.ctx, testCreator, c.ID, fmt.Sprintf("step %d", i), int64(i))
		require.NoError(t, err)
		require.Equal(t, int64(i), m.Index)
	}
	_, err := f.ledger.AddMilestone(f.ctx, testCreator, c.ID, "one too many", 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestMilestoneOnSettledCampaign(t *testing.T) {
	f := newFixture(t)
	c := f.create("settled milestones", 100, 1)
	f.donate("donor1", c.ID, 100)
	f.clock.Advance(day)
	_, err := f.ledger.WithdrawFunds(f.ctx, testCreator, c.ID)
	require.NoError(t, err)

	_, err = f.ledger.AddMilestone(f.ctx, testCreator, c.ID, "late", 0)
	require.ErrorIs(t, err, ErrAlreadySettled)
	_, err = f.ledger.AddCampaignUpdate(f.ctx, testCreator, c.ID, "late")
	require.ErrorIs(t, err, ErrAlreadySettled)
}
