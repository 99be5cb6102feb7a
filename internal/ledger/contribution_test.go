package ledger

import (
	"fmt"
	"math"
	"testing"

	"crowdfund/internal/model"

	"github.com/stretchr/testify/require"
)

func TestDonatePreconditions(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Category = model.CategoryCommunity
	req.MinContribution = 50
	c, err := f.ledger.CreateCampaign(f.ctx, testCreator, req)
	require.NoError(t, err)

	f.fund("donor1", 1000)
	f.fund(testCreator, 1000)

	_, err = f.ledger.Donate(f.ctx, "donor1", 99, 100)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.ledger.Donate(f.ctx, "donor1", c.ID, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.ledger.Donate(f.ctx, "donor1", c.ID, 49)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.ledger.Donate(f.ctx, testCreator, c.ID, 100)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.ledger.Donate(f.ctx, "", c.ID, 100)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.ledger.SetDenylist(f.ctx, testOwner, "donor1", true))
	_, err = f.ledger.Donate(f.ctx, "donor1", c.ID, 100)
	require.ErrorIs(t, err, ErrDenylisted)
	require.NoError(t, f.ledger.SetDenylist(f.ctx, testOwner, "donor1", false))

	contribution, err := f.ledger.Donate(f.ctx, "donor1", c.ID, 50)
	require.NoError(t, err)
	require.Equal(t, int64(50), contribution.Amount)

	f.clock.Advance(30 * day)
	_, err = f.ledger.Donate(f.ctx, "donor1", c.ID, 100)
	require.ErrorIs(t, err, ErrCampaignEnded)

	require.Equal(t, int64(950), f.balance("donor1"))
	f.assertConservation()
}

func TestDonateInsufficientWalletLeavesNoBookkeeping(t *testing.T) {
	f := newFixture(t)
	c := f.create("broke donor", 1000, 10)
	f.fund("donor1", 30)

	_, err := f.ledger.Donate(f.ctx, "donor1", c.ID, 100)
	require.ErrorIs(t, err, ErrTransferFailed)

	stored := f.campaign(c.ID)
	require.Zero(t, stored.Raised)
	require.Zero(t, stored.ContributionCount)

	amount, err := f.ledger.Contribution(f.ctx, c.ID, "donor1")
	require.NoError(t, err)
	require.Zero(t, amount)

	page, err := f.ledger.Contributors(f.ctx, c.ID, 0, 10)
	require.NoError(t, err)
	require.Zero(t, page.Total)

	donations, err := f.ledger.DonorCampaigns(f.ctx, "donor1")
	require.NoError(t, err)
	require.Empty(t, donations)

	require.Equal(t, int64(30), f.balance("donor1"))
	require.Equal(t, []string{EventCampaignCreated}, f.notifier.types())
	f.assertConservation()
}

func TestRepeatDonationsIndexContributorOnce(t *testing.T) {
	f := newFixture(t)
	c := f.create("repeat", 1000, 10)

	f.donate("donor1", c.ID, 100)
	f.donate("donor1", c.ID, 250)
	f.donate("donor2", c.ID, 5)

	amount, err := f.ledger.Contribution(f.ctx, c.ID, "donor1")
	require.NoError(t, err)
	require.Equal(t, int64(350), amount)

	stored := f.campaign(c.ID)
	require.Equal(t, int64(355), stored.Raised)
	require.Equal(t, int64(3), stored.ContributionCount)

	page, err := f.ledger.Contributors(f.ctx, c.ID, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
	require.Equal(t, []*ContributorEntry{
		{Seq: 0, Contributor: "donor1", Amount: 350},
		{Seq: 1, Contributor: "donor2", Amount: 5},
	}, page.Items)

	donations, err := f.ledger.DonorCampaigns(f.ctx, "donor1")
	require.NoError(t, err)
	require.Len(t, donations, 1)
	require.Equal(t, c.ID, donations[0].ID)
	f.assertConservation()
}

func TestContributorsPagination(t *testing.T) {
	f := newFixture(t)
	c := f.create("paginate", 100000, 10)
	for i := 0; i < 5; i++ {
		f.donate(fmt.Sprintf("donor%d", i), c.ID, int64(10*(i+1)))
	}

	page, err := f.ledger.Contributors(f.ctx, c.ID, 2, 2)
	require.NoError(t, err)
	require.Equal(t, int64(5), page.Total)
	require.Len(t, page.Items, 2)
	require.Equal(t, "donor2", page.Items[0].Contributor)
	require.Equal(t, int64(30), page.Items[0].Amount)
	require.Equal(t, "donor3", page.Items[1].Contributor)

	page, err = f.ledger.Contributors(f.ctx, c.ID, 4, MaxPageSize)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	page, err = f.ledger.Contributors(f.ctx, c.ID, 10, 5)
	require.NoError(t, err)
	require.Empty(t, page.Items)

	for _, limit := range []int{0, -1, MaxPageSize + 1} {
		_, err = f.ledger.Contributors(f.ctx, c.ID, 0, limit)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
	_, err = f.ledger.Contributors(f.ctx, c.ID, -1, 10)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.ledger.Contributors(f.ctx, 99, 0, 10)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDonateOverflowFailsWholeOperation(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Goal = math.MaxInt64
	req.MinContribution = 0
	c, err := f.ledger.CreateCampaign(f.ctx, testCreator, req)
	require.NoError(t, err)

	f.donate("whale", c.ID, math.MaxInt64-10)

	f.fund("donor2", 20)
	_, err = f.ledger.Donate(f.ctx, "donor2", c.ID, 20)
	require.ErrorIs(t, err, ErrOverflow)

	require.Equal(t, int64(math.MaxInt64-10), f.campaign(c.ID).Raised)
	require.Equal(t, int64(20), f.balance("donor2"))
}

func TestDonateToSettledCampaign(t *testing.T) {
	f := newFixture(t)
	c := f.create("settled", 100, 1)
	f.donate("donor1", c.ID, 100)
	require.NoError(t, f.ledger.Pause(f.ctx, testOwner))
	_, err := f.ledger.EmergencyWithdraw(f.ctx, testOwner, c.ID)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Unpause(f.ctx, testOwner))

	f.fund("donor2", 10)
	_, err = f.ledger.Donate(f.ctx, "donor2", c.ID, 10)
	require.ErrorIs(t, err, ErrAlreadySettled)
	f.assertConservation()
}
