package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository"
)

func TestModerationApprove(t *testing.T) {
	f := newFixture(t)
	admin := f.admin("root")
	u := f.user("u", 0)
	id := f.item(u, model.ItemPending)

	it, err := f.mod.Approve(f.ctx, admin, id)
	require.NoError(t, err)
	assert.Equal(t, model.ItemAvailable, it.Status)
	assert.True(t, it.IsApproved)
	require.NotNil(t, it.ApprovedBy)
	assert.Equal(t, admin, *it.ApprovedBy)
	assert.NotNil(t, it.ApprovedAt)

	_, err = f.mod.Approve(f.ctx, admin, id)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = f.mod.Approve(f.ctx, admin, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestModerationReject(t *testing.T) {
	f := newFixture(t)
	admin := f.admin("root")
	u := f.user("u", 0)
	pending := f.item(u, model.ItemPending)
	live := f.item(u, model.ItemAvailable)

	require.NoError(t, f.mod.Reject(f.ctx, admin, pending, "blurry photos"))
	_, err := f.store.Items().GetByID(f.ctx, pending)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, f.mod.Reject(f.ctx, admin, live, ""), apperr.ErrInvalidState)
	assert.ErrorIs(t, f.mod.Reject(f.ctx, admin, pending, ""), apperr.ErrNotFound)

	logged := f.logs.FilterMessage("item rejected").All()
	require.Len(t, logged, 1)
	assert.Equal(t, "blurry photos", logged[0].ContextMap()["reason"])
}

func TestModerationPendingAndDashboard(t *testing.T) {
	f := newFixture(t)
	f.admin("root")
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 20)
	p1 := f.item(u1, model.ItemPending)
	f.item(u1, model.ItemPending)
	x := f.item(u1, model.ItemAvailable)
	req := f.redeem(u2, x, 10)
	_, err := f.swaps.Accept(f.ctx, u1, req.ID)
	require.NoError(t, err)

	pend, err := f.mod.PendingItems(f.ctx, page(20))
	require.NoError(t, err)
	require.Len(t, pend.Items, 2)
	assert.Equal(t, p1, pend.Items[0].ID, "oldest first")

	d, err := f.mod.Dashboard(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{
		TotalUsers:    2,
		TotalItems:    3,
		PendingItems:  2,
		TotalSwaps:    1,
		AcceptedSwaps: 1,
	}, d.Stats)
	assert.Len(t, d.RecentItems, 3)
	assert.Len(t, d.RecentSwaps, 1)
}

func TestModerationUsersAndBan(t *testing.T) {
	f := newFixture(t)
	admin := f.admin("root")
	other := f.admin("boss")
	u := f.user("alice", 0)
	f.user("bob", 0)

	list, err := f.mod.Users(f.ctx, "ALI", page(20))
	require.NoError(t, err)
	require.Len(t, list.Users, 1)
	assert.Equal(t, u, list.Users[0].ID)

	list, err = f.mod.Users(f.ctx, "", page(20))
	require.NoError(t, err)
	assert.Len(t, list.Users, 2, "admins are not listed")

	require.NoError(t, f.store.Tokens().StoreRefresh(f.ctx, u, "hash", time.Now().Add(time.Hour)))

	banned, err := f.mod.Ban(f.ctx, admin, u)
	require.NoError(t, err)
	assert.False(t, banned.IsActive)
	_, err = f.store.Tokens().ValidateRefresh(f.ctx, "hash")
	assert.Error(t, err, "ban revokes sessions")

	_, err = f.mod.Ban(f.ctx, admin, other)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.mod.Ban(f.ctx, admin, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestModerationDeleteItem(t *testing.T) {
	f := newFixture(t)
	admin := f.admin("root")
	u := f.user("u", 0)
	id := f.item(u, model.ItemAvailable)
	redeemed := f.item(u, model.ItemRedeemed)

	require.NoError(t, f.mod.DeleteItem(f.ctx, admin, id))
	assert.ErrorIs(t, f.mod.DeleteItem(f.ctx, admin, redeemed), apperr.ErrInvalidState)
}

func TestModerationReports(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	x := f.item(u1, model.ItemAvailable)
	dress := validInput("dress")
	dress.Category = "dresses"
	_, err := f.catalog.Create(f.ctx, u1, dress)
	require.NoError(t, err)
	req := f.redeem(u2, x, 10)
	_, err = f.swaps.Accept(f.ctx, u1, req.ID)
	require.NoError(t, err)
	f.redeem(u2, f.item(u1, model.ItemAvailable), 5)

	r, err := f.mod.Reports(f.ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, r.PeriodDays)
	assert.Equal(t, 2, r.NewUsers)
	assert.Equal(t, 3, r.NewItems)
	assert.Equal(t, 2, r.NewSwaps)
	assert.Equal(t, 1, r.AcceptedSwaps)
	assert.Equal(t, []repository.CategoryCount{
		{Category: "tops", Count: 2},
		{Category: "dresses", Count: 1},
	}, r.CategoryDistribution)

	def, err := f.mod.Reports(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, def.PeriodDays)
}
