package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository"
)

func TestRegisterCreditsSignupBonus(t *testing.T) {
	f := newFixture(t)
	acct := NewAccountService(f.store, bcrypt.MinCost, 100, zap.NewNop())

	u, err := acct.Register(f.ctx, " Alice ", "Alice@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Equal(t, int64(100), u.Points)
	assert.Equal(t, int64(100), f.points(u.ID))

	hist, err := acct.PointsHistory(f.ctx, u.ID, page(20))
	require.NoError(t, err)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, model.PointReasonSignupBonus, hist.Entries[0].Reason)
	assert.Equal(t, int64(100), hist.Entries[0].BalanceAfter)
	assert.Equal(t, int64(100), hist.Balance)

	_, err = acct.Register(f.ctx, "Alice 2", "alice@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string][3]string{
		"short name":     {"A", "a@example.com", "secret1"},
		"long name":      {strings.Repeat("n", 51), "a@example.com", "secret1"},
		"bad email":      {"Anna", "not-an-email", "secret1"},
		"short password": {"Anna", "a@example.com", "12345"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.account.Register(f.ctx, c[0], c[1], c[2])
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	u, err := f.account.Register(f.ctx, "Bob", "bob@example.com", "hunter22")
	require.NoError(t, err)

	got, err := f.account.Authenticate(f.ctx, "BOB@example.com ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.account.Authenticate(f.ctx, "bob@example.com", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.account.Authenticate(f.ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.account.Authenticate(f.ctx, "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.mod.Ban(f.ctx, f.admin("root"), u.ID)
	require.NoError(t, err)
	_, err = f.account.Authenticate(f.ctx, "bob@example.com", "hunter22")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.account.ActiveUser(f.ctx, u.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.account.ActiveUser(f.ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestProfileAndStats(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 100)
	f.item(u1, model.ItemPending)
	x := f.item(u1, model.ItemAvailable)
	y := f.item(u1, model.ItemAvailable)
	done := f.redeem(u2, x, 10)
	f.redeem(u2, y, 10)
	_, err := f.swaps.Accept(f.ctx, u1, done.ID)
	require.NoError(t, err)

	p, err := f.account.Profile(f.ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, ProfileStats{TotalItems: 3, AvailableItems: 1, PendingSwaps: 1, CompletedSwaps: 1}, p.Stats)

	s, err := f.account.Stats(f.ctx, u2)
	require.NoError(t, err)
	assert.Equal(t, UserStats{TotalPoints: 90, ItemsListed: 0, SwapsCompleted: 1, PendingSwaps: 0}, s)

	_, err = f.account.Profile(f.ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateProfileAndPassword(t *testing.T) {
	f := newFixture(t)
	u, err := f.account.Register(f.ctx, "Carol", "carol@example.com", "oldpass")
	require.NoError(t, err)

	got, err := f.account.UpdateProfile(f.ctx, u.ID, ProfileInput{Bio: " vintage fan ", Location: "Lyon"})
	require.NoError(t, err)
	assert.Equal(t, "Carol", got.Name, "empty name keeps the current one")
	assert.Equal(t, "vintage fan", got.Bio)

	_, err = f.account.UpdateProfile(f.ctx, u.ID, ProfileInput{Bio: strings.Repeat("b", 501)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.store.Tokens().StoreRefresh(f.ctx, u.ID, "h", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, f.account.ChangePassword(f.ctx, u.ID, "wrong", "newpass"), apperr.ErrValidation)
	assert.ErrorIs(t, f.account.ChangePassword(f.ctx, u.ID, "oldpass", "123"), apperr.ErrValidation)
	require.NoError(t, f.account.ChangePassword(f.ctx, u.ID, "oldpass", "newpass"))

	_, err = f.account.Authenticate(f.ctx, "carol@example.com", "newpass")
	assert.NoError(t, err)
	_, err = f.store.Tokens().ValidateRefresh(f.ctx, "h")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPublicProfile(t *testing.T) {
	f := newFixture(t)
	u := f.user("dana", 0)
	f.item(u, model.ItemPending)
	live := f.item(u, model.ItemAvailable)

	p, err := f.account.PublicProfile(f.ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "dana", p.Name)
	require.Len(t, p.Items, 1)
	assert.Equal(t, live, p.Items[0].ID)

	pts, err := f.account.Points(f.ctx, u)
	require.NoError(t, err)
	assert.Zero(t, pts)

	_, err = f.account.PublicProfile(f.ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	created, err := f.account.EnsureAdmin(f.ctx, "Root@Example.com", "rootpass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.account.EnsureAdmin(f.ctx, "root@example.com", "other-pass")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := f.account.Authenticate(f.ctx, "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	leaver, err := f.account.Register(f.ctx, "Leaver", "leaver@example.com", "secret1")
	require.NoError(t, err)
	other := f.user("other", 50)

	wanted := f.item(leaver.ID, model.ItemAvailable)
	offered := f.item(leaver.ID, model.ItemAvailable)
	unlisted := f.item(leaver.ID, model.ItemPending)
	traded := f.item(leaver.ID, model.ItemSwapped)
	theirs := f.item(other, model.ItemAvailable)

	incoming := f.redeem(other, wanted, 10)
	outgoing := f.offer(leaver.ID, theirs, offered)
	settled := f.redeem(other, offered, 5)
	_, err = f.swaps.Decline(f.ctx, leaver.ID, settled.ID, "")
	require.NoError(t, err)

	err = f.account.DeleteAccount(f.ctx, leaver.ID, "wrong-password")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Equal(t, model.SwapPending, f.swapStatus(incoming.ID))

	admin := f.admin("boss")
	err = f.account.DeleteAccount(f.ctx, admin, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, f.account.DeleteAccount(f.ctx, leaver.ID, "secret1"))

	assert.Equal(t, model.SwapCancelled, f.swapStatus(incoming.ID))
	assert.Equal(t, model.SwapCancelled, f.swapStatus(outgoing.ID))
	assert.Equal(t, model.SwapDeclined, f.swapStatus(settled.ID))
	stored, err := f.store.Swaps().GetByID(f.ctx, incoming.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CancelledBy)
	assert.Equal(t, leaver.ID, *stored.CancelledBy)

	for _, id := range []uint64{wanted, offered, unlisted} {
		_, err := f.store.Items().GetByID(f.ctx, id)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
	assert.Equal(t, model.ItemSwapped, f.itemStatus(traded))
	assert.Equal(t, model.ItemAvailable, f.itemStatus(theirs))
	assert.Equal(t, int64(50), f.points(other))

	closed, err := f.store.Users().GetByID(f.ctx, leaver.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.Equal(t, repository.ClosedEmail(leaver.ID), closed.Email)
	assert.Equal(t, repository.ClosedName, closed.Name)

	_, err = f.account.Authenticate(f.ctx, "leaver@example.com", "secret1")
	assert.Error(t, err)
	_, err = f.account.Register(f.ctx, "Leaver", "leaver@example.com", "secret1")
	assert.NoError(t, err, "a closed account frees its email")
}
