package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/database"
	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/queue"
	"github.com/iliyamo/rewear/internal/repository"
	"github.com/iliyamo/rewear/internal/repository/memstore"
)

func TestRedeemScenario(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	x := f.item(u1, model.ItemAvailable)

	req := f.redeem(u2, x, 10)
	assert.Equal(t, model.SwapPending, req.Status)
	assert.Equal(t, u1, req.ToUserID)
	assert.Equal(t, int64(50), f.points(u2), "creation must not touch balances")
	assert.Equal(t, model.ItemAvailable, f.itemStatus(x))

	acc, err := f.swaps.Accept(f.ctx, u1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SwapAccepted, acc.Status)
	require.NotNil(t, acc.AcceptedAt)

	assert.Equal(t, model.SwapAccepted, f.swapStatus(req.ID))
	assert.Equal(t, model.ItemRedeemed, f.itemStatus(x))
	assert.Equal(t, int64(40), f.points(u2))
	assert.Equal(t, int64(10), f.points(u1))

	hist, _, err := f.store.Users().PointHistory(f.ctx, u2, repository.Page{})
	require.NoError(t, err)
	require.NotEmpty(t, hist)
	assert.Equal(t, int64(-10), hist[0].Delta)
	assert.Equal(t, model.PointReasonRedeemDebit, hist[0].Reason)
	require.NotNil(t, hist[0].SwapRequestID)
	assert.Equal(t, req.ID, *hist[0].SwapRequestID)

	assert.Equal(t, []string{queue.EventSwapCreated, queue.EventSwapAccepted}, f.events.types())
}

func TestSwapScenario(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 0)
	a := f.item(u1, model.ItemAvailable)
	b := f.item(u2, model.ItemAvailable)

	req := f.offer(u1, b, a)
	require.NotNil(t, req.OfferedItemID)

	_, err := f.swaps.Accept(f.ctx, u2, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemSwapped, f.itemStatus(a))
	assert.Equal(t, model.ItemSwapped, f.itemStatus(b))
	assert.Equal(t, model.SwapAccepted, f.swapStatus(req.ID))
	assert.Zero(t, f.points(u1))
	assert.Zero(t, f.points(u2))
}

func TestCreatePreconditionOrder(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", 0)
	caller := f.user("caller", 5)
	other := f.user("other", 0)
	avail := f.item(owner, model.ItemAvailable)
	pending := f.item(owner, model.ItemPending)
	mine := f.item(caller, model.ItemAvailable)
	mineSwapped := f.item(caller, model.ItemSwapped)
	theirs := f.item(other, model.ItemAvailable)

	cases := []struct {
		name   string
		caller uint64
		in     CreateSwapInput
		kind   apperr.Kind
	}{
		{"missing item", caller, CreateSwapInput{ItemID: 9999, Offer: RedeemOffer{Points: 1}}, apperr.NotFound},
		{"item not available", caller, CreateSwapInput{ItemID: pending, Offer: RedeemOffer{Points: 1}}, apperr.InvalidState},
		{"own item", owner, CreateSwapInput{ItemID: avail, Offer: RedeemOffer{Points: 1}}, apperr.Forbidden},
		{"swap without offered item", caller, CreateSwapInput{ItemID: avail, Offer: SwapOffer{}}, apperr.Validation},
		{"redeem without points", caller, CreateSwapInput{ItemID: avail, Offer: RedeemOffer{}}, apperr.Validation},
		{"redeem negative points", caller, CreateSwapInput{ItemID: avail, Offer: RedeemOffer{Points: -3}}, apperr.Validation},
		{"redeem over balance", caller, CreateSwapInput{ItemID: avail, Offer: RedeemOffer{Points: 10}}, apperr.InsufficientBalance},
		{"offered item missing", caller, CreateSwapInput{ItemID: avail, Offer: SwapOffer{OfferedItemID: 9999}}, apperr.NotFound},
		{"offered item not mine", caller, CreateSwapInput{ItemID: avail, Offer: SwapOffer{OfferedItemID: theirs}}, apperr.Forbidden},
		{"offered item not available", caller, CreateSwapInput{ItemID: avail, Offer: SwapOffer{OfferedItemID: mineSwapped}}, apperr.InvalidState},
		{"unknown kind", caller, CreateSwapInput{ItemID: avail}, apperr.Validation},
		{"missing item before body checks", caller, CreateSwapInput{ItemID: 9999, Message: strings.Repeat("m", 501)}, apperr.NotFound},
		{"unavailable item before body checks", caller, CreateSwapInput{ItemID: pending}, apperr.InvalidState},
		{"long message", caller, CreateSwapInput{ItemID: avail, Message: strings.Repeat("m", 501), Offer: SwapOffer{OfferedItemID: mine}}, apperr.Validation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.swaps.Create(f.ctx, tc.caller, tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err), err.Error())
		})
	}

	n, err := f.store.Swaps().Count(f.ctx, repository.SwapFilter{})
	require.NoError(t, err)
	assert.Zero(t, n, "failed creations must not leave requests behind")
	assert.Empty(t, f.events.types())
}

func TestCreateInsufficientBalanceScenario(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 5)
	x := f.item(u1, model.ItemAvailable)

	_, err := f.swaps.Create(f.ctx, u2, CreateSwapInput{ItemID: x, Offer: RedeemOffer{Points: 10}})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	list, err := f.swaps.ListMine(f.ctx, u2, nil, page(20))
	require.NoError(t, err)
	assert.Empty(t, list.Swaps)
}

func TestDuplicatePendingRequest(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	x := f.item(u1, model.ItemAvailable)

	first := f.redeem(u2, x, 10)
	_, err := f.swaps.Create(f.ctx, u2, CreateSwapInput{ItemID: x, Offer: RedeemOffer{Points: 20}})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Once the first is no longer pending a new request is allowed.
	_, err = f.swaps.Cancel(f.ctx, u2, first.ID)
	require.NoError(t, err)
	f.redeem(u2, x, 20)
}

func TestAcceptPreconditions(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	x := f.item(u1, model.ItemAvailable)
	req := f.redeem(u2, x, 10)

	_, err := f.swaps.Accept(f.ctx, u1, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.swaps.Accept(f.ctx, u2, req.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden, "requester cannot accept")

	assert.Equal(t, model.SwapPending, f.swapStatus(req.ID))
}

func TestAcceptDeclinedRequestHasNoEffect(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	x := f.item(u1, model.ItemAvailable)
	req := f.redeem(u2, x, 10)

	declined, err := f.swaps.Decline(f.ctx, u1, req.ID, "  not interested ")
	require.NoError(t, err)
	assert.Equal(t, "not interested", declined.Reason)
	require.NotNil(t, declined.DeclinedAt)

	_, err = f.swaps.Accept(f.ctx, u1, req.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, model.SwapDeclined, f.swapStatus(req.ID))
	assert.Equal(t, model.ItemAvailable, f.itemStatus(x))
	assert.Equal(t, int64(50), f.points(u2))
	assert.Zero(t, f.points(u1))

	_, err = f.swaps.Cancel(f.ctx, u2, req.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "terminal status is never reassigned")
	_, err = f.swaps.Decline(f.ctx, u1, req.ID, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestAcceptRechecksBalance(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	x := f.item(u1, model.ItemAvailable)
	y := f.item(u1, model.ItemAvailable)

	r1 := f.redeem(u2, x, 40)
	r2 := f.redeem(u2, y, 40)

	_, err := f.swaps.Accept(f.ctx, u1, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.points(u2))

	_, err = f.swaps.Accept(f.ctx, u1, r2.ID)
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	assert.Equal(t, model.SwapPending, f.swapStatus(r2.ID), "failed accept must roll back the status change")
	assert.Equal(t, model.ItemAvailable, f.itemStatus(y))
	assert.Equal(t, int64(10), f.points(u2))
	assert.Equal(t, int64(40), f.points(u1))
}

func TestAcceptAfterItemTaken(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	u3 := f.user("u3", 50)
	x := f.item(u1, model.ItemAvailable)

	r2 := f.redeem(u2, x, 10)
	r3 := f.redeem(u3, x, 15)

	_, err := f.swaps.Accept(f.ctx, u1, r3.ID)
	require.NoError(t, err)

	_, err = f.swaps.Accept(f.ctx, u1, r2.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, model.SwapPending, f.swapStatus(r2.ID))
	assert.Equal(t, int64(50), f.points(u2))
	assert.Equal(t, int64(15), f.points(u1))
}

func TestAcceptAfterOfferedItemTaken(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 0)
	u3 := f.user("u3", 0)
	a := f.item(u1, model.ItemAvailable)
	b := f.item(u2, model.ItemAvailable)
	c := f.item(u3, model.ItemAvailable)

	toB := f.offer(u1, b, a)
	toC := f.offer(u1, c, a)

	_, err := f.swaps.Accept(f.ctx, u3, toC.ID)
	require.NoError(t, err)

	_, err = f.swaps.Accept(f.ctx, u2, toB.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, model.ItemAvailable, f.itemStatus(b), "requested item write must be rolled back")
	assert.Equal(t, model.SwapPending, f.swapStatus(toB.ID))
}

func TestAcceptAfterItemDeleted(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	x := f.item(u1, model.ItemAvailable)
	req := f.redeem(u2, x, 10)

	require.NoError(t, f.catalog.Delete(f.ctx, u1, false, x))

	_, err := f.swaps.Accept(f.ctx, u1, req.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, model.SwapPending, f.swapStatus(req.ID))
	assert.Equal(t, int64(50), f.points(u2))
}

func TestConcurrentAccept(t *testing.T) {
	stores := map[string]func(t *testing.T) repository.Store{
		"memory": func(t *testing.T) repository.Store { return memstore.New() },
		"sqlite": func(t *testing.T) repository.Store {
			return repository.NewSQLStore(database.NewTestDB(t), database.SQLite)
		},
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			f := newFixtureWith(t, open(t))
			u1 := f.user("u1", 0)
			u2 := f.user("u2", 50)
			x := f.item(u1, model.ItemAvailable)
			req := f.redeem(u2, x, 10)

			const n = 8
			var (
				wg   sync.WaitGroup
				errs = make([]error, n)
			)
			start := make(chan struct{})
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, errs[i] = f.swaps.Accept(context.Background(), u1, req.ID)
				}(i)
			}
			close(start)
			wg.Wait()

			ok := 0
			for _, err := range errs {
				if err == nil {
					ok++
					continue
				}
				assert.ErrorIs(t, err, apperr.ErrInvalidState)
			}
			assert.Equal(t, 1, ok)
			assert.Equal(t, int64(40), f.points(u2))
			assert.Equal(t, int64(10), f.points(u1))
			assert.Equal(t, model.ItemRedeemed, f.itemStatus(x))
			assert.Equal(t, model.SwapAccepted, f.swapStatus(req.ID))
		})
	}
}

func TestDecline(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	x := f.item(u1, model.ItemAvailable)
	req := f.redeem(u2, x, 10)

	_, err := f.swaps.Decline(f.ctx, u1, req.ID, strings.Repeat("r", 201))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.swaps.Decline(f.ctx, u2, req.ID, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.swaps.Decline(f.ctx, u1, req.ID, strings.Repeat("r", 200))
	require.NoError(t, err)
	assert.Equal(t, model.ItemAvailable, f.itemStatus(x))
	assert.Equal(t, int64(50), f.points(u2))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	x := f.item(u1, model.ItemAvailable)
	req := f.redeem(u2, x, 10)

	_, err := f.swaps.Cancel(f.ctx, u1, req.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden, "recipient cannot cancel")

	got, err := f.swaps.Cancel(f.ctx, u2, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SwapCancelled, got.Status)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, u2, *got.CancelledBy)
	require.NotNil(t, got.CancelledAt)

	stored, err := f.store.Swaps().GetByID(f.ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CancelledBy)
	assert.Equal(t, u2, *stored.CancelledBy)
}

func TestGetSwap(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	u3 := f.user("u3", 0)
	x := f.item(u1, model.ItemAvailable)
	req := f.redeem(u2, x, 10)

	v, err := f.swaps.Get(f.ctx, u2, false, req.ID)
	require.NoError(t, err)
	assert.True(t, v.IsInitiator)

	v, err = f.swaps.Get(f.ctx, u1, false, req.ID)
	require.NoError(t, err)
	assert.False(t, v.IsInitiator)

	_, err = f.swaps.Get(f.ctx, u3, false, req.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.swaps.Get(f.ctx, u3, true, req.ID)
	assert.NoError(t, err)

	_, err = f.swaps.Get(f.ctx, u1, false, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1", 100)
	u2 := f.user("u2", 100)
	x := f.item(u1, model.ItemAvailable)
	y := f.item(u2, model.ItemAvailable)
	z := f.item(u2, model.ItemAvailable)

	sent := f.redeem(u1, y, 5)
	received := f.redeem(u2, x, 5)
	declined := f.redeem(u1, z, 5)
	_, err := f.swaps.Decline(f.ctx, u2, declined.ID, "")
	require.NoError(t, err)

	mine, err := f.swaps.ListMine(f.ctx, u1, nil, page(20))
	require.NoError(t, err)
	require.Len(t, mine.Swaps, 3)
	assert.Equal(t, declined.ID, mine.Swaps[0].ID, "newest first")
	assert.Equal(t, sent.ID, mine.Swaps[2].ID)
	assert.Equal(t, 3, mine.Pagination.Total)
	for _, v := range mine.Swaps {
		assert.Equal(t, v.FromUserID == u1, v.IsInitiator)
	}

	rec, err := f.swaps.ListReceived(f.ctx, u1, nil, page(10))
	require.NoError(t, err)
	require.Len(t, rec.Swaps, 1)
	assert.Equal(t, received.ID, rec.Swaps[0].ID)
	assert.False(t, rec.Swaps[0].IsInitiator)

	st, err := ParseStatusFilter("pending")
	require.NoError(t, err)
	out, err := f.swaps.ListSent(f.ctx, u1, st, page(10))
	require.NoError(t, err)
	require.Len(t, out.Swaps, 1)
	assert.Equal(t, sent.ID, out.Swaps[0].ID)

	hist, err := f.swaps.ListHistory(f.ctx, u1, page(20))
	require.NoError(t, err)
	require.Len(t, hist.Swaps, 1)
	assert.Equal(t, declined.ID, hist.Swaps[0].ID)

	paged, err := f.swaps.ListMine(f.ctx, u1, nil, repository.NewPage(2, 2, 20))
	require.NoError(t, err)
	assert.Len(t, paged.Swaps, 1)
	assert.Equal(t, Pagination{Current: 2, Pages: 2, Total: 3}, paged.Pagination)

	_, err = ParseStatusFilter("done")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishSwapEvent(ctx context.Context, ev queue.SwapEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func TestPublishFailureKeepsCommittedState(t *testing.T) {
	f := newFixture(t)
	pub := &mockPublisher{}
	f.swaps = NewSwapService(f.store, pub, zap.NewNop())

	u1 := f.user("u1", 0)
	u2 := f.user("u2", 50)
	x := f.item(u1, model.ItemAvailable)

	pub.On("PublishSwapEvent", mock.Anything, mock.MatchedBy(func(ev queue.SwapEvent) bool {
		return ev.Type == queue.EventSwapCreated && ev.Status == string(model.SwapPending)
	})).Return(nil).Once()
	pub.On("PublishSwapEvent", mock.Anything, mock.MatchedBy(func(ev queue.SwapEvent) bool {
		return ev.Type == queue.EventSwapAccepted && ev.PointsOffered == 10
	})).Return(errors.New("broker down")).Once()

	req := f.redeem(u2, x, 10)
	_, err := f.swaps.Accept(f.ctx, u1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SwapAccepted, f.swapStatus(req.ID))
	assert.Equal(t, int64(40), f.points(u2))
	pub.AssertExpectations(t)
}

func TestNewSwapInput(t *testing.T) {
	assert.Equal(t, SwapOffer{OfferedItemID: 3}, NewSwapInput("swap", 3, 9))
	assert.Equal(t, RedeemOffer{Points: 9}, NewSwapInput("redeem", 3, 9))
	assert.Nil(t, NewSwapInput("gift", 3, 9))
}
