package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/queue"
	"github.com/iliyamo/rewear/internal/repository"
	"github.com/iliyamo/rewear/internal/repository/memstore"
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []queue.SwapEvent
}

func (r *recorder) PublishSwapEvent(_ context.Context, ev queue.SwapEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   repository.Store
	events  *recorder
	logs    *observer.ObservedLogs
	swaps   *SwapService
	catalog *CatalogService
	mod     *ModerationService
	account *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, memstore.New())
}

// newFixtureWith builds the services over the given store.
func newFixtureWith(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	events := &recorder{}
	catalog := NewCatalogService(store, log)
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		events:  events,
		logs:    logs,
		swaps:   NewSwapService(store, events, log),
		catalog: catalog,
		mod:     NewModerationService(store, catalog, log),
		account: NewAccountService(store, bcrypt.MinCost, 0, log),
	}
}

// user creates an account holding points, credited through the ledger.
func (f *fixture) user(name string, points int64) uint64 {
	f.t.Helper()
	u := model.User{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: model.RoleUser}
	require.NoError(f.t, f.store.Users().Create(f.ctx, &u))
	if points > 0 {
		_, err := f.store.Users().AdjustBalance(f.ctx, u.ID, points, model.PointReasonSignupBonus, nil)
		require.NoError(f.t, err)
	}
	return u.ID
}

func (f *fixture) admin(name string) uint64 {
	f.t.Helper()
	u := model.User{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: model.RoleAdmin}
	require.NoError(f.t, f.store.Users().Create(f.ctx, &u))
	return u.ID
}

func validInput(title string) ItemInput {
	return ItemInput{
		Title:       title,
		Description: "A well kept garment in good shape",
		Category:    "tops",
		Type:        "unisex",
		Size:        "M",
		Condition:   "good",
		PointValue:  10,
		Images:      []string{"https://img.example.com/" + title + ".jpg"},
		Tags:        []string{"cotton"},
	}
}

// item lists an item for owner and moves it to status.
func (f *fixture) item(owner uint64, status model.ItemStatus) uint64 {
	f.t.Helper()
	it, err := f.catalog.Create(f.ctx, owner, validInput("jacket"))
	require.NoError(f.t, err)
	if status == model.ItemPending {
		return it.ID
	}
	require.NoError(f.t, f.store.Items().Approve(f.ctx, it.ID, 999, time.Now()))
	if status != model.ItemAvailable {
		require.NoError(f.t, f.store.Items().SetStatus(f.ctx, it.ID, model.ItemAvailable, status))
	}
	return it.ID
}

func (f *fixture) itemStatus(id uint64) model.ItemStatus {
	f.t.Helper()
	it, err := f.store.Items().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return it.Status
}

func (f *fixture) points(id uint64) int64 {
	f.t.Helper()
	u, err := f.store.Users().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return u.Points
}

func (f *fixture) swapStatus(id uint64) model.SwapStatus {
	f.t.Helper()
	r, err := f.store.Swaps().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return r.Status
}

func (f *fixture) redeem(from, item uint64, points int64) model.SwapRequest {
	f.t.Helper()
	r, err := f.swaps.Create(f.ctx, from, CreateSwapInput{ItemID: item, Offer: RedeemOffer{Points: points}})
	require.NoError(f.t, err)
	return r
}

func (f *fixture) offer(from, item, offered uint64) model.SwapRequest {
	f.t.Helper()
	r, err := f.swaps.Create(f.ctx, from, CreateSwapInput{ItemID: item, Offer: SwapOffer{OfferedItemID: offered}})
	require.NoError(f.t, err)
	return r
}

func page(limit int) repository.Page { return repository.NewPage(1, limit, limit) }
