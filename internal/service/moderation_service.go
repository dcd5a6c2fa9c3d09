package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository"
)

// ModerationService holds the admin-only operations.
type ModerationService struct {
	store   repository.Store
	catalog *CatalogService
	log     *zap.Logger
	now     func() time.Time
}

func NewModerationService(store repository.Store, catalog *CatalogService, log *zap.Logger) *ModerationService {
	return &ModerationService{store: store, catalog: catalog, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Approve publishes a pending item.
func (s *ModerationService) Approve(ctx context.Context, admin, id uint64) (model.Item, error) {
	err := s.store.Items().Approve(ctx, id, admin, s.now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.Item{}, apperr.NotFoundf("item not found")
	case errors.Is(err, repository.ErrStaleState):
		return model.Item{}, apperr.InvalidStatef("item is not pending approval")
	case err != nil:
		return model.Item{}, err
	}
	s.log.Info("item approved", zap.Uint64("item_id", id), zap.Uint64("admin_id", admin))
	it, err := s.store.Items().GetByID(ctx, id)
	return it, notFound(err, "item")
}

// Reject removes a pending item. The reason is only logged.
func (s *ModerationService) Reject(ctx context.Context, admin, id uint64, reason string) error {
	err := s.store.Items().SetStatus(ctx, id, model.ItemPending, model.ItemDeleted)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFoundf("item not found")
	case errors.Is(err, repository.ErrStaleState):
		return apperr.InvalidStatef("item is not pending approval")
	case err != nil:
		return err
	}
	s.log.Info("item rejected",
		zap.Uint64("item_id", id),
		zap.Uint64("admin_id", admin),
		zap.String("reason", strings.TrimSpace(reason)))
	return nil
}

// PendingItems lists items awaiting moderation, oldest first.
func (s *ModerationService) PendingItems(ctx context.Context, p repository.Page) (ItemPage, error) {
	return s.catalog.list(ctx, repository.ItemFilter{
		Statuses: []model.ItemStatus{model.ItemPending},
		Sort:     "created_at",
		Asc:      true,
		Page:     p,
	})
}

// DashboardStats are the platform totals shown on the admin dashboard.
type DashboardStats struct {
	TotalUsers     int `json:"totalUsers"`
	TotalItems     int `json:"totalItems"`
	PendingItems   int `json:"pendingItems"`
	AvailableItems int `json:"availableItems"`
	TotalSwaps     int `json:"totalSwaps"`
	PendingSwaps   int `json:"pendingSwaps"`
	AcceptedSwaps  int `json:"acceptedSwaps"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	Stats       DashboardStats      `json:"stats"`
	RecentItems []model.Item        `json:"recentItems"`
	RecentSwaps []model.SwapRequest `json:"recentSwaps"`
}

const dashboardRecent = 5

// Dashboard gathers platform totals and the most recent activity.
func (s *ModerationService) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	var err error
	if d.Stats.TotalUsers, err = s.store.Users().Count(ctx, model.RoleUser, time.Time{}); err != nil {
		return d, err
	}
	items := s.store.Items()
	if d.Stats.TotalItems, err = items.Count(ctx, repository.ItemFilter{}); err != nil {
		return d, err
	}
	if d.Stats.PendingItems, err = items.Count(ctx, repository.ItemFilter{Statuses: []model.ItemStatus{model.ItemPending}}); err != nil {
		return d, err
	}
	if d.Stats.AvailableItems, err = items.Count(ctx, repository.ItemFilter{Statuses: []model.ItemStatus{model.ItemAvailable}}); err != nil {
		return d, err
	}
	swaps := s.store.Swaps()
	if d.Stats.TotalSwaps, err = swaps.Count(ctx, repository.SwapFilter{}); err != nil {
		return d, err
	}
	if d.Stats.PendingSwaps, err = swaps.Count(ctx, repository.SwapFilter{Statuses: []model.SwapStatus{model.SwapPending}}); err != nil {
		return d, err
	}
	if d.Stats.AcceptedSwaps, err = swaps.Count(ctx, repository.SwapFilter{Statuses: []model.SwapStatus{model.SwapAccepted}}); err != nil {
		return d, err
	}

	recent := repository.Page{Page: 1, Limit: dashboardRecent}
	if d.RecentItems, _, err = items.List(ctx, repository.ItemFilter{Sort: "created_at", Page: recent}); err != nil {
		return d, err
	}
	if d.RecentSwaps, _, err = swaps.List(ctx, repository.SwapFilter{Page: recent}); err != nil {
		return d, err
	}
	return d, nil
}

// UserPage is one page of accounts.
type UserPage struct {
	Users      []model.User `json:"users"`
	Pagination Pagination   `json:"pagination"`
}

// Users lists regular accounts, optionally filtered by name or email.
func (s *ModerationService) Users(ctx context.Context, search string, p repository.Page) (UserPage, error) {
	users, total, err := s.store.Users().List(ctx, repository.UserFilter{
		Role:   model.RoleUser,
		Search: strings.TrimSpace(search),
		Page:   p,
	})
	if err != nil {
		return UserPage{}, err
	}
	if users == nil {
		users = []model.User{}
	}
	return UserPage{Users: users, Pagination: newPagination(p, total)}, nil
}

// Ban deactivates an account and revokes its refresh tokens. Admin
// accounts cannot be banned.
func (s *ModerationService) Ban(ctx context.Context, admin, userID uint64) (model.User, error) {
	var banned model.User
	err := s.store.InTx(ctx, func(tx repository.Repos) error {
		u, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return notFound(err, "user")
		}
		if u.IsAdmin() {
			return apperr.Forbiddenf("cannot ban admin users")
		}
		if err := tx.Users().SetActive(ctx, userID, false); err != nil {
			return notFound(err, "user")
		}
		if err := tx.Tokens().RevokeAllForUser(ctx, userID); err != nil {
			return err
		}
		u.IsActive = false
		banned = u
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user banned", zap.Uint64("user_id", userID), zap.Uint64("admin_id", admin))
	return banned, nil
}

// DeleteItem removes any pending or available item.
func (s *ModerationService) DeleteItem(ctx context.Context, admin, id uint64) error {
	return s.catalog.Delete(ctx, admin, true, id)
}

// Report summarises platform activity over a period.
type Report struct {
	PeriodDays           int                        `json:"periodDays"`
	Since                time.Time                  `json:"since"`
	NewUsers             int                        `json:"newUsers"`
	NewItems             int                        `json:"newItems"`
	NewSwaps             int                        `json:"newSwaps"`
	AcceptedSwaps        int                        `json:"acceptedSwaps"`
	CategoryDistribution []repository.CategoryCount `json:"categoryDistribution"`
}

// Reports counts activity over the last periodDays days (at least one).
func (s *ModerationService) Reports(ctx context.Context, periodDays int) (Report, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	from := s.now().AddDate(0, 0, -periodDays)
	r := Report{PeriodDays: periodDays, Since: from}
	var err error
	if r.NewUsers, err = s.store.Users().Count(ctx, model.RoleUser, from); err != nil {
		return r, err
	}
	if r.NewItems, err = s.store.Items().Count(ctx, repository.ItemFilter{Since: from}); err != nil {
		return r, err
	}
	if r.NewSwaps, err = s.store.Swaps().Count(ctx, repository.SwapFilter{Since: from}); err != nil {
		return r, err
	}
	if r.AcceptedSwaps, err = s.store.Swaps().Count(ctx, repository.SwapFilter{
		Statuses:      []model.SwapStatus{model.SwapAccepted},
		AcceptedSince: from,
	}); err != nil {
		return r, err
	}
	if r.CategoryDistribution, err = s.store.Items().CategoryCounts(ctx, from); err != nil {
		return r, err
	}
	if r.CategoryDistribution == nil {
		r.CategoryDistribution = []repository.CategoryCount{}
	}
	return r, nil
}
