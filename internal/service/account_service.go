package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository"
	"github.com/iliyamo/rewear/internal/utils"
)

// Account limits.
const (
	MinPasswordLength = 6
	MaxBioLength      = 500
	MaxLocationLength = 100
)

// AccountService manages registration, credentials, profiles and the
// caller's view of the points ledger.
type AccountService struct {
	store       repository.Store
	bcryptCost  int
	signupBonus int64
	log         *zap.Logger
}

func NewAccountService(store repository.Store, bcryptCost int, signupBonus int64, log *zap.Logger) *AccountService {
	return &AccountService{store: store, bcryptCost: bcryptCost, signupBonus: signupBonus, log: log}
}

func validName(name string) error {
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		return apperr.Validationf("name must be between 2 and 50 characters")
	}
	return nil
}

// Register creates a regular account and credits the signup bonus through
// the ledger, both in one transaction.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validName(name); err != nil {
		return model.User{}, err
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return model.User{}, apperr.Validationf("a valid email is required")
	}
	if len(password) < MinPasswordLength {
		return model.User{}, apperr.Validationf("password must be at least 6 characters")
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}

	u := model.User{Name: name, Email: email, PasswordHash: hash, Role: model.RoleUser, IsActive: true}
	err = s.store.InTx(ctx, func(tx repository.Repos) error {
		if err := tx.Users().Create(ctx, &u); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return apperr.Conflictf("email already exists")
			}
			return err
		}
		if s.signupBonus > 0 {
			bal, err := tx.Users().AdjustBalance(ctx, u.ID, s.signupBonus, model.PointReasonSignupBonus, nil)
			if err != nil {
				return err
			}
			u.Points = bal
		}
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user registered", zap.Uint64("user_id", u.ID), zap.Int64("bonus", s.signupBonus))
	return u, nil
}

// EnsureAdmin creates an admin account for email unless one with that
// email already exists. It reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	if len(password) < MinPasswordLength {
		return false, apperr.Validationf("password must be at least 6 characters")
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return false, err
	}
	u := model.User{Name: "Administrator", Email: email, PasswordHash: hash, Role: model.RoleAdmin, IsActive: true}
	if err := s.store.Users().Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return false, nil
		}
		return false, err
	}
	s.log.Info("admin account created", zap.Uint64("user_id", u.ID), zap.String("email", email))
	return true, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords are
// indistinguishable; banned accounts are refused.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.User{}, apperr.Validationf("email/password required")
	}
	u, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperr.Unauthorizedf("invalid credentials")
	}
	if err != nil {
		return model.User{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, apperr.Unauthorizedf("invalid credentials")
	}
	if !u.IsActive {
		return model.User{}, apperr.Forbiddenf("account is banned")
	}
	return u, nil
}

// ActiveUser loads an account that may still hold a session.
func (s *AccountService) ActiveUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.store.Users().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperr.Unauthorizedf("invalid refresh")
	}
	if err != nil {
		return model.User{}, err
	}
	if !u.IsActive {
		return model.User{}, apperr.Forbiddenf("account is banned")
	}
	return u, nil
}

// ProfileStats are the counters shown with a user's own profile.
type ProfileStats struct {
	TotalItems     int `json:"totalItems"`
	AvailableItems int `json:"availableItems"`
	PendingSwaps   int `json:"pendingSwaps"`
	CompletedSwaps int `json:"completedSwaps"`
}

// Profile is a user's own account with counters.
type Profile struct {
	User  model.User   `json:"user"`
	Stats ProfileStats `json:"stats"`
}

// Profile returns the caller's account and activity counters. Pending
// swaps are those awaiting the caller's decision; completed swaps are
// accepted requests on either side.
func (s *AccountService) Profile(ctx context.Context, id uint64) (Profile, error) {
	u, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return Profile{}, notFound(err, "user")
	}
	p := Profile{User: u}
	if p.Stats.TotalItems, err = s.store.Items().Count(ctx, repository.ItemFilter{UploaderID: id}); err != nil {
		return p, err
	}
	if p.Stats.AvailableItems, err = s.store.Items().Count(ctx, repository.ItemFilter{
		UploaderID: id, Statuses: []model.ItemStatus{model.ItemAvailable},
	}); err != nil {
		return p, err
	}
	if p.Stats.PendingSwaps, err = s.store.Swaps().Count(ctx, repository.SwapFilter{
		UserID: id, Role: repository.RoleRecipient, Statuses: []model.SwapStatus{model.SwapPending},
	}); err != nil {
		return p, err
	}
	if p.Stats.CompletedSwaps, err = s.store.Swaps().Count(ctx, repository.SwapFilter{
		UserID: id, Statuses: []model.SwapStatus{model.SwapAccepted},
	}); err != nil {
		return p, err
	}
	return p, nil
}

// UserStats is the short dashboard summary for the caller.
type UserStats struct {
	TotalPoints    int64 `json:"totalPoints"`
	ItemsListed    int   `json:"itemsListed"`
	SwapsCompleted int   `json:"swapsCompleted"`
	PendingSwaps   int   `json:"pendingSwaps"`
}

func (s *AccountService) Stats(ctx context.Context, id uint64) (UserStats, error) {
	p, err := s.Profile(ctx, id)
	if err != nil {
		return UserStats{}, err
	}
	return UserStats{
		TotalPoints:    p.User.Points,
		ItemsListed:    p.Stats.TotalItems,
		SwapsCompleted: p.Stats.CompletedSwaps,
		PendingSwaps:   p.Stats.PendingSwaps,
	}, nil
}

// ProfileInput holds editable profile fields.
type ProfileInput struct {
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	Location string `json:"location"`
}

// UpdateProfile edits the caller's display fields. An empty name keeps
// the current one.
func (s *AccountService) UpdateProfile(ctx context.Context, id uint64, in ProfileInput) (model.User, error) {
	u, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return model.User{}, notFound(err, "user")
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		if err := validName(name); err != nil {
			return model.User{}, err
		}
		u.Name = name
	}
	u.Bio = strings.TrimSpace(in.Bio)
	u.Location = strings.TrimSpace(in.Location)
	if utf8.RuneCountInString(u.Bio) > MaxBioLength {
		return model.User{}, apperr.Validationf("bio cannot exceed 500 characters")
	}
	if utf8.RuneCountInString(u.Location) > MaxLocationLength {
		return model.User{}, apperr.Validationf("location cannot exceed 100 characters")
	}
	if err := s.store.Users().UpdateProfile(ctx, id, u.Name, u.Bio, u.Location); err != nil {
		return model.User{}, notFound(err, "user")
	}
	return u, nil
}

// ChangePassword replaces the caller's password after checking the
// current one. Existing refresh tokens are revoked.
func (s *AccountService) ChangePassword(ctx context.Context, id uint64, current, next string) error {
	if len(next) < MinPasswordLength {
		return apperr.Validationf("new password must be at least 6 characters")
	}
	u, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return notFound(err, "user")
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return apperr.Validationf("current password is incorrect")
	}
	hash, err := utils.HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx repository.Repos) error {
		if err := tx.Users().UpdatePassword(ctx, id, hash); err != nil {
			return notFound(err, "user")
		}
		return tx.Tokens().RevokeAllForUser(ctx, id)
	})
}

// DeleteAccount closes the caller's account after checking the password.
// Pending requests on either side are cancelled and pending or available
// items are removed. Swapped and redeemed items and settled requests stay
// so the other party keeps its history. Admin accounts cannot be closed.
func (s *AccountService) DeleteAccount(ctx context.Context, id uint64, password string) error {
	u, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return notFound(err, "user")
	}
	if u.IsAdmin() {
		return apperr.Forbiddenf("admin accounts cannot be deleted")
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return apperr.Validationf("password is incorrect")
	}

	at := time.Now().UTC()
	var cancelled, removed int
	err = s.store.InTx(ctx, func(tx repository.Repos) error {
		pending, _, err := tx.Swaps().List(ctx, repository.SwapFilter{
			UserID:   id,
			Role:     repository.RoleAny,
			Statuses: []model.SwapStatus{model.SwapPending},
		})
		if err != nil {
			return err
		}
		for _, r := range pending {
			err := tx.Swaps().Transition(ctx, r.ID, model.SwapPending, model.SwapCancelled,
				repository.SwapTransition{At: at, CancelledBy: &id})
			if err != nil {
				return err
			}
			cancelled++
		}

		items, _, err := tx.Items().List(ctx, repository.ItemFilter{
			UploaderID: id,
			Statuses:   []model.ItemStatus{model.ItemPending, model.ItemAvailable},
		})
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := tx.Items().Delete(ctx, it.ID); err != nil {
				return err
			}
			removed++
		}

		if err := tx.Tokens().RevokeAllForUser(ctx, id); err != nil {
			return err
		}
		return notFound(tx.Users().Close(ctx, id), "user")
	})
	if err != nil {
		return err
	}
	s.log.Info("account deleted",
		zap.Uint64("user_id", id),
		zap.Int("cancelled_requests", cancelled),
		zap.Int("removed_items", removed))
	return nil
}

// Points returns the caller's balance.
func (s *AccountService) Points(ctx context.Context, id uint64) (int64, error) {
	u, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return 0, notFound(err, "user")
	}
	return u.Points, nil
}

// PointPage is one page of ledger entries.
type PointPage struct {
	Balance    int64              `json:"balance"`
	Entries    []model.PointEntry `json:"entries"`
	Pagination Pagination         `json:"pagination"`
}

// PointsHistory lists the caller's ledger entries, newest first.
func (s *AccountService) PointsHistory(ctx context.Context, id uint64, p repository.Page) (PointPage, error) {
	bal, err := s.Points(ctx, id)
	if err != nil {
		return PointPage{}, err
	}
	entries, total, err := s.store.Users().PointHistory(ctx, id, p)
	if err != nil {
		return PointPage{}, err
	}
	if entries == nil {
		entries = []model.PointEntry{}
	}
	return PointPage{Balance: bal, Entries: entries, Pagination: newPagination(p, total)}, nil
}

// PublicProfile is what anyone may see about a user.
type PublicProfile struct {
	ID       uint64       `json:"id"`
	Name     string       `json:"name"`
	Bio      string       `json:"bio,omitempty"`
	Location string       `json:"location,omitempty"`
	JoinedAt time.Time    `json:"joinedAt"`
	Items    []model.Item `json:"items"`
}

// PublicProfile returns an active user's public details and their
// approved, available items.
func (s *AccountService) PublicProfile(ctx context.Context, id uint64) (PublicProfile, error) {
	u, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return PublicProfile{}, notFound(err, "user")
	}
	if !u.IsActive {
		return PublicProfile{}, apperr.NotFoundf("user not found")
	}
	items, _, err := s.store.Items().List(ctx, repository.ItemFilter{
		UploaderID:   id,
		Statuses:     []model.ItemStatus{model.ItemAvailable},
		ApprovedOnly: true,
		Sort:         "created_at",
	})
	if err != nil {
		return PublicProfile{}, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return PublicProfile{
		ID: u.ID, Name: u.Name, Bio: u.Bio, Location: u.Location,
		JoinedAt: u.CreatedAt, Items: items,
	}, nil
}
