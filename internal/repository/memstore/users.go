package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository"
)

type userRepo struct{ repos }

func (r userRepo) Create(ctx context.Context, u *model.User) error {
	return r.run(func(st *state) error {
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return repository.ErrEmailExists
			}
		}
		if u.Role == "" {
			u.Role = model.RoleUser
		}
		t := now()
		u.ID = st.id()
		u.IsActive = true
		u.CreatedAt, u.UpdatedAt = t, t
		st.users[u.ID] = *u
		return nil
	})
}

func (r userRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.run(func(st *state) error {
		found, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		u = found
		return nil
	})
	return u, err
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.run(func(st *state) error {
		for _, found := range st.users {
			if found.Email == email {
				u = found
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return u, err
}

func (r userRepo) update(id uint64, fn func(u *model.User)) error {
	return r.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		fn(&u)
		u.UpdatedAt = now()
		st.users[id] = u
		return nil
	})
}

func (r userRepo) UpdateProfile(ctx context.Context, id uint64, name, bio, location string) error {
	return r.update(id, func(u *model.User) { u.Name, u.Bio, u.Location = name, bio, location })
}

func (r userRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	return r.update(id, func(u *model.User) { u.PasswordHash = hash })
}

func (r userRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	return r.update(id, func(u *model.User) { u.IsActive = active })
}

func (r userRepo) Close(ctx context.Context, id uint64) error {
	return r.update(id, func(u *model.User) {
		u.Name, u.Email, u.PasswordHash = repository.ClosedName, repository.ClosedEmail(id), ""
		u.Bio, u.Location, u.IsActive = "", "", false
	})
}

func (r userRepo) List(ctx context.Context, f repository.UserFilter) ([]model.User, int, error) {
	var out []model.User
	err := r.run(func(st *state) error {
		for _, u := range st.users {
			if f.Role != "" && u.Role != f.Role {
				continue
			}
			if s := strings.TrimSpace(f.Search); s != "" && !containsFold(u.Name, s) && !containsFold(u.Email, s) {
				continue
			}
			out = append(out, u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].ID, out[j].ID, out[i].CreatedAt, out[j].CreatedAt)
	})
	return paginate(out, f.Page), len(out), err
}

func (r userRepo) Count(ctx context.Context, role string, since time.Time) (int, error) {
	n := 0
	err := r.run(func(st *state) error {
		for _, u := range st.users {
			if (role == "" || u.Role == role) && (since.IsZero() || !u.CreatedAt.Before(since)) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r userRepo) AdjustBalance(ctx context.Context, id uint64, delta int64, reason string, swapID *uint64) (int64, error) {
	var bal int64
	err := r.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		bal = u.Points
		if delta == 0 {
			return nil
		}
		if u.Points+delta < 0 {
			return repository.ErrInsufficientBalance
		}
		t := now()
		u.Points += delta
		u.UpdatedAt = t
		st.users[id] = u
		bal = u.Points
		st.points = append(st.points, model.PointEntry{
			ID:            st.id(),
			UserID:        id,
			Delta:         delta,
			BalanceAfter:  u.Points,
			Reason:        reason,
			SwapRequestID: swapID,
			CreatedAt:     t,
		})
		return nil
	})
	return bal, err
}

func (r userRepo) PointHistory(ctx context.Context, userID uint64, p repository.Page) ([]model.PointEntry, int, error) {
	var out []model.PointEntry
	err := r.run(func(st *state) error {
		for _, e := range st.points {
			if e.UserID == userID {
				out = append(out, e)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].ID, out[j].ID, out[i].CreatedAt, out[j].CreatedAt)
	})
	return paginate(out, p), len(out), err
}

type tokenRepo struct{ repos }

func (r tokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return r.run(func(st *state) error {
		st.tokens[tokenHash] = model.RefreshToken{
			ID: st.id(), UserID: userID, TokenHash: tokenHash, ExpiresAt: exp.UTC(), CreatedAt: now(),
		}
		return nil
	})
}

func (r tokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var uid uint64
	err := r.run(func(st *state) error {
		t, ok := st.tokens[tokenHash]
		if !ok || t.RevokedAt != nil || now().After(t.ExpiresAt) {
			return repository.ErrNotFound
		}
		uid = t.UserID
		return nil
	})
	return uid, err
}

func (r tokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	return r.run(func(st *state) error {
		if t, ok := st.tokens[tokenHash]; ok && t.RevokedAt == nil {
			at := now()
			t.RevokedAt = &at
			st.tokens[tokenHash] = t
		}
		return nil
	})
}

func (r tokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	return r.run(func(st *state) error {
		at := now()
		for h, t := range st.tokens {
			if t.UserID == userID && t.RevokedAt == nil {
				t.RevokedAt = &at
				st.tokens[h] = t
			}
		}
		return nil
	})
}

func (r tokenRepo) PurgeExpired(ctx context.Context, at time.Time) (int64, error) {
	var n int64
	err := r.run(func(st *state) error {
		for h, t := range st.tokens {
			if t.ExpiresAt.Before(at) || t.RevokedAt != nil {
				delete(st.tokens, h)
				n++
			}
		}
		return nil
	})
	return n, err
}
