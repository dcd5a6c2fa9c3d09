package memstore

import (
	"context"
	"sort"

	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository"
)

type swapRepo struct{ repos }

func (r swapRepo) Create(ctx context.Context, sr *model.SwapRequest) error {
	return r.run(func(st *state) error {
		if sr.Status == "" {
			sr.Status = model.SwapPending
		}
		t := now()
		sr.ID = st.id()
		sr.CreatedAt, sr.UpdatedAt = t, t
		st.swaps[sr.ID] = *sr
		return nil
	})
}

func (r swapRepo) GetByID(ctx context.Context, id uint64) (model.SwapRequest, error) {
	var sr model.SwapRequest
	err := r.run(func(st *state) error {
		found, ok := st.swaps[id]
		if !ok {
			return repository.ErrNotFound
		}
		sr = found
		return nil
	})
	return sr, err
}

func (r swapRepo) GetForUpdate(ctx context.Context, id uint64) (model.SwapRequest, error) {
	return r.GetByID(ctx, id)
}

func (r swapRepo) HasPending(ctx context.Context, fromUserID, itemID uint64) (bool, error) {
	found := false
	err := r.run(func(st *state) error {
		for _, sr := range st.swaps {
			if sr.FromUserID == fromUserID && sr.ItemID == itemID && sr.Status == model.SwapPending {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r swapRepo) Transition(ctx context.Context, id uint64, from, to model.SwapStatus, t repository.SwapTransition) error {
	return r.run(func(st *state) error {
		sr, ok := st.swaps[id]
		if !ok {
			return repository.ErrNotFound
		}
		if sr.Status != from {
			return repository.ErrStaleState
		}
		at := t.At.UTC()
		sr.Status = to
		sr.UpdatedAt = at
		switch to {
		case model.SwapAccepted:
			sr.AcceptedAt = &at
		case model.SwapDeclined:
			sr.DeclinedAt = &at
			sr.Reason = t.Reason
		case model.SwapCancelled:
			sr.CancelledAt = &at
			sr.CancelledBy = t.CancelledBy
		}
		st.swaps[id] = sr
		return nil
	})
}

func matchSwap(sr model.SwapRequest, f repository.SwapFilter) bool {
	if f.UserID != 0 {
		switch f.Role {
		case repository.RoleInitiator:
			if sr.FromUserID != f.UserID {
				return false
			}
		case repository.RoleRecipient:
			if sr.ToUserID != f.UserID {
				return false
			}
		default:
			if !sr.Involves(f.UserID) {
				return false
			}
		}
	}
	if f.ItemID != 0 && sr.ItemID != f.ItemID {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if sr.Status == s {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	if !f.Since.IsZero() && sr.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.AcceptedSince.IsZero() && (sr.AcceptedAt == nil || sr.AcceptedAt.Before(f.AcceptedSince)) {
		return false
	}
	return true
}

func (r swapRepo) List(ctx context.Context, f repository.SwapFilter) ([]model.SwapRequest, int, error) {
	var out []model.SwapRequest
	err := r.run(func(st *state) error {
		for _, sr := range st.swaps {
			if matchSwap(sr, f) {
				out = append(out, sr)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].ID, out[j].ID, out[i].CreatedAt, out[j].CreatedAt)
	})
	return paginate(out, f.Page), len(out), err
}

func (r swapRepo) Count(ctx context.Context, f repository.SwapFilter) (int, error) {
	n := 0
	err := r.run(func(st *state) error {
		for _, sr := range st.swaps {
			if matchSwap(sr, f) {
				n++
			}
		}
		return nil
	})
	return n, err
}
