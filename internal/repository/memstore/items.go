package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository"
)

type itemRepo struct{ repos }

func withLikes(st *state, it model.Item) model.Item {
	it.LikeCount = int64(len(st.likes[it.ID]))
	it.Tags = append([]string{}, it.Tags...)
	it.Images = append([]string{}, it.Images...)
	return it
}

func (r itemRepo) Create(ctx context.Context, it *model.Item) error {
	return r.run(func(st *state) error {
		if it.Status == "" {
			it.Status = model.ItemPending
		}
		t := now()
		it.ID = st.id()
		it.CreatedAt, it.UpdatedAt = t, t
		st.items[it.ID] = withLikes(st, *it)
		return nil
	})
}

func (r itemRepo) GetByID(ctx context.Context, id uint64) (model.Item, error) {
	var it model.Item
	err := r.run(func(st *state) error {
		found, ok := st.items[id]
		if !ok {
			return repository.ErrNotFound
		}
		it = withLikes(st, found)
		return nil
	})
	return it, err
}

// GetForUpdate needs no row lock: transactions already run one at a time.
func (r itemRepo) GetForUpdate(ctx context.Context, id uint64) (model.Item, error) {
	return r.GetByID(ctx, id)
}

func (r itemRepo) Update(ctx context.Context, it *model.Item) error {
	return r.run(func(st *state) error {
		cur, ok := st.items[it.ID]
		if !ok {
			return repository.ErrNotFound
		}
		cur.Title, cur.Description = it.Title, it.Description
		cur.Category, cur.Type, cur.Size, cur.Condition = it.Category, it.Type, it.Size, it.Condition
		cur.PointValue = it.PointValue
		cur.Tags = append([]string{}, it.Tags...)
		cur.Images = append([]string{}, it.Images...)
		cur.Brand, cur.Color, cur.Material, cur.Season = it.Brand, it.Color, it.Material, it.Season
		cur.UpdatedAt = now()
		it.UpdatedAt = cur.UpdatedAt
		st.items[it.ID] = cur
		return nil
	})
}

func (r itemRepo) SetStatus(ctx context.Context, id uint64, from, to model.ItemStatus) error {
	if !from.CanTransition(to) {
		return repository.ErrInvalidTransition
	}
	return r.run(func(st *state) error {
		it, ok := st.items[id]
		if !ok {
			return repository.ErrNotFound
		}
		if it.Status != from {
			return repository.ErrStaleState
		}
		if to == model.ItemDeleted {
			delete(st.items, id)
			delete(st.likes, id)
			return nil
		}
		it.Status = to
		it.UpdatedAt = now()
		st.items[id] = it
		return nil
	})
}

func (r itemRepo) Approve(ctx context.Context, id, adminID uint64, at time.Time) error {
	return r.run(func(st *state) error {
		it, ok := st.items[id]
		if !ok {
			return repository.ErrNotFound
		}
		if it.Status != model.ItemPending {
			return repository.ErrStaleState
		}
		at := at.UTC()
		admin := adminID
		it.Status = model.ItemAvailable
		it.IsApproved = true
		it.ApprovedBy = &admin
		it.ApprovedAt = &at
		it.UpdatedAt = at
		st.items[id] = it
		return nil
	})
}

func (r itemRepo) Delete(ctx context.Context, id uint64) error {
	return r.run(func(st *state) error {
		it, ok := st.items[id]
		if !ok {
			return repository.ErrNotFound
		}
		if !it.Status.Deletable() {
			return repository.ErrStaleState
		}
		delete(st.items, id)
		delete(st.likes, id)
		return nil
	})
}

func matchItem(it model.Item, f repository.ItemFilter) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if it.Status == s {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	switch {
	case f.ApprovedOnly && !it.IsApproved,
		f.UploaderID != 0 && it.UploaderID != f.UploaderID,
		f.Category != "" && it.Category != f.Category,
		f.Type != "" && it.Type != f.Type,
		f.Size != "" && it.Size != f.Size,
		f.Condition != "" && it.Condition != f.Condition,
		f.MinPoints > 0 && it.PointValue < f.MinPoints,
		f.MaxPoints > 0 && it.PointValue > f.MaxPoints,
		!f.Since.IsZero() && it.CreatedAt.Before(f.Since):
		return false
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		return containsFold(it.Title, s) || containsFold(it.Description, s) ||
			containsFold(strings.Join(it.Tags, " "), s)
	}
	return true
}

func lessItem(a, b model.Item, col string) bool {
	switch col {
	case "point_value":
		if a.PointValue != b.PointValue {
			return a.PointValue < b.PointValue
		}
	case "views":
		if a.Views != b.Views {
			return a.Views < b.Views
		}
	case "title":
		if a.Title != b.Title {
			return a.Title < b.Title
		}
	default:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	return a.ID < b.ID
}

func (r itemRepo) List(ctx context.Context, f repository.ItemFilter) ([]model.Item, int, error) {
	var out []model.Item
	err := r.run(func(st *state) error {
		for _, it := range st.items {
			if matchItem(it, f) {
				out = append(out, withLikes(st, it))
			}
		}
		return nil
	})
	col := repository.SortColumn(f.Sort)
	sort.Slice(out, func(i, j int) bool {
		if f.Asc {
			return lessItem(out[i], out[j], col)
		}
		return lessItem(out[j], out[i], col)
	})
	return paginate(out, f.Page), len(out), err
}

func (r itemRepo) Count(ctx context.Context, f repository.ItemFilter) (int, error) {
	n := 0
	err := r.run(func(st *state) error {
		for _, it := range st.items {
			if matchItem(it, f) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r itemRepo) CategoryCounts(ctx context.Context, since time.Time) ([]repository.CategoryCount, error) {
	counts := map[string]int{}
	err := r.run(func(st *state) error {
		for _, it := range st.items {
			if !it.CreatedAt.Before(since) {
				counts[it.Category]++
			}
		}
		return nil
	})
	out := []repository.CategoryCount{}
	for c, n := range counts {
		out = append(out, repository.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out, err
}

func (r itemRepo) IncrementViews(ctx context.Context, id uint64) error {
	return r.run(func(st *state) error {
		if it, ok := st.items[id]; ok {
			it.Views++
			st.items[id] = it
		}
		return nil
	})
}

func (r itemRepo) ToggleLike(ctx context.Context, itemID, userID uint64) (bool, int64, error) {
	var (
		liked bool
		count int64
	)
	err := r.run(func(st *state) error {
		set := st.likes[itemID]
		if set == nil {
			set = map[uint64]bool{}
			st.likes[itemID] = set
		}
		if set[userID] {
			delete(set, userID)
		} else {
			set[userID] = true
			liked = true
		}
		count = int64(len(set))
		return nil
	})
	return liked, count, err
}
