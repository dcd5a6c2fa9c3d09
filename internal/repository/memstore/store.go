// Package memstore is an in-memory repository.Store. Transactions hold a
// single store-wide lock and operate on a copy of the data that replaces
// the original only on success, so a failed transaction leaves no trace.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository"
)

type state struct {
	users  map[uint64]model.User
	items  map[uint64]model.Item
	likes  map[uint64]map[uint64]bool
	swaps  map[uint64]model.SwapRequest
	tokens map[string]model.RefreshToken
	points []model.PointEntry
	nextID uint64
}

func newState() *state {
	return &state{
		users:  map[uint64]model.User{},
		items:  map[uint64]model.Item{},
		likes:  map[uint64]map[uint64]bool{},
		swaps:  map[uint64]model.SwapRequest{},
		tokens: map[string]model.RefreshToken{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, set := range s.likes {
		cs := make(map[uint64]bool, len(set))
		for u := range set {
			cs[u] = true
		}
		c.likes[k] = cs
	}
	for k, v := range s.swaps {
		c.swaps[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	c.points = append([]model.PointEntry(nil), s.points...)
	c.nextID = s.nextID
	return c
}

func (s *state) id() uint64 {
	s.nextID++
	return s.nextID
}

// Store implements repository.Store in memory.
type Store struct {
	mu   sync.Mutex
	data *state
}

// New returns an empty store.
func New() *Store { return &Store{data: newState()} }

// repos binds repository views to a state. Views handed out by the Store
// itself lock around each call; views inside InTx run under the lock
// already held by the transaction.
type repos struct {
	store *Store
	tx    *state
}

func (r repos) run(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.data)
}

func (s *Store) base() repos { return repos{store: s} }

func (s *Store) Users() repository.UserRepository   { return userRepo{s.base()} }
func (s *Store) Items() repository.ItemRepository   { return itemRepo{s.base()} }
func (s *Store) Swaps() repository.SwapRepository   { return swapRepo{s.base()} }
func (s *Store) Tokens() repository.TokenRepository { return tokenRepo{s.base()} }

type txRepos struct{ repos }

func (t txRepos) Users() repository.UserRepository   { return userRepo{t.repos} }
func (t txRepos) Items() repository.ItemRepository   { return itemRepo{t.repos} }
func (t txRepos) Swaps() repository.SwapRepository   { return swapRepo{t.repos} }
func (t txRepos) Tokens() repository.TokenRepository { return tokenRepo{t.repos} }

// InTx serialises fn against every other store access.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(txRepos{repos{store: s, tx: work}}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func now() time.Time { return time.Now().UTC() }

func paginate[T any](all []T, p repository.Page) []T {
	if p.Limit <= 0 {
		return all
	}
	off := p.Offset()
	if off < 0 || off >= len(all) {
		return []T{}
	}
	end := off + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[off:end]
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// newestFirst orders by creation time, then id, both descending.
func newestFirst(ai, bi uint64, at, bt time.Time) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return ai > bi
}

var _ repository.Store = (*Store)(nil)
