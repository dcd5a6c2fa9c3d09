// Package service holds the business rules of the exchange: the swap
// negotiation engine, the item catalog, moderation and accounts. Services
// depend only on repository.Store, so they run unchanged against MySQL,
// SQLite or the in-memory store.
package service

import (
	"context"
	"errors"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/queue"
	"github.com/iliyamo/rewear/internal/repository"
)

// EventPublisher receives swap lifecycle events after they are committed.
type EventPublisher interface {
	PublishSwapEvent(ctx context.Context, ev queue.SwapEvent) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) PublishSwapEvent(context.Context, queue.SwapEvent) error { return nil }

// Pagination describes one page of a listing.
type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
}

func newPagination(p repository.Page, total int) Pagination {
	pages := 1
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Current: p.Page, Pages: pages, Total: total}
}

// notFound turns repository.ErrNotFound into a user-facing NotFound error
// naming what was missing. Other errors pass through.
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFoundf(what + " not found")
	}
	return err
}

// itemStateErr maps the outcome of a conditional item update.
func itemStateErr(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFoundf(what + " not found")
	case errors.Is(err, repository.ErrStaleState), errors.Is(err, repository.ErrInvalidTransition):
		return apperr.InvalidStatef(what + " is no longer available")
	}
	return err
}
