package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/queue"
	"github.com/iliyamo/rewear/internal/repository"
)

// SwapService is the swap negotiation engine. Every state change runs in
// one store transaction; a request leaves pending at most once because the
// status write is conditional on the request still being pending.
type SwapService struct {
	store  repository.Store
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

// NewSwapService wires the engine. A nil publisher discards events.
func NewSwapService(store repository.Store, events EventPublisher, log *zap.Logger) *SwapService {
	if events == nil {
		events = NopPublisher{}
	}
	return &SwapService{store: store, events: events, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Create opens a pending request for another user's available item.
// Preconditions are checked in a fixed order and each failure has its own
// error kind. Nothing but the request itself is written.
func (s *SwapService) Create(ctx context.Context, caller uint64, in CreateSwapInput) (model.SwapRequest, error) {
	msg := strings.TrimSpace(in.Message)

	var created model.SwapRequest
	err := s.store.InTx(ctx, func(tx repository.Repos) error {
		item, err := tx.Items().GetForUpdate(ctx, in.ItemID)
		if err != nil {
			return notFound(err, "item")
		}
		if item.Status != model.ItemAvailable {
			return apperr.InvalidStatef("item is not available for swap")
		}
		if item.IsOwnedBy(caller) {
			return apperr.Forbiddenf("cannot swap your own item")
		}
		dup, err := tx.Swaps().HasPending(ctx, caller, item.ID)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Conflictf("duplicate pending request")
		}
		// Body shape is validated only once the item checks have passed.
		if in.Offer == nil {
			return apperr.Validationf("type must be swap or redeem")
		}
		if utf8.RuneCountInString(msg) > model.MaxSwapMessage {
			return apperr.Validationf("message cannot exceed 500 characters")
		}

		req := model.SwapRequest{
			FromUserID: caller,
			ToUserID:   item.UploaderID,
			ItemID:     item.ID,
			Kind:       in.Offer.Kind(),
			Message:    msg,
			Status:     model.SwapPending,
		}
		switch offer := in.Offer.(type) {
		case SwapOffer:
			if offer.OfferedItemID == 0 {
				return apperr.Validationf("offered item is required for swap requests")
			}
			offered, err := tx.Items().GetByID(ctx, offer.OfferedItemID)
			if err != nil {
				return notFound(err, "offered item")
			}
			if !offered.IsOwnedBy(caller) {
				return apperr.Forbiddenf("offered item does not belong to you")
			}
			if offered.Status != model.ItemAvailable {
				return apperr.InvalidStatef("offered item is not available")
			}
			id := offered.ID
			req.OfferedItemID = &id
		case RedeemOffer:
			if offer.Points <= 0 {
				return apperr.Validationf("points offered must be greater than zero")
			}
			user, err := tx.Users().GetByID(ctx, caller)
			if err != nil {
				return notFound(err, "user")
			}
			if user.Points < offer.Points {
				return apperr.Insufficientf("insufficient points balance")
			}
			req.PointsOffered = offer.Points
		}

		if err := tx.Swaps().Create(ctx, &req); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return model.SwapRequest{}, err
	}

	s.log.Info("swap request created",
		zap.Uint64("request_id", created.ID),
		zap.String("kind", string(created.Kind)),
		zap.Uint64("item_id", created.ItemID),
		zap.Uint64("from_user", created.FromUserID),
		zap.Uint64("to_user", created.ToUserID))
	s.publish(ctx, queue.EventSwapCreated, created)
	return created, nil
}

type decider int

const (
	byRecipient decider = iota
	byRequester
)

// loadPending reads and locks a request, then checks that caller may
// decide it and that it is still pending.
func loadPending(ctx context.Context, tx repository.Repos, id, caller uint64, who decider) (model.SwapRequest, error) {
	req, err := tx.Swaps().GetForUpdate(ctx, id)
	if err != nil {
		return req, notFound(err, "swap request")
	}
	switch who {
	case byRecipient:
		if req.ToUserID != caller {
			return req, apperr.Forbiddenf("only the recipient can respond to this request")
		}
	case byRequester:
		if req.FromUserID != caller {
			return req, apperr.Forbiddenf("only the requester can cancel this request")
		}
	}
	if req.Status != model.SwapPending {
		return req, apperr.InvalidStatef("swap request is not pending")
	}
	return req, nil
}

// transition writes the status change and reports a lost race as
// InvalidState.
func transition(ctx context.Context, tx repository.Repos, id uint64, to model.SwapStatus, t repository.SwapTransition) error {
	err := tx.Swaps().Transition(ctx, id, model.SwapPending, to, t)
	if errors.Is(err, repository.ErrStaleState) {
		return apperr.InvalidStatef("swap request is not pending")
	}
	return notFound(err, "swap request")
}

// Accept completes a pending request as one all-or-nothing unit: the
// request becomes accepted, the requested item becomes swapped or
// redeemed, points move from requester to recipient for a redemption, and
// the offered item becomes swapped for a swap. The requester's balance is
// re-checked here; the check made at creation time is not trusted.
func (s *SwapService) Accept(ctx context.Context, caller, id uint64) (model.SwapRequest, error) {
	at := s.now()
	var accepted model.SwapRequest
	err := s.store.InTx(ctx, func(tx repository.Repos) error {
		req, err := loadPending(ctx, tx, id, caller, byRecipient)
		if err != nil {
			return err
		}
		if err := transition(ctx, tx, id, model.SwapAccepted, repository.SwapTransition{At: at}); err != nil {
			return err
		}

		target := model.ItemSwapped
		if req.Kind == model.KindRedeem {
			target = model.ItemRedeemed
		}
		if err := tx.Items().SetStatus(ctx, req.ItemID, model.ItemAvailable, target); err != nil {
			return itemStateErr(err, "item")
		}

		if req.Kind == model.KindRedeem && req.PointsOffered > 0 {
			rid := req.ID
			_, err := tx.Users().AdjustBalance(ctx, req.FromUserID, -req.PointsOffered, model.PointReasonRedeemDebit, &rid)
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return apperr.Insufficientf("requester no longer has enough points")
			}
			if err != nil {
				return notFound(err, "requester")
			}
			if _, err := tx.Users().AdjustBalance(ctx, req.ToUserID, req.PointsOffered, model.PointReasonRedeemCredit, &rid); err != nil {
				return notFound(err, "recipient")
			}
		}

		if req.Kind == model.KindSwap && req.OfferedItemID != nil {
			if err := tx.Items().SetStatus(ctx, *req.OfferedItemID, model.ItemAvailable, model.ItemSwapped); err != nil {
				return itemStateErr(err, "offered item")
			}
		}

		req.Status = model.SwapAccepted
		req.AcceptedAt = &at
		req.UpdatedAt = at
		accepted = req
		return nil
	})
	if err != nil {
		return model.SwapRequest{}, err
	}

	s.log.Info("swap request accepted",
		zap.Uint64("request_id", accepted.ID),
		zap.String("kind", string(accepted.Kind)),
		zap.Int64("points", accepted.PointsOffered))
	s.publish(ctx, queue.EventSwapAccepted, accepted)
	return accepted, nil
}

// Decline rejects a pending request on behalf of its recipient. Items and
// balances are untouched.
func (s *SwapService) Decline(ctx context.Context, caller, id uint64, reason string) (model.SwapRequest, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > model.MaxSwapReason {
		return model.SwapRequest{}, apperr.Validationf("reason cannot exceed 200 characters")
	}
	at := s.now()
	var declined model.SwapRequest
	err := s.store.InTx(ctx, func(tx repository.Repos) error {
		req, err := loadPending(ctx, tx, id, caller, byRecipient)
		if err != nil {
			return err
		}
		if err := transition(ctx, tx, id, model.SwapDeclined, repository.SwapTransition{At: at, Reason: reason}); err != nil {
			return err
		}
		req.Status = model.SwapDeclined
		req.DeclinedAt = &at
		req.Reason = reason
		req.UpdatedAt = at
		declined = req
		return nil
	})
	if err != nil {
		return model.SwapRequest{}, err
	}

	s.log.Info("swap request declined", zap.Uint64("request_id", declined.ID))
	s.publish(ctx, queue.EventSwapDeclined, declined)
	return declined, nil
}

// Cancel withdraws a pending request on behalf of its requester.
func (s *SwapService) Cancel(ctx context.Context, caller, id uint64) (model.SwapRequest, error) {
	at := s.now()
	var cancelled model.SwapRequest
	err := s.store.InTx(ctx, func(tx repository.Repos) error {
		req, err := loadPending(ctx, tx, id, caller, byRequester)
		if err != nil {
			return err
		}
		by := caller
		if err := transition(ctx, tx, id, model.SwapCancelled, repository.SwapTransition{At: at, CancelledBy: &by}); err != nil {
			return err
		}
		req.Status = model.SwapCancelled
		req.CancelledAt = &at
		req.CancelledBy = &by
		req.UpdatedAt = at
		cancelled = req
		return nil
	})
	if err != nil {
		return model.SwapRequest{}, err
	}

	s.log.Info("swap request cancelled", zap.Uint64("request_id", cancelled.ID))
	s.publish(ctx, queue.EventSwapCancelled, cancelled)
	return cancelled, nil
}

// Get returns a request to one of its participants or an admin.
func (s *SwapService) Get(ctx context.Context, caller uint64, isAdmin bool, id uint64) (model.SwapView, error) {
	req, err := s.store.Swaps().GetByID(ctx, id)
	if err != nil {
		return model.SwapView{}, notFound(err, "swap request")
	}
	if !isAdmin && !req.Involves(caller) {
		return model.SwapView{}, apperr.Forbiddenf("not authorized to view this request")
	}
	return req.ViewFor(caller), nil
}

// SwapPage is one page of a user's swap requests.
type SwapPage struct {
	Swaps      []model.SwapView `json:"swaps"`
	Pagination Pagination       `json:"pagination"`
}

// ListQuery selects a user's requests.
type ListQuery struct {
	Role     repository.SwapRole
	Statuses []model.SwapStatus
	Page     repository.Page
}

// ListForUser returns the caller's requests, newest first, each annotated
// with whether the caller initiated it.
func (s *SwapService) ListForUser(ctx context.Context, caller uint64, q ListQuery) (SwapPage, error) {
	rows, total, err := s.store.Swaps().List(ctx, repository.SwapFilter{
		UserID:   caller,
		Role:     q.Role,
		Statuses: q.Statuses,
		Page:     q.Page,
	})
	if err != nil {
		return SwapPage{}, err
	}
	views := make([]model.SwapView, 0, len(rows))
	for _, r := range rows {
		views = append(views, r.ViewFor(caller))
	}
	return SwapPage{Swaps: views, Pagination: newPagination(q.Page, total)}, nil
}

// ParseStatusFilter parses an optional status query value.
func ParseStatusFilter(raw string) ([]model.SwapStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	st := model.SwapStatus(strings.ToLower(raw))
	if !st.Valid() {
		return nil, apperr.Validationf("unknown status " + raw)
	}
	return []model.SwapStatus{st}, nil
}

// ListMine lists requests on either side.
func (s *SwapService) ListMine(ctx context.Context, caller uint64, statuses []model.SwapStatus, p repository.Page) (SwapPage, error) {
	return s.ListForUser(ctx, caller, ListQuery{Role: repository.RoleAny, Statuses: statuses, Page: p})
}

// ListReceived lists requests addressed to the caller.
func (s *SwapService) ListReceived(ctx context.Context, caller uint64, statuses []model.SwapStatus, p repository.Page) (SwapPage, error) {
	return s.ListForUser(ctx, caller, ListQuery{Role: repository.RoleRecipient, Statuses: statuses, Page: p})
}

// ListSent lists requests the caller created.
func (s *SwapService) ListSent(ctx context.Context, caller uint64, statuses []model.SwapStatus, p repository.Page) (SwapPage, error) {
	return s.ListForUser(ctx, caller, ListQuery{Role: repository.RoleInitiator, Statuses: statuses, Page: p})
}

// ListHistory lists the caller's decided requests.
func (s *SwapService) ListHistory(ctx context.Context, caller uint64, p repository.Page) (SwapPage, error) {
	return s.ListForUser(ctx, caller, ListQuery{Role: repository.RoleAny, Statuses: model.HistoryStatuses, Page: p})
}

// publish emits an event for a committed change. Failures are logged and
// never undo the change.
func (s *SwapService) publish(ctx context.Context, typ string, req model.SwapRequest) {
	ev := queue.NewSwapEvent(typ, req, s.now())
	if err := s.events.PublishSwapEvent(ctx, ev); err != nil {
		s.log.Warn("publish swap event failed",
			zap.String("type", typ),
			zap.Uint64("request_id", req.ID),
			zap.Error(err))
	}
}
