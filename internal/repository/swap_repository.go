package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/rewear/internal/database"
	"github.com/iliyamo/rewear/internal/model"
)

// SwapRepo persists swap requests.
type SwapRepo struct {
	q       querier
	dialect database.Dialect
}

const swapColumns = `id, from_user_id, to_user_id, item_id, kind, message, offered_item_id, points_offered,
	status, reason, accepted_at, declined_at, cancelled_at, cancelled_by, created_at, updated_at`

func scanSwap(row interface{ Scan(...any) error }) (model.SwapRequest, error) {
	var (
		sr                                model.SwapRequest
		kind, status                      string
		offered, cancelledBy              sql.NullInt64
		acceptedAt, declinedAt, cancelled sql.NullTime
	)
	err := row.Scan(&sr.ID, &sr.FromUserID, &sr.ToUserID, &sr.ItemID, &kind, &sr.Message, &offered,
		&sr.PointsOffered, &status, &sr.Reason, &acceptedAt, &declinedAt, &cancelled, &cancelledBy,
		&sr.CreatedAt, &sr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sr, ErrNotFound
	}
	if err != nil {
		return sr, err
	}
	sr.Kind = model.SwapKind(kind)
	sr.Status = model.SwapStatus(status)
	sr.OfferedItemID = idPtr(offered)
	sr.CancelledBy = idPtr(cancelledBy)
	sr.AcceptedAt = timePtr(acceptedAt)
	sr.DeclinedAt = timePtr(declinedAt)
	sr.CancelledAt = timePtr(cancelled)
	return sr, nil
}

// Create inserts a pending request.
func (r *SwapRepo) Create(ctx context.Context, sr *model.SwapRequest) error {
	if sr.Status == "" {
		sr.Status = model.SwapPending
	}
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO swap_requests (from_user_id, to_user_id, item_id, kind, message, offered_item_id,
		 points_offered, status, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		sr.FromUserID, sr.ToUserID, sr.ItemID, string(sr.Kind), sr.Message, nullID(sr.OfferedItemID),
		sr.PointsOffered, string(sr.Status), now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sr.ID = uint64(id)
	sr.CreatedAt, sr.UpdatedAt = now, now
	return nil
}

func (r *SwapRepo) GetByID(ctx context.Context, id uint64) (model.SwapRequest, error) {
	return scanSwap(r.q.QueryRowContext(ctx,
		"SELECT "+swapColumns+" FROM swap_requests WHERE id=?", id))
}

// GetForUpdate locks the request row on MySQL so that concurrent decisions
// on the same request queue behind each other.
func (r *SwapRepo) GetForUpdate(ctx context.Context, id uint64) (model.SwapRequest, error) {
	return scanSwap(r.q.QueryRowContext(ctx,
		"SELECT "+swapColumns+" FROM swap_requests WHERE id=?"+forUpdate(r.dialect), id))
}

func (r *SwapRepo) HasPending(ctx context.Context, fromUserID, itemID uint64) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM swap_requests WHERE from_user_id=? AND item_id=? AND status=?",
		fromUserID, itemID, string(model.SwapPending)).Scan(&n)
	return n > 0, err
}

// Transition is a conditional update keyed on the current status, so at
// most one of several racing transitions on a request can succeed.
func (r *SwapRepo) Transition(ctx context.Context, id uint64, from, to model.SwapStatus, t SwapTransition) error {
	at := t.At.UTC()
	set := "status=?, updated_at=?"
	args := []any{string(to), at}
	switch to {
	case model.SwapAccepted:
		set += ", accepted_at=?"
		args = append(args, at)
	case model.SwapDeclined:
		set += ", declined_at=?, reason=?"
		args = append(args, at, t.Reason)
	case model.SwapCancelled:
		set += ", cancelled_at=?, cancelled_by=?"
		args = append(args, at, nullID(t.CancelledBy))
	}
	args = append(args, id, string(from))

	res, err := r.q.ExecContext(ctx, "UPDATE swap_requests SET "+set+" WHERE id=? AND status=?", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStaleState
}

func swapWhere(f SwapFilter) (string, []any) {
	where := []string{"1=1"}
	var args []any
	if f.UserID != 0 {
		switch f.Role {
		case RoleInitiator:
			where = append(where, "from_user_id=?")
			args = append(args, f.UserID)
		case RoleRecipient:
			where = append(where, "to_user_id=?")
			args = append(args, f.UserID)
		default:
			where = append(where, "(from_user_id=? OR to_user_id=?)")
			args = append(args, f.UserID, f.UserID)
		}
	}
	if f.ItemID != 0 {
		where = append(where, "item_id=?")
		args = append(args, f.ItemID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at>=?")
		args = append(args, f.Since.UTC())
	}
	if !f.AcceptedSince.IsZero() {
		where = append(where, "accepted_at>=?")
		args = append(args, f.AcceptedSince.UTC())
	}
	return strings.Join(where, " AND "), args
}

// List returns matching requests, most recently created first.
func (r *SwapRepo) List(ctx context.Context, f SwapFilter) ([]model.SwapRequest, int, error) {
	cond, args := swapWhere(f)

	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM swap_requests WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + swapColumns + " FROM swap_requests WHERE " + cond + " ORDER BY created_at DESC, id DESC"
	if f.Page.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Page.Limit, f.Page.Offset())
	}
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.SwapRequest{}
	for rows.Next() {
		sr, err := scanSwap(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sr)
	}
	return out, total, rows.Err()
}

func (r *SwapRepo) Count(ctx context.Context, f SwapFilter) (int, error) {
	cond, args := swapWhere(f)
	var n int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM swap_requests WHERE "+cond, args...).Scan(&n)
	return n, err
}
