package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/rewear/internal/model"
)

// UserRepo persists users and the points ledger.
type UserRepo struct{ q querier }

const userColumns = "id, name, email, password_hash, role, points, bio, location, is_active, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Points,
		&u.Bio, &u.Location, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// Create inserts u and fills in its ID and timestamps. The email is
// normalised to lower case.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, points, bio, location, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.Name, u.Email, u.PasswordHash, u.Role, u.Points, u.Bio, u.Location, true, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.IsActive = true
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name, bio, location string) error {
	return r.execOne(ctx,
		"UPDATE users SET name=?, bio=?, location=?, updated_at=? WHERE id=?",
		name, bio, location, time.Now().UTC(), id)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	return r.execOne(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=?",
		hash, time.Now().UTC(), id)
}

func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	return r.execOne(ctx,
		"UPDATE users SET is_active=?, updated_at=? WHERE id=?",
		active, time.Now().UTC(), id)
}

func (r *UserRepo) Close(ctx context.Context, id uint64) error {
	return r.execOne(ctx,
		`UPDATE users SET name=?, email=?, password_hash='', bio='', location='', is_active=?, updated_at=?
		 WHERE id=?`,
		ClosedName, ClosedEmail(id), false, time.Now().UTC(), id)
}

// execOne runs an update addressed to one user and maps zero affected rows
// to ErrNotFound. updated_at always changes, so MySQL reports the row as
// affected even when the other values are identical.
func (r *UserRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.q.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns users matching f, newest first, and the total match count.
func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]model.User, int, error) {
	where := []string{"1=1"}
	var args []any
	if f.Role != "" {
		where = append(where, "role=?")
		args = append(args, f.Role)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(name LIKE ? OR email LIKE ?)")
		args = append(args, "%"+s+"%", "%"+s+"%")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + userColumns + " FROM users WHERE " + cond + " ORDER BY created_at DESC, id DESC"
	if f.Page.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Page.Limit, f.Page.Offset())
	}
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Count returns the number of users with the role (any role when empty)
// created at or after since (ever when zero).
func (r *UserRepo) Count(ctx context.Context, role string, since time.Time) (int, error) {
	q := "SELECT COUNT(*) FROM users WHERE 1=1"
	var args []any
	if role != "" {
		q += " AND role=?"
		args = append(args, role)
	}
	if !since.IsZero() {
		q += " AND created_at>=?"
		args = append(args, since.UTC())
	}
	var n int
	err := r.q.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

// AdjustBalance applies delta with a conditional update so that the
// balance can never go negative, even under concurrent adjustments.
// Callers needing the ledger entry and the balance change to be atomic
// must run it inside Store.InTx.
func (r *UserRepo) AdjustBalance(ctx context.Context, id uint64, delta int64, reason string, swapID *uint64) (int64, error) {
	if delta == 0 {
		var bal int64
		err := r.q.QueryRowContext(ctx, "SELECT points FROM users WHERE id=?", id).Scan(&bal)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return bal, err
	}

	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx,
		"UPDATE users SET points = points + ?, updated_at=? WHERE id=? AND points + ? >= 0",
		delta, now, id, delta)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	var bal int64
	err = r.q.QueryRowContext(ctx, "SELECT points FROM users WHERE id=?", id).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return bal, ErrInsufficientBalance
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO point_entries (user_id, delta, balance_after, reason, swap_request_id, created_at)
		 VALUES (?,?,?,?,?,?)`,
		id, delta, bal, reason, nullID(swapID), now)
	if err != nil {
		return 0, err
	}
	return bal, nil
}

// PointHistory lists a user's ledger entries, newest first.
func (r *UserRepo) PointHistory(ctx context.Context, userID uint64, p Page) ([]model.PointEntry, int, error) {
	var total int
	if err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM point_entries WHERE user_id=?", userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT id, user_id, delta, balance_after, reason, swap_request_id, created_at
	      FROM point_entries WHERE user_id=? ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if p.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, p.Offset())
	}
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.PointEntry
	for rows.Next() {
		var (
			e    model.PointEntry
			swap sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.BalanceAfter, &e.Reason, &swap, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.SwapRequestID = idPtr(swap)
		out = append(out, e)
	}
	return out, total, rows.Err()
}
