package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/rewear/internal/database"
	"github.com/iliyamo/rewear/internal/model"
)

// ItemRepo persists catalog items. Tags and images are stored as JSON
// arrays in text columns.
type ItemRepo struct {
	q       querier
	dialect database.Dialect
}

const itemColumns = `id, uploader_id, title, description, category, item_type, size, item_condition,
	point_value, tags, images, brand, color, material, season, status, is_approved,
	approved_by, approved_at, views, created_at, updated_at,
	(SELECT COUNT(*) FROM item_likes l WHERE l.item_id = items.id) AS like_count`

func scanItem(row interface{ Scan(...any) error }) (model.Item, error) {
	var (
		it           model.Item
		tags, images string
		approvedBy   sql.NullInt64
		approvedAt   sql.NullTime
		status       string
	)
	err := row.Scan(&it.ID, &it.UploaderID, &it.Title, &it.Description, &it.Category, &it.Type,
		&it.Size, &it.Condition, &it.PointValue, &tags, &images, &it.Brand, &it.Color,
		&it.Material, &it.Season, &status, &it.IsApproved, &approvedBy, &approvedAt,
		&it.Views, &it.CreatedAt, &it.UpdatedAt, &it.LikeCount)
	if errors.Is(err, sql.ErrNoRows) {
		return it, ErrNotFound
	}
	if err != nil {
		return it, err
	}
	it.Status = model.ItemStatus(status)
	it.ApprovedBy = idPtr(approvedBy)
	it.ApprovedAt = timePtr(approvedAt)
	it.Tags = decodeList(tags)
	it.Images = decodeList(images)
	return it, nil
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s string) []string {
	out := []string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

// Create inserts a new item. Status defaults to pending.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	if it.Status == "" {
		it.Status = model.ItemPending
	}
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO items (uploader_id, title, description, category, item_type, size, item_condition,
		 point_value, tags, images, brand, color, material, season, status, is_approved, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		it.UploaderID, it.Title, it.Description, it.Category, it.Type, it.Size, it.Condition,
		it.PointValue, encodeList(it.Tags), encodeList(it.Images), it.Brand, it.Color, it.Material,
		it.Season, string(it.Status), it.IsApproved, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	it.ID = uint64(id)
	it.CreatedAt, it.UpdatedAt = now, now
	return nil
}

func (r *ItemRepo) GetByID(ctx context.Context, id uint64) (model.Item, error) {
	return scanItem(r.q.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id=?", id))
}

// GetForUpdate locks the item row on MySQL.
func (r *ItemRepo) GetForUpdate(ctx context.Context, id uint64) (model.Item, error) {
	return scanItem(r.q.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id=?"+forUpdate(r.dialect), id))
}

func (r *ItemRepo) Update(ctx context.Context, it *model.Item) error {
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx,
		`UPDATE items SET title=?, description=?, category=?, item_type=?, size=?, item_condition=?,
		 point_value=?, tags=?, images=?, brand=?, color=?, material=?, season=?, updated_at=?
		 WHERE id=?`,
		it.Title, it.Description, it.Category, it.Type, it.Size, it.Condition, it.PointValue,
		encodeList(it.Tags), encodeList(it.Images), it.Brand, it.Color, it.Material, it.Season,
		now, it.ID)
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
	it.UpdatedAt = now
	return nil
}

// SetStatus applies a permitted edge with a conditional update keyed on the
// current status. The pending→deleted edge is served by Delete.
func (r *ItemRepo) SetStatus(ctx context.Context, id uint64, from, to model.ItemStatus) error {
	if !from.CanTransition(to) {
		return ErrInvalidTransition
	}
	if to == model.ItemDeleted {
		return r.deleteWhere(ctx, id, []model.ItemStatus{from})
	}
	res, err := r.q.ExecContext(ctx,
		"UPDATE items SET status=?, updated_at=? WHERE id=? AND status=?",
		string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, id)
}

func (r *ItemRepo) Approve(ctx context.Context, id, adminID uint64, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE items SET status=?, is_approved=?, approved_by=?, approved_at=?, updated_at=?
		 WHERE id=? AND status=?`,
		string(model.ItemAvailable), true, adminID, at.UTC(), at.UTC(), id, string(model.ItemPending))
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, id)
}

// Delete removes the item while it is pending or available. Swap requests
// referencing it are left in place.
func (r *ItemRepo) Delete(ctx context.Context, id uint64) error {
	return r.deleteWhere(ctx, id, []model.ItemStatus{model.ItemPending, model.ItemAvailable})
}

func (r *ItemRepo) deleteWhere(ctx context.Context, id uint64, statuses []model.ItemStatus) error {
	args := []any{id}
	for _, s := range statuses {
		args = append(args, string(s))
	}
	res, err := r.q.ExecContext(ctx,
		"DELETE FROM items WHERE id=? AND status IN ("+placeholders(len(statuses))+")", args...)
	if err != nil {
		return err
	}
	if err := r.checkAffected(ctx, res, id); err != nil {
		return err
	}
	// Likes go only once the item row is gone.
	_, err = r.q.ExecContext(ctx, "DELETE FROM item_likes WHERE item_id=?", id)
	return err
}

// checkAffected maps zero affected rows to ErrNotFound or ErrStaleState.
func (r *ItemRepo) checkAffected(ctx context.Context, res sql.Result, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = r.q.QueryRowContext(ctx, "SELECT 1 FROM items WHERE id=?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrStaleState
}

func itemWhere(f ItemFilter) (string, []any) {
	where := []string{"1=1"}
	var args []any
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.ApprovedOnly {
		where = append(where, "is_approved=?")
		args = append(args, true)
	}
	if f.UploaderID != 0 {
		where = append(where, "uploader_id=?")
		args = append(args, f.UploaderID)
	}
	for col, v := range map[string]string{
		"category": f.Category, "item_type": f.Type, "size": f.Size, "item_condition": f.Condition,
	} {
		if v != "" {
			where = append(where, col+"=?")
			args = append(args, v)
		}
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		where = append(where, "(title LIKE ? OR description LIKE ? OR tags LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.MinPoints > 0 {
		where = append(where, "point_value>=?")
		args = append(args, f.MinPoints)
	}
	if f.MaxPoints > 0 {
		where = append(where, "point_value<=?")
		args = append(args, f.MaxPoints)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at>=?")
		args = append(args, f.Since.UTC())
	}
	return strings.Join(where, " AND "), args
}

func (r *ItemRepo) List(ctx context.Context, f ItemFilter) ([]model.Item, int, error) {
	cond, args := itemWhere(f)

	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := " DESC"
	if f.Asc {
		dir = " ASC"
	}
	q := "SELECT " + itemColumns + " FROM items WHERE " + cond +
		" ORDER BY " + SortColumn(f.Sort) + dir + ", id" + dir
	if f.Page.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Page.Limit, f.Page.Offset())
	}
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

func (r *ItemRepo) Count(ctx context.Context, f ItemFilter) (int, error) {
	cond, args := itemWhere(f)
	var n int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE "+cond, args...).Scan(&n)
	return n, err
}

// CategoryCounts groups items created since the given time by category,
// largest group first.
func (r *ItemRepo) CategoryCounts(ctx context.Context, since time.Time) ([]CategoryCount, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT category, COUNT(*) AS n FROM items WHERE created_at>=?
		 GROUP BY category ORDER BY n DESC, category ASC`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ItemRepo) IncrementViews(ctx context.Context, id uint64) error {
	_, err := r.q.ExecContext(ctx, "UPDATE items SET views = views + 1 WHERE id=?", id)
	return err
}

func (r *ItemRepo) ToggleLike(ctx context.Context, itemID, userID uint64) (bool, int64, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM item_likes WHERE item_id=? AND user_id=?", itemID, userID)
	if err != nil {
		return false, 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, 0, err
	}
	liked := n == 0
	if liked {
		if _, err := r.q.ExecContext(ctx,
			"INSERT INTO item_likes (item_id, user_id, created_at) VALUES (?,?,?)",
			itemID, userID, time.Now().UTC()); err != nil {
			return false, 0, err
		}
	}
	var count int64
	err = r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM item_likes WHERE item_id=?", itemID).Scan(&count)
	return liked, count, err
}
