package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/rewear/internal/database"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so every repository
// method runs unchanged inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is the database/sql implementation of Store for MySQL and SQLite.
type SQLStore struct {
	db *sql.DB
	sqlRepos
}

type sqlRepos struct {
	q       querier
	dialect database.Dialect
}

func (r sqlRepos) Users() UserRepository   { return &UserRepo{q: r.q} }
func (r sqlRepos) Items() ItemRepository   { return &ItemRepo{q: r.q, dialect: r.dialect} }
func (r sqlRepos) Swaps() SwapRepository   { return &SwapRepo{q: r.q, dialect: r.dialect} }
func (r sqlRepos) Tokens() TokenRepository { return &TokenRepo{q: r.q} }

// NewSQLStore wraps an open database.
func NewSQLStore(db *sql.DB, d database.Dialect) *SQLStore {
	return &SQLStore{db: db, sqlRepos: sqlRepos{q: db, dialect: d}}
}

// DB exposes the underlying pool for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

// InTx runs fn in a transaction, committing when it returns nil.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(sqlRepos{q: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// forUpdate returns the row-locking suffix for the dialect.
func forUpdate(d database.Dialect) string {
	if d == database.MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// isDuplicate recognises unique-key violations from MySQL (1062) and SQLite.
func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "unique constraint failed")
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func idPtr(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}

func nullID(p *uint64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

var _ Store = (*SQLStore)(nil)
