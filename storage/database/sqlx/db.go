// Package sqlxrepos implements the repositories on top of jmoiron/sqlx.
// Queries use ? bindvars and are rebound for the connection driver (postgres or sqlite).
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"

	"github.com/trezcool/masomo-lms/core"
)

const (
	pqUniqueViolation    = "23505"
	sqliteConstraintUniq = 2067 // SQLITE_CONSTRAINT_UNIQUE
	sqliteConstraintPKey = 1555 // SQLITE_CONSTRAINT_PRIMARYKEY
)

type repo struct {
	db *sqlx.DB
}

func (r repo) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return r.db.GetContext(ctx, dest, r.db.Rebind(query), args...)
}

func (r repo) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return r.db.SelectContext(ctx, dest, r.db.Rebind(query), args...)
}

func (r repo) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.db.Rebind(query), args...)
}

// execAffected runs query and returns the number of affected rows.
func (r repo) execAffected(ctx context.Context, query string, args ...interface{}) (int, error) {
	res, err := r.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// in expands the slice args of an IN (?) query.
func (r repo) in(query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	return q, a, errors.Wrap(err, "expanding IN query")
}

// mustExist returns notFound when the exec affected no row.
func mustExist(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func noRows(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqliteConstraintUniq || sqliteErr.Code() == sqliteConstraintPKey
	}
	return false
}

// orderBy renders ordering, or def when empty. Fields must have been checked with core.CleanOrderings.
func orderBy(ordering []core.DBOrdering, def string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + def
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// likePattern escapes s for a case-insensitive LIKE match on LOWER(column).
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
