// Package boiledrepos implements the repositories on PostgreSQL with sqlboiler query binding.
package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/academia/core"
)

const pqUniqueViolation = "23505"

var newID = uuid.NewString // mockable

type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// raw builds a query written with "?" placeholders. Slice arguments are expanded for IN clauses.
func raw(query string, args ...interface{}) (*queries.Query, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "expanding query")
	}
	return queries.Raw(sqlx.Rebind(sqlx.DOLLAR, query), args...), nil
}

func bind(ctx context.Context, exec core.DBExecutor, obj interface{}, query string, args ...interface{}) error {
	q, err := raw(query, args...)
	if err != nil {
		return err
	}
	return q.Bind(ctx, exec, obj)
}

func execute(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int, error) {
	q, err := raw(query, args...)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, exec)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func count(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int, error) {
	var n int
	err := exec.QueryRowContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...).Scan(&n)
	return n, err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// trapNoRowsErr maps "no rows" to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if isNoRows(err) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// uniqueViolation returns the violated constraint name, if err is a unique violation.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// validID reports whether id can be compared with a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullID(id string) null.String {
	return null.NewString(id, validID(id))
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func ptrTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}
