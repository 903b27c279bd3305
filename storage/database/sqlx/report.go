// Package sqlxrepos holds the read-only queries behind the dashboards.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/report"
)

type reportRepository struct {
	db *sqlx.DB
}

var _ report.Repository = (*reportRepository)(nil)

func NewReportRepository(db *sqlx.DB) report.Repository {
	return &reportRepository{db: db}
}

type groupCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

func (repo *reportRepository) groupCounts(ctx context.Context, query string, args ...interface{}) (map[string]int, error) {
	var rows []groupCount
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Key] += row.Count
	}
	return counts, nil
}

// UsersByRole counts users per role family ("admin:owner" counts as "admin").
func (repo *reportRepository) UsersByRole(ctx context.Context) (map[string]int, error) {
	counts, err := repo.groupCounts(ctx,
		`SELECT split_part(user_role, ':', 1) AS key, count(*) AS count
		FROM "user", unnest(roles) user_role GROUP BY key`)
	if err != nil {
		return nil, errors.Wrap(err, "counting users by role")
	}
	return counts, nil
}

func (repo *reportRepository) CountCourses(ctx context.Context) (active, archived int, err error) {
	var row struct {
		Active   int `db:"active"`
		Archived int `db:"archived"`
	}
	err = repo.db.GetContext(ctx, &row,
		`SELECT count(*) FILTER (WHERE archived_at IS NULL) AS active,
		count(*) FILTER (WHERE archived_at IS NOT NULL) AS archived FROM course`)
	if err != nil {
		return 0, 0, errors.Wrap(err, "counting courses")
	}
	return row.Active, row.Archived, nil
}

func (repo *reportRepository) CountPublishedExams(ctx context.Context) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, `SELECT count(*) FROM exam WHERE published`); err != nil {
		return 0, errors.Wrap(err, "counting published exams")
	}
	return n, nil
}

// courseScope restricts column to courseID, when set.
func courseScope(courseID, column string) (string, []interface{}) {
	if courseID == "" {
		return "", nil
	}
	return " AND " + column + " = ?", []interface{}{courseID}
}

func (repo *reportRepository) CountAttempts(ctx context.Context, courseID string) (total, passed int, avgScore float64, err error) {
	scope, args := courseScope(courseID, "e.course_id")
	var row struct {
		Total  int             `db:"total"`
		Passed int             `db:"passed"`
		Avg    sql.NullFloat64 `db:"avg"`
	}
	err = repo.db.GetContext(ctx, &row, repo.db.Rebind(
		`SELECT count(*) AS total, count(*) FILTER (WHERE a.passed) AS passed,
		avg((a.detail->>'percentage')::double precision) AS avg
		FROM attempt a JOIN exam e ON e.id = a.exam_id WHERE true`+scope), args...)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "counting attempts")
	}
	return row.Total, row.Passed, row.Avg.Float64, nil
}

func (repo *reportRepository) CountCertificates(ctx context.Context, courseID string, now time.Time) (active, expired int, err error) {
	scope, args := courseScope(courseID, "course_id")
	var row struct {
		Active  int `db:"active"`
		Expired int `db:"expired"`
	}
	err = repo.db.GetContext(ctx, &row, repo.db.Rebind(
		`SELECT count(*) FILTER (WHERE expires_at > ?) AS active, count(*) FILTER (WHERE expires_at <= ?) AS expired
		FROM certificate WHERE true`+scope), append([]interface{}{now.UTC(), now.UTC()}, args...)...)
	if err != nil {
		return 0, 0, errors.Wrap(err, "counting certificates")
	}
	return row.Active, row.Expired, nil
}

func (repo *reportRepository) EnrollmentsByStatus(ctx context.Context, courseID string) (map[string]int, error) {
	scope, args := courseScope(courseID, "course_id")
	counts, err := repo.groupCounts(ctx,
		`SELECT status AS key, count(*) AS count FROM enrollment WHERE true`+scope+` GROUP BY status`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "counting enrollments")
	}
	return counts, nil
}

func (repo *reportRepository) CountAttendance(ctx context.Context, courseID string, since time.Time) (report.AttendanceCounts, error) {
	conds := []string{"true"}
	var args []interface{}
	if courseID != "" {
		conds = append(conds, "s.course_id = ?")
		args = append(args, courseID)
	}
	if !since.IsZero() {
		conds = append(conds, "s.starts_at >= ?")
		args = append(args, since.UTC())
	}

	var counts report.AttendanceCounts
	err := repo.db.GetContext(ctx, &counts, repo.db.Rebind(
		`SELECT count(*) AS total, count(*) FILTER (WHERE a.status IN ('present', 'late')) AS attended
		FROM attendance a JOIN training_session s ON s.id = a.session_id WHERE `+strings.Join(conds, " AND ")), args...)
	if err != nil {
		return report.AttendanceCounts{}, errors.Wrap(err, "counting attendance")
	}
	return counts, nil
}

func (repo *reportRepository) CourseTitle(ctx context.Context, courseID string) (string, error) {
	var title string
	err := repo.db.GetContext(ctx, &title, repo.db.Rebind(`SELECT title FROM course WHERE id::text = ?`), courseID)
	if err == sql.ErrNoRows {
		return "", report.ErrCourseNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "finding course title")
	}
	return title, nil
}
