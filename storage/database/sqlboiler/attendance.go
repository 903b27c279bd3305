package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
)

const (
	sessionColumns    = `id, course_id, title, location, starts_at, ends_at, instructor_id, created_at`
	attendanceColumns = `id, session_id, user_id, status, method, notes, captured_by, captured_at`
)

type (
	sessionRow struct {
		ID           string      `boil:"id"`
		CourseID     string      `boil:"course_id"`
		Title        string      `boil:"title"`
		Location     string      `boil:"location"`
		StartsAt     time.Time   `boil:"starts_at"`
		EndsAt       time.Time   `boil:"ends_at"`
		InstructorID null.String `boil:"instructor_id"`
		CreatedAt    time.Time   `boil:"created_at"`
	}

	attendanceRow struct {
		ID         string      `boil:"id"`
		SessionID  string      `boil:"session_id"`
		UserID     string      `boil:"user_id"`
		Status     string      `boil:"status"`
		Method     string      `boil:"method"`
		Notes      string      `boil:"notes"`
		CapturedBy null.String `boil:"captured_by"`
		CapturedAt time.Time   `boil:"captured_at"`
	}
)

func (row sessionRow) unboil() attendance.Session {
	return attendance.Session{
		ID:           row.ID,
		CourseID:     row.CourseID,
		Title:        row.Title,
		Location:     row.Location,
		StartsAt:     row.StartsAt.UTC(),
		EndsAt:       row.EndsAt.UTC(),
		InstructorID: row.InstructorID.String,
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

func (row attendanceRow) unboil() attendance.Attendance {
	return attendance.Attendance{
		ID:         row.ID,
		SessionID:  row.SessionID,
		UserID:     row.UserID,
		Status:     row.Status,
		Method:     row.Method,
		Notes:      row.Notes,
		CapturedBy: row.CapturedBy.String,
		CapturedAt: row.CapturedAt.UTC(),
	}
}

type attendanceRepository struct {
	baseRepository
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(exec core.DBExecutor) attendance.Repository {
	return &attendanceRepository{baseRepository{exec: exec}}
}

func (repo attendanceRepository) CreateSession(ctx context.Context, s attendance.Session, exec ...core.DBExecutor) (attendance.Session, error) {
	s.ID = newID()

	var row sessionRow
	err := bind(ctx, repo.getExec(exec), &row,
		`INSERT INTO training_session (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+sessionColumns,
		s.ID, s.CourseID, s.Title, s.Location, s.StartsAt.UTC(), s.EndsAt.UTC(), nullID(s.InstructorID), s.CreatedAt.UTC(),
	)
	if err != nil {
		return attendance.Session{}, errors.Wrap(err, "inserting session")
	}
	return row.unboil(), nil
}

func (repo attendanceRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Session, error) {
	if !validID(id) {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	var row sessionRow
	if err := bind(ctx, repo.getExec(exec), &row, `SELECT `+sessionColumns+` FROM training_session WHERE id = ?`, id); err != nil {
		return attendance.Session{}, trapNoRowsErr(err, attendance.ErrSessionNotFound, "finding session")
	}
	return row.unboil(), nil
}

func (repo attendanceRepository) QuerySessions(ctx context.Context, filter attendance.SessionFilter, exec ...core.DBExecutor) ([]attendance.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM training_session WHERE true`
	var args []interface{}
	if filter.CourseID != "" {
		if !validID(filter.CourseID) {
			return []attendance.Session{}, nil
		}
		q += ` AND course_id = ?`
		args = append(args, filter.CourseID)
	}
	if !filter.From.IsZero() {
		q += ` AND starts_at >= ?`
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q += ` AND starts_at <= ?`
		args = append(args, filter.To.UTC())
	}

	var rows []sessionRow
	if err := bind(ctx, repo.getExec(exec), &rows, q+` ORDER BY starts_at`, args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]attendance.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.unboil())
	}
	return sessions, nil
}

// UpsertAttendance keeps the id of an existing (session, user) record.
func (repo attendanceRepository) UpsertAttendance(ctx context.Context, a attendance.Attendance, exec ...core.DBExecutor) (attendance.Attendance, error) {
	a.ID = newID()

	var row attendanceRow
	err := bind(ctx, repo.getExec(exec), &row,
		`INSERT INTO attendance (`+attendanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, user_id) DO UPDATE SET
			status = EXCLUDED.status,
			method = EXCLUDED.method,
			notes = EXCLUDED.notes,
			captured_by = EXCLUDED.captured_by,
			captured_at = EXCLUDED.captured_at,
			updated_at = now()
		RETURNING `+attendanceColumns,
		a.ID, a.SessionID, a.UserID, a.Status, a.Method, a.Notes, nullID(a.CapturedBy), a.CapturedAt.UTC(),
	)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "upserting attendance")
	}
	return row.unboil(), nil
}

func (repo attendanceRepository) QueryAttendance(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]attendance.Attendance, error) {
	if !validID(sessionID) {
		return []attendance.Attendance{}, nil
	}
	var rows []attendanceRow
	err := bind(ctx, repo.getExec(exec), &rows,
		`SELECT `+attendanceColumns+` FROM attendance WHERE session_id = ? ORDER BY captured_at`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	records := make([]attendance.Attendance, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.unboil())
	}
	return records, nil
}
