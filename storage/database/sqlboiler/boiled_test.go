package boiledrepos

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/exam"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

const (
	fixedID  = "8f2c1c8e-5a4b-4f34-9d0e-0d6c2b1f7a10"
	userID   = "2a7b6c5d-1e2f-4a3b-8c9d-0e1f2a3b4c5d"
	courseID = "6d5c4b3a-2f1e-4d3c-9b8a-7f6e5d4c3b2a"
)

var now = time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

func setup(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	origNewID := newID
	newID = func() string { return fixedID }
	t.Cleanup(func() {
		newID = origNewID
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func columns(cols string) []string {
	fields := strings.Split(cols, ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

func TestRaw(t *testing.T) {
	q, err := raw(`SELECT id FROM "user" WHERE id IN (?) AND is_active = ?`, []string{"a", "b"}, true)
	require.NoError(t, err)

	query, args := queries.BuildQuery(q)
	assert.Equal(t, `SELECT id FROM "user" WHERE id IN ($1, $2) AND is_active = $3`, query)
	assert.Equal(t, []interface{}{"a", "b", true}, args)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create maps unique violations", func(t *testing.T) {
		db, mock := setup(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "user"`)).
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "user_username_key"})
		_, err := repo.CreateUser(ctx, user.User{Username: "jane", CreatedAt: now, UpdatedAt: now})
		assert.Equal(t, user.ErrUsernameExists, err)

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "user"`)).
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "user_email_key"})
		_, err = repo.CreateUser(ctx, user.User{Email: "jane@police.test", CreatedAt: now, UpdatedAt: now})
		assert.Equal(t, user.ErrEmailExists, err)
	})

	t.Run("get by id", func(t *testing.T) {
		db, mock := setup(t)
		repo := NewUserRepository(db)

		_, err := repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
		assert.Equal(t, user.ErrNotFound, err, "no query for malformed ids")

		rows := sqlmock.NewRows(columns(userColumns)).
			AddRow(userID, "Jane Officer", "jane", "jane@police.test", true, "{trainee:}", []byte("hash"), now, now, nil)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM "user" WHERE id = $1 LIMIT 1`)).WithArgs(userID).WillReturnRows(rows)

		usr, err := repo.GetUser(ctx, user.GetFilter{ID: userID})
		require.NoError(t, err)
		assert.Equal(t, "jane", usr.Username)
		assert.Equal(t, []string{user.RoleTrainee}, usr.Roles)
		assert.True(t, usr.IsTrainee())
		assert.True(t, usr.LastLogin.IsZero())

		mock.ExpectQuery(regexp.QuoteMeta(`FROM "user" WHERE id = $1`)).WillReturnRows(sqlmock.NewRows(columns(userColumns)))
		_, err = repo.GetUser(ctx, user.GetFilter{ID: fixedID})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("get by username or email expands the list", func(t *testing.T) {
		db, mock := setup(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta(`WHERE (username IN ($1) OR email IN ($2)) LIMIT 1`)).
			WithArgs("jane", "jane").
			WillReturnRows(sqlmock.NewRows(columns(userColumns)))
		_, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{" jane ", ""}})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("uniqueness", func(t *testing.T) {
		db, mock := setup(t)
		repo := NewUserRepository(db)

		rows := sqlmock.NewRows(columns(userColumns)).
			AddRow(userID, "Jane", nil, "jane@police.test", true, "{}", nil, now, now, nil)
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE (username = $1 OR email = $2) AND id NOT IN ($3) LIMIT 2`)).
			WithArgs("jane", "jane@police.test", fixedID).
			WillReturnRows(rows)

		err := repo.CheckUsernameUniqueness(ctx, "jane", "jane@police.test", []user.User{{ID: fixedID}})
		assert.Equal(t, user.ErrEmailExists, err)
	})

	t.Run("delete skips malformed ids", func(t *testing.T) {
		db, mock := setup(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "user" WHERE id IN ($1, $2)`)).
			WithArgs(userID, fixedID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		n, err := repo.DeleteUsersByID(ctx, []string{userID, "nope", fixedID})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = repo.DeleteUsersByID(ctx, []string{"nope"})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestCourseRepository_CreateCourse(t *testing.T) {
	ctx := context.Background()
	db, mock := setup(t)
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO course`)).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "course_code_key"})
	_, err := repo.CreateCourse(ctx, course.Course{Code: "PATROL", CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, course.ErrCodeExists, err)
}

func TestCertificateRepository_CreateCertificate(t *testing.T) {
	ctx := context.Background()
	cert := certificate.Certificate{
		UserID:    userID,
		CourseID:  courseID,
		Serial:    "CERT-1772353800000-4c5d",
		QRCode:    "QR-1772353800000",
		IssuedAt:  now,
		ExpiresAt: now.Add(certificate.Validity),
	}

	t.Run("created", func(t *testing.T) {
		db, mock := setup(t)
		repo := NewCertificateRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (user_id, course_id) DO NOTHING`)).
			WillReturnRows(sqlmock.NewRows(columns(certificateColumns)).
				AddRow(fixedID, userID, courseID, nil, cert.Serial, cert.QRCode, cert.IssuedAt, cert.ExpiresAt))

		got, created, err := repo.CreateCertificate(ctx, cert)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, fixedID, got.ID)
		assert.Empty(t, got.ExamID)
	})

	t.Run("already issued", func(t *testing.T) {
		db, mock := setup(t)
		repo := NewCertificateRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (user_id, course_id) DO NOTHING`)).
			WillReturnRows(sqlmock.NewRows(columns(certificateColumns)))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM certificate WHERE user_id = $1 AND course_id = $2`)).
			WithArgs(userID, courseID).
			WillReturnRows(sqlmock.NewRows(columns(certificateColumns)).
				AddRow(userID, userID, courseID, nil, "CERT-1-old", "QR-1", now.Add(-time.Hour), now.Add(time.Hour)))

		got, created, err := repo.CreateCertificate(ctx, cert)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "CERT-1-old", got.Serial)
	})
}

func TestAttendanceRepository_UpsertAttendance(t *testing.T) {
	ctx := context.Background()
	db, mock := setup(t)
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (session_id, user_id) DO UPDATE SET`)).
		WithArgs(fixedID, courseID, userID, attendance.Late, attendance.MethodQR, "", nil, now).
		WillReturnRows(sqlmock.NewRows(columns(attendanceColumns)).
			AddRow(userID, courseID, userID, attendance.Late, attendance.MethodQR, "", nil, now))

	got, err := repo.UpsertAttendance(ctx, attendance.Attendance{
		SessionID:  courseID,
		UserID:     userID,
		Status:     attendance.Late,
		Method:     attendance.MethodQR,
		CapturedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, userID, got.ID, "the existing record keeps its id")
	assert.Equal(t, attendance.Late, got.Status)
}

func TestExamRepository_attempts(t *testing.T) {
	ctx := context.Background()
	db, mock := setup(t)
	repo := NewExamRepository(db)

	detail := `{"answers":[],"total_score":5,"max_score":10,"percentage":50,"attempt_number":2}`
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO attempt`)).
		WillReturnRows(sqlmock.NewRows(columns(attemptColumns)).
			AddRow(fixedID, courseID, userID, 5.0, false, []byte(detail), now))

	a, err := repo.CreateAttempt(ctx, exam.Attempt{ExamID: courseID, UserID: userID, Score: 5, SubmittedAt: now})
	require.NoError(t, err)
	assert.Equal(t, 50.0, a.Detail.Percentage)
	assert.Equal(t, 2, a.Detail.AttemptNumber)

	attempts, err := repo.QueryAttempts(ctx, exam.AttemptFilter{ExamID: "not-a-uuid"})
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	db, mock := setup(t)
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE notification SET read_at = COALESCE(read_at, $1)`)).
		WithArgs(now, fixedID, userID).
		WillReturnRows(sqlmock.NewRows(columns(notificationColumns)))
	_, err := repo.MarkRead(ctx, fixedID, userID, now)
	assert.Equal(t, notification.ErrNotFound, err)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notification SET read_at = $1 WHERE user_id = $2 AND read_at IS NULL`)).
		WithArgs(now, userID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.MarkAllRead(ctx, userID, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM notification WHERE user_id = $1 AND read_at IS NULL`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	n, err = repo.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
