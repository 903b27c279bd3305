package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

func TestService_CreateSession(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	instructor := env.CreateInstructor(t, "sergeant")
	crs := env.CreateCourse(t, "DRILL")
	start := time.Date(2026, 11, 2, 7, 0, 0, 0, time.UTC)

	ns := attendance.NewSession{CourseID: crs.ID, Title: "Morning drill", StartsAt: start, EndsAt: start.Add(-time.Hour)}
	assert.Error(t, ns.Validate(env.Validate), "ends before it starts")

	ns.EndsAt = start.Add(2 * time.Hour)
	require.NoError(t, ns.Validate(env.Validate))
	s, err := env.Attendance.CreateSession(ctx, instructor, ns)
	require.NoError(t, err)
	assert.Equal(t, instructor.ID, s.InstructorID)

	got, err := env.Attendance.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	sessions, err := env.Attendance.QuerySessions(ctx, attendance.SessionFilter{CourseID: crs.ID})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	_, err = env.Attendance.CreateSession(ctx, instructor, attendance.NewSession{
		CourseID: "missing", Title: "x", StartsAt: start, EndsAt: start.Add(time.Hour),
	})
	assert.Error(t, err)
}

func newSession(t *testing.T, env *testutil.Env, instructor user.User) attendance.Session {
	t.Helper()
	crs := env.CreateCourse(t, "DRILL")
	start := time.Now().UTC().Truncate(time.Hour)
	s, err := env.Attendance.CreateSession(context.Background(), instructor, attendance.NewSession{
		CourseID: crs.ID,
		Title:    "Drill",
		StartsAt: start,
		EndsAt:   start.Add(time.Hour),
	})
	require.NoError(t, err)
	return s
}

func TestService_MarkOne(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	instructor := env.CreateInstructor(t, "sergeant")
	trainee := env.CreateTrainee(t, "cadet")
	s := newSession(t, env, instructor)

	a, err := env.Attendance.MarkOne(ctx, instructor, s.ID, attendance.Mark{UserID: trainee.ID, Status: "Late"})
	require.NoError(t, err)
	assert.Equal(t, attendance.Late, a.Status)
	assert.Equal(t, attendance.MethodManual, a.Method)
	assert.Equal(t, instructor.ID, a.CapturedBy)

	// marking again replaces the record
	b, err := env.Attendance.MarkOne(ctx, instructor, s.ID, attendance.Mark{UserID: trainee.ID, Status: attendance.Present, Method: attendance.MethodQR})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	records, err := env.Attendance.List(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.Present, records[0].Status)
	assert.Equal(t, attendance.MethodQR, records[0].Method)

	_, err = env.Attendance.MarkOne(ctx, instructor, "missing", attendance.Mark{UserID: trainee.ID, Status: attendance.Present})
	assert.Equal(t, attendance.ErrSessionNotFound, err)

	_, err = env.Attendance.MarkOne(ctx, instructor, s.ID, attendance.Mark{UserID: "ghost", Status: attendance.Present})
	assert.Equal(t, user.ErrNotFound, err)

	entries, err := env.Audit.Query(ctx, audit.QueryFilter{Action: audit.ActionAttendanceMarked})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestService_MarkBulk(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	instructor := env.CreateInstructor(t, "sergeant")
	s := newSession(t, env, instructor)

	var marks []attendance.Mark
	for _, uname := range []string{"cadet1", "cadet2", "cadet3"} {
		tr := env.CreateTrainee(t, uname)
		marks = append(marks, attendance.Mark{UserID: tr.ID, Status: attendance.Present})
	}
	marks = append(marks,
		attendance.Mark{UserID: "ghost", Status: attendance.Present},
		attendance.Mark{UserID: marks[0].UserID, Status: "asleep"},
	)

	results, err := env.Attendance.MarkBulk(ctx, instructor, s.ID, marks)
	require.NoError(t, err)
	require.Len(t, results, len(marks))

	var succeeded int
	for _, res := range results {
		if res.Success {
			succeeded++
			require.NotNil(t, res.Attendance)
		}
	}
	assert.Equal(t, 3, succeeded)
	assert.False(t, results[3].Success)
	assert.Equal(t, "user not found", results[3].Error)
	assert.False(t, results[4].Success)
	assert.Contains(t, results[4].Error, "status")

	records, err := env.Attendance.List(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	_, err = env.Attendance.MarkBulk(ctx, instructor, "missing", marks)
	assert.Equal(t, attendance.ErrSessionNotFound, err)
}
