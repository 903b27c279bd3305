package report_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/exam"
	"github.com/trezcool/academia/core/report"
	"github.com/trezcool/academia/testutil"
)

func answer(e exam.Exam, values ...string) exam.Submission {
	var sub exam.Submission
	for i, v := range values {
		raw, _ := json.Marshal(v)
		sub.Answers = append(sub.Answers, exam.SubmittedAnswer{QuestionID: e.Questions[i].ID, Answer: raw})
	}
	return sub
}

func TestService(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin(t, "admin")
	instructor := env.CreateInstructor(t, "sergeant")
	alice := env.CreateTrainee(t, "alice")
	bob := env.CreateTrainee(t, "bobby")

	crs := env.CreateCourse(t, "PATROL")
	old := env.CreateCourse(t, "OLD")
	_, err := env.Courses.Archive(ctx, admin, old.ID)
	require.NoError(t, err)

	for _, tr := range []string{alice.ID, bob.ID} {
		_, _, err = env.Courses.Enroll(ctx, admin, crs.ID, course.NewEnrollment{UserID: tr})
		require.NoError(t, err)
	}

	e := env.CreateExam(t, crs.ID, true, false, testutil.MCQ(1, "a"), testutil.MCQ(1, "b"))
	env.CreateExam(t, crs.ID, false, false)

	_, err = env.Exams.Submit(ctx, alice, e.ID, answer(e, "a", "b")) // 100%
	require.NoError(t, err)
	_, err = env.Exams.Submit(ctx, bob, e.ID, answer(e, "a", "a")) // 50%
	require.NoError(t, err)

	start := time.Now().UTC().Add(-24 * time.Hour)
	s, err := env.Attendance.CreateSession(ctx, instructor, attendance.NewSession{
		CourseID: crs.ID, Title: "Drill", StartsAt: start, EndsAt: start.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = env.Attendance.MarkBulk(ctx, instructor, s.ID, []attendance.Mark{
		{UserID: alice.ID, Status: attendance.Late},
		{UserID: bob.ID, Status: attendance.Absent},
	})
	require.NoError(t, err)

	t.Run("stats", func(t *testing.T) {
		stats, err := env.Reports.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"admin": 1, "instructor": 1, "trainee": 2}, stats.UsersByRole)
		assert.Equal(t, 1, stats.ActiveCourses)
		assert.Equal(t, 1, stats.ArchivedCourses)
		assert.Equal(t, 1, stats.PublishedExams)
		assert.Equal(t, 2, stats.Attempts)
		assert.Equal(t, 1, stats.PassedAttempts)
		assert.Equal(t, 50.0, stats.PassRate)
		assert.Equal(t, 1, stats.ActiveCertificates)
		assert.Zero(t, stats.ExpiredCertificates)
		assert.Equal(t, map[string]int{course.EnrollmentCompleted: 1, course.EnrollmentAssigned: 1}, stats.EnrollmentsByStatus)
		assert.Equal(t, 50.0, stats.AttendanceRate)
	})

	t.Run("progress", func(t *testing.T) {
		prog, err := env.Reports.Progress(ctx, crs.ID)
		require.NoError(t, err)
		assert.Equal(t, crs.Title, prog.Title)
		assert.Equal(t, 50.0, prog.CompletionRate)
		assert.Equal(t, 2, prog.Attempts)
		assert.Equal(t, 75.0, prog.AverageScore)
		assert.Equal(t, 50.0, prog.PassRate)
		assert.Equal(t, 1, prog.Certificates)
		assert.Equal(t, 50.0, prog.AttendanceRate)

		empty, err := env.Reports.Progress(ctx, old.ID)
		require.NoError(t, err)
		assert.Zero(t, empty.CompletionRate)
		assert.Zero(t, empty.PassRate)
		assert.Zero(t, empty.AttendanceRate)

		_, err = env.Reports.Progress(ctx, "missing")
		assert.Equal(t, report.ErrCourseNotFound, err)
	})
}
