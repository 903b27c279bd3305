package course_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/testutil"
)

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin(t, "admin")

	nc := course.NewCourse{Code: " CRIM_LAW_1 ", Title: "Criminal law", Tags: []string{" Law ", "Basics"}, Published: true}
	require.NoError(t, nc.Validate(env.Validate))
	c, err := env.Courses.Create(ctx, admin, nc)
	require.NoError(t, err)
	assert.Equal(t, "CRIM_LAW_1", c.Code)
	assert.Equal(t, []string{"law", "basics"}, c.Tags)
	assert.Equal(t, admin.ID, c.CreatedBy)

	_, err = env.Courses.Create(ctx, admin, course.NewCourse{Code: "crim_law_1", Title: "Duplicate"})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "code", vErr.Fields[0].Field)

	bad := course.NewCourse{Code: "no-dashes!", Title: "x"}
	assert.Error(t, bad.Validate(env.Validate))
}

func TestService_QueryAndArchive(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin(t, "admin")
	patrol := env.CreateCourse(t, "PATROL")
	env.CreateCourse(t, "TRAFFIC")

	courses, err := env.Courses.Query(ctx, course.QueryFilter{Search: "traf"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "TRAFFIC", courses[0].Code)

	archived, err := env.Courses.Archive(ctx, admin, patrol.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived())

	again, err := env.Courses.Archive(ctx, admin, patrol.ID)
	require.NoError(t, err)
	assert.Equal(t, archived.ArchivedAt, again.ArchivedAt)

	courses, err = env.Courses.Query(ctx, course.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "TRAFFIC", courses[0].Code)

	courses, err = env.Courses.Query(ctx, course.QueryFilter{Archived: true})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, patrol.ID, courses[0].ID)

	entries, err := env.Audit.Query(ctx, audit.QueryFilter{EntityType: "course", EntityID: patrol.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = env.Courses.Archive(ctx, admin, "missing")
	assert.Equal(t, course.ErrNotFound, err)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	c := env.CreateCourse(t, "PATROL")

	desc := "Foot and vehicle patrol"
	published := false
	updated, err := env.Courses.Update(ctx, c, course.UpdateCourse{Description: &desc, Published: &published})
	require.NoError(t, err)
	assert.Equal(t, c.Title, updated.Title)
	assert.Equal(t, desc, updated.Description)
	assert.False(t, updated.Published)
}

func TestService_Modules(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	c := env.CreateCourse(t, "PATROL")

	for _, nm := range []course.NewModule{{Title: "Radio", Position: 2}, {Title: "Beats", Position: 1}} {
		_, err := env.Courses.AddModule(ctx, c.ID, nm)
		require.NoError(t, err)
	}
	modules, err := env.Courses.Modules(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "Beats", modules[0].Title)

	_, err = env.Courses.AddModule(ctx, "missing", course.NewModule{Title: "x"})
	assert.Equal(t, course.ErrNotFound, err)
}

func TestService_Enroll(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin(t, "admin")
	trainee := env.CreateTrainee(t, "cadet")
	instructor := env.CreateInstructor(t, "sergeant")
	c := env.CreateCourse(t, "PATROL")

	enr, created, err := env.Courses.Enroll(ctx, admin, c.ID, course.NewEnrollment{UserID: trainee.ID})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, course.EnrollmentAssigned, enr.Status)

	again, created, err := env.Courses.Enroll(ctx, admin, c.ID, course.NewEnrollment{UserID: trainee.ID})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, enr.ID, again.ID)

	_, _, err = env.Courses.Enroll(ctx, admin, c.ID, course.NewEnrollment{UserID: instructor.ID})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "user_id", vErr.Fields[0].Field)

	updated, err := env.Courses.UpdateEnrollmentStatus(ctx, admin, enr.ID, course.UpdateEnrollment{Status: course.EnrollmentInProgress})
	require.NoError(t, err)
	assert.Equal(t, course.EnrollmentInProgress, updated.Status)
	assert.Nil(t, updated.CompletedAt)

	require.NoError(t, env.Courses.CompleteEnrollment(ctx, trainee.ID, c.ID))
	done, err := env.Courses.HasCompleted(ctx, trainee.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, done)

	enrollments, err := env.Courses.Enrollments(ctx, course.EnrollmentFilter{CourseID: c.ID})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.NotNil(t, enrollments[0].CompletedAt)

	// no enrollment, nothing to complete
	require.NoError(t, env.Courses.CompleteEnrollment(ctx, instructor.ID, c.ID))

	_, err = env.Courses.Archive(ctx, admin, c.ID)
	require.NoError(t, err)
	other := env.CreateTrainee(t, "late")
	_, _, err = env.Courses.Enroll(ctx, admin, c.ID, course.NewEnrollment{UserID: other.ID})
	assert.ErrorAs(t, err, &vErr, "archived courses are closed")
}
