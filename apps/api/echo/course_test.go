package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/course"
)

func Test_courseApi_crud(t *testing.T) {
	env, app := setup(t)
	inst := env.CreateInstructor(t, "inst")
	trainee := env.CreateTrainee(t, "trainee1")
	instToken := getToken(t, env.Conf, inst)
	traineeToken := getToken(t, env.Conf, trainee)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "trainee cannot create",
			method:   http.MethodPost,
			path:     "/v1/courses",
			body:     []byte(`{"code":"FIR101","title":"Firearms"}`),
			token:    traineeToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "missing title",
			method:   http.MethodPost,
			path:     "/v1/courses",
			body:     []byte(`{"code":"FIR101"}`),
			token:    instToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title":"this field is required"}`),
		},
	})

	var draft course.Course
	t.Run("create draft", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", instToken,
			[]byte(`{"code":"FIR101","title":" Firearms  Safety ","tags":["Weapons"]}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		unmarshal(t, rec, &draft)
		assert.Equal(t, "Firearms Safety", draft.Title)
		assert.Equal(t, []string{"weapons"}, draft.Tags)
		assert.Equal(t, inst.ID, draft.CreatedBy)
		assert.False(t, draft.Published)
	})
	published := env.CreateCourse(t, "LAW201")

	runHTTPTests(t, app, []httpTest{
		{
			name:     "duplicate code",
			method:   http.MethodPost,
			path:     "/v1/courses",
			body:     []byte(`{"code":"LAW201","title":"Law again"}`),
			token:    instToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"code":"a course with this code already exists"}`),
		},
		{
			name:     "trainee cannot see drafts",
			method:   http.MethodGet,
			path:     "/v1/courses/" + draft.ID,
			token:    traineeToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "trainee sees published",
			method:   http.MethodGet,
			path:     "/v1/courses/" + published.ID,
			token:    traineeToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "instructor sees drafts",
			method:   http.MethodGet,
			path:     "/v1/courses/" + draft.ID,
			token:    instToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "unknown course",
			method:   http.MethodGet,
			path:     "/v1/courses/nope",
			token:    instToken,
			wantCode: http.StatusNotFound,
		},
	})

	t.Run("listing hides drafts from trainees", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses", traineeToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got []course.Course
		unmarshal(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, published.ID, got[0].ID)

		req, rec = newAuthRequest(http.MethodGet, "/v1/courses", instToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &got)
		assert.Len(t, got, 2)
	})

	t.Run("publish", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+draft.ID, instToken, []byte(`{"published":true}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got course.Course
		unmarshal(t, rec, &got)
		assert.True(t, got.Published)
		assert.Equal(t, "Firearms Safety", got.Title)
	})

	t.Run("archive", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+published.ID+"/archive", instToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got course.Course
		unmarshal(t, rec, &got)
		assert.NotNil(t, got.ArchivedAt)

		entries, err := env.Audit.Query(context.Background(), audit.QueryFilter{Action: audit.ActionCourseArchived})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, published.ID, entries[0].EntityID)
	})
}

func Test_courseApi_modules(t *testing.T) {
	env, app := setup(t)
	c := env.CreateCourse(t, "LAW201")
	instToken := getToken(t, env.Conf, env.CreateInstructor(t, "inst"))
	traineeToken := getToken(t, env.Conf, env.CreateTrainee(t, "trainee1"))
	path := "/v1/courses/" + c.ID + "/modules"

	runHTTPTests(t, app, []httpTest{
		{
			name:     "trainee cannot add",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"title":"Intro"}`),
			token:    traineeToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown course",
			method:   http.MethodPost,
			path:     "/v1/courses/nope/modules",
			body:     []byte(`{"title":"Intro"}`),
			token:    instToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "second module",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"title":"Evidence","position":2}`),
			token:    instToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "first module",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"title":"Intro","position":1}`),
			token:    instToken,
			wantCode: http.StatusCreated,
		},
	})

	req, rec := newAuthRequest(http.MethodGet, path, traineeToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got []course.Module
	unmarshal(t, rec, &got)
	require.Len(t, got, 2)
	assert.Equal(t, "Intro", got[0].Title)
	assert.Equal(t, "Evidence", got[1].Title)
}

func Test_courseApi_enrollments(t *testing.T) {
	env, app := setup(t)
	c := env.CreateCourse(t, "LAW201")
	inst := env.CreateInstructor(t, "inst")
	trainee := env.CreateTrainee(t, "trainee1")
	other := env.CreateTrainee(t, "trainee2")
	instToken := getToken(t, env.Conf, inst)
	traineeToken := getToken(t, env.Conf, trainee)
	path := "/v1/courses/" + c.ID + "/enrollments"

	runHTTPTests(t, app, []httpTest{
		{
			name:     "trainee cannot enroll",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, course.NewEnrollment{UserID: trainee.ID}),
			token:    traineeToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "instructors are not enrollable",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, course.NewEnrollment{UserID: inst.ID}),
			token:    instToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"user_id":"only trainees can be enrolled"}`),
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, course.NewEnrollment{UserID: "nope"}),
			token:    instToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "enrolled",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, course.NewEnrollment{UserID: trainee.ID}),
			token:    instToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "enrolling twice is a no-op",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, course.NewEnrollment{UserID: trainee.ID}),
			token:    instToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "other trainee",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, course.NewEnrollment{UserID: other.ID}),
			token:    instToken,
			wantCode: http.StatusCreated,
		},
	})

	listEnrollments := func(t *testing.T, path, token string) []course.Enrollment {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []course.Enrollment
		unmarshal(t, rec, &got)
		return got
	}

	t.Run("instructor sees all", func(t *testing.T) {
		assert.Len(t, listEnrollments(t, path, instToken), 2)
	})

	var mine course.Enrollment
	t.Run("trainee sees own", func(t *testing.T) {
		got := listEnrollments(t, "/v1/enrollments", traineeToken)
		require.Len(t, got, 1)
		mine = got[0]
		assert.Equal(t, trainee.ID, mine.UserID)
		assert.Equal(t, course.EnrollmentAssigned, mine.Status)
	})

	runHTTPTests(t, app, []httpTest{
		{
			name:     "bad status",
			method:   http.MethodPatch,
			path:     "/v1/enrollments/" + mine.ID,
			body:     []byte(`{"status":"expelled"}`),
			token:    instToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown enrollment",
			method:   http.MethodPatch,
			path:     "/v1/enrollments/nope",
			body:     []byte(`{"status":"in_progress"}`),
			token:    instToken,
			wantCode: http.StatusNotFound,
		},
	})

	t.Run("complete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/enrollments/"+mine.ID, instToken, []byte(`{"status":"completed"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got course.Enrollment
		unmarshal(t, rec, &got)
		assert.Equal(t, course.EnrollmentCompleted, got.Status)
		assert.NotNil(t, got.CompletedAt)

		entries, err := env.Audit.Query(context.Background(), audit.QueryFilter{Action: audit.ActionEnrollmentUpdated})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, inst.ID, entries[0].ActorID)
	})
}
