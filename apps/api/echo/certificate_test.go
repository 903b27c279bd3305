package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/course"
)

func Test_certificateApi(t *testing.T) {
	env, app := setup(t)
	ctx := context.Background()
	c := env.CreateCourse(t, "LAW201")
	admin := env.CreateAdmin(t, "admin")
	graduate := env.CreateTrainee(t, "trainee1")
	rookie := env.CreateTrainee(t, "trainee2")
	adminToken := getToken(t, env.Conf, admin)
	graduateToken := getToken(t, env.Conf, graduate)
	rookieToken := getToken(t, env.Conf, rookie)

	for _, usr := range []string{graduate.ID, rookie.ID} {
		_, _, err := env.Courses.Enroll(ctx, admin, c.ID, course.NewEnrollment{UserID: usr})
		require.NoError(t, err)
	}
	require.NoError(t, env.Courses.CompleteEnrollment(ctx, graduate.ID, c.ID))

	runHTTPTests(t, app, []httpTest{
		{
			name:     "trainees cannot issue",
			method:   http.MethodPost,
			path:     "/v1/certificates",
			body:     marchallObj(t, certificate.NewCertificate{UserID: graduate.ID, CourseID: c.ID}),
			token:    graduateToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "course not completed",
			method:   http.MethodPost,
			path:     "/v1/certificates",
			body:     marchallObj(t, certificate.NewCertificate{UserID: rookie.ID, CourseID: c.ID}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"course_id":"the user has not completed this course"}`),
		},
		{
			name:     "unknown serial",
			method:   http.MethodGet,
			path:     "/v1/certificates/verify/CERT-0-nope",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "certificate not found"}),
		},
	})

	var cert certificate.Certificate
	t.Run("issue", func(t *testing.T) {
		body := marchallObj(t, certificate.NewCertificate{UserID: graduate.ID, CourseID: c.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/certificates", adminToken, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &cert)
		assert.Equal(t, graduate.ID, cert.UserID)
		assert.Regexp(t, `^QR-\d+$`, cert.QRCode)
		assert.Equal(t, certificate.Validity, cert.ExpiresAt.Sub(cert.IssuedAt))

		// issuing again hands back the same certificate
		req, rec = newAuthRequest(http.MethodPost, "/v1/certificates", adminToken, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var again certificate.Certificate
		unmarshal(t, rec, &again)
		assert.Equal(t, cert.ID, again.ID)
	})

	t.Run("verify needs no token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/certificates/verify/"+cert.Serial)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got certificate.Verification
		unmarshal(t, rec, &got)
		assert.True(t, got.Valid)
		assert.False(t, got.Expired)
		assert.Equal(t, graduate.Name, got.HolderName)
		assert.Equal(t, c.Title, got.CourseTitle)
	})

	listCerts := func(t *testing.T, path, token string) []certificate.Certificate {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []certificate.Certificate
		unmarshal(t, rec, &got)
		return got
	}

	t.Run("holders list their own", func(t *testing.T) {
		assert.Len(t, listCerts(t, "/v1/certificates", graduateToken), 1)
		// trainees cannot peek at other users
		assert.Empty(t, listCerts(t, "/v1/certificates?user_id="+graduate.ID, rookieToken))
	})

	t.Run("admins list anyone's", func(t *testing.T) {
		got := listCerts(t, "/v1/certificates?user_id="+graduate.ID, adminToken)
		require.Len(t, got, 1)
		assert.Equal(t, cert.ID, got[0].ID)
	})

	t.Run("holder is notified", func(t *testing.T) {
		n, err := env.Notifications.UnreadCount(ctx, graduate.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
