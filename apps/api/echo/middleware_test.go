package echoapi_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/metrics"
	"github.com/trezcool/academia/services/ratelimit"
)

func Test_home(t *testing.T) {
	_, app := setup(t)
	before := promtestutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/", "200"))

	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Academia API!", rec.Body.String())

	after := promtestutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/", "200"))
	assert.Equal(t, before+1, after)
}

func Test_rateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), time.Minute, 1)
	_, app := setup(t, func(opts *Options) { opts.Limiter = limiter })
	route := "/v1/certificates/verify/:serial"
	limitedBefore := promtestutil.ToFloat64(metrics.RateLimited.WithLabelValues(route))

	req, rec := newRequest(http.MethodGet, "/v1/certificates/verify/CERT-1-abc")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// the limit applies per route, not per URL
	req, rec = newRequest(http.MethodGet, "/v1/certificates/verify/CERT-2-abc")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"error":"too many requests"}`, rec.Body.String())
	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.True(t, retryAfter >= 1 && retryAfter <= 60, retryAfter)
	assert.Equal(t, limitedBefore+1, promtestutil.ToFloat64(metrics.RateLimited.WithLabelValues(route)))

	// other routes have their own budget
	req, rec = newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// and so do other clients
	req, rec = newRequest(http.MethodGet, "/v1/certificates/verify/CERT-3-abc")
	req.RemoteAddr = "198.51.100.7:4321"
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func Test_cookieTokenMiddleware(t *testing.T) {
	env, app := setup(t)
	usr := env.CreateTrainee(t, "trainee1")
	token := getToken(t, env.Conf, usr)
	cookie := &http.Cookie{Name: env.Conf.Server.AuthCookieName, Value: token}

	t.Run("cookie only", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/users/me")
		req.AddCookie(cookie)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("header wins over cookie", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", "garbage")
		req.AddCookie(cookie)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	})

	t.Run("other cookies are ignored", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/users/me")
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
		assert.JSONEq(t, string(marchallObj(t, errMissingToken)), rec.Body.String())
	})
}

func Test_requireCapability(t *testing.T) {
	env, app := setup(t)
	ctx := context.Background()
	inst := env.CreateInstructor(t, "inst")
	token := getToken(t, env.Conf, inst)
	body := []byte(`{"code":"FIR101","title":"Firearms"}`)

	req, rec := newAuthRequest(http.MethodPost, "/v1/courses", token, body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// roles come from the stored user, the token still says instructor
	inst.Roles = []string{user.RoleTrainee}
	_, err := env.UserRepo.UpdateUser(ctx, inst)
	require.NoError(t, err)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "demoted user",
			method:   http.MethodPost,
			path:     "/v1/courses",
			body:     []byte(`{"code":"FIR102","title":"Firearms II"}`),
			token:    token,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "demoted user keeps trainee capabilities",
			method:   http.MethodGet,
			path:     "/v1/courses",
			token:    token,
			wantCode: http.StatusOK,
		},
	})

	inst.IsActive = false
	_, err = env.UserRepo.UpdateUser(ctx, inst)
	require.NoError(t, err)

	req, rec = newAuthRequest(http.MethodGet, "/v1/courses", token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"error":"account deactivated"}`, rec.Body.String())
}
