package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/testutil"
)

func Test_appHTTPErrorHandler_shutdown(t *testing.T) {
	env := testutil.NewEnv(t)

	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantShutdown bool
	}{
		{"integrity failure", errors.Wrap(core.NewShutdownError("rolling back after x: y"), "submitting"), http.StatusInternalServerError, true},
		{"server error", errors.New("boom"), http.StatusInternalServerError, false},
		{"not found", core.NewNotFoundError("exam"), http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var signaled bool
			handler := newAppHTTPErrorHandler(env.Logger, env.Translator, func() { signaled = true })

			e := echo.New()
			rec := httptest.NewRecorder()
			handler(tt.err, e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantShutdown, signaled)
		})
	}
}
