package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/rbac"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/metrics"
)

type attendanceApi struct {
	svc      *attendance.Service
	users    *user.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := attendanceApi{
		svc:      opts.AttendanceSvc,
		users:    opts.UserSvc,
		validate: opts.Validate,
	}
	read := requireCapability(opts.UserSvc, rbac.SessionRead)

	sg := g.Group("/sessions", middleware.BodyLimit(opts.Conf.Server.MaxBodySize), jwt)
	sg.GET("", api.querySessions, read)
	sg.POST("", api.createSession, requireCapability(opts.UserSvc, rbac.SessionWrite))
	sg.GET("/:id", api.retrieveSession, read)
	sg.GET("/:id/attendance", api.queryAttendance, read)
	sg.POST("/:id/attendance", api.mark, requireCapability(opts.UserSvc, rbac.AttendanceWrite))
}

type BulkMarkResponse struct {
	Results   []attendance.MarkResult `json:"results"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
}

// Handlers

func (api *attendanceApi) querySessions(ctx echo.Context) error {
	filter := new(attendance.SessionFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Session{})
	}
	var err error
	if filter.From, err = queryTime(ctx, "from"); err != nil {
		return err
	}
	if filter.To, err = queryTime(ctx, "to"); err != nil {
		return err
	}

	sessions, err := api.svc.QuerySessions(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *attendanceApi) createSession(ctx echo.Context) error {
	var data attendance.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	s, err := api.svc.CreateSession(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *attendanceApi) retrieveSession(ctx echo.Context) error {
	s, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding session")
	}
	return ctx.JSON(http.StatusOK, s)
}

// queryAttendance lists the records of a session. Trainees only see their own.
func (api *attendanceApi) queryAttendance(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	records, err := api.svc.List(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}

	visible := make([]attendance.Attendance, 0, len(records))
	for _, a := range records {
		if ctxUsr.IsAdmin() || ctxUsr.IsInstructor() || a.UserID == ctxUsr.ID {
			visible = append(visible, a)
		}
	}
	return ctx.JSON(http.StatusOK, visible)
}

// mark takes either one record or an array of records.
func (api *attendanceApi) mark(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading body")
	}
	body = bytes.TrimSpace(body)

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if len(body) > 0 && body[0] == '[' {
		var marks []attendance.Mark
		if err = json.Unmarshal(body, &marks); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed attendance records").SetInternal(err)
		}
		results, err := api.svc.MarkBulk(ctx.Request().Context(), ctxUsr, ctx.Param("id"), marks)
		if err != nil {
			return errors.Wrap(err, "marking attendance")
		}

		resp := BulkMarkResponse{Results: results}
		for _, res := range results {
			if res.Success {
				resp.Succeeded++
				metrics.AttendanceRecords.WithLabelValues(res.Attendance.Status).Inc()
			} else {
				resp.Failed++
			}
		}
		return ctx.JSON(http.StatusOK, resp)
	}

	var m attendance.Mark
	if err = json.Unmarshal(body, &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed attendance record").SetInternal(err)
	}
	a, err := api.svc.MarkOne(ctx.Request().Context(), ctxUsr, ctx.Param("id"), m)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	metrics.AttendanceRecords.WithLabelValues(a.Status).Inc()
	return ctx.JSON(http.StatusOK, a)
}
