package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/rbac"
	"github.com/trezcool/academia/core/report"
)

type reportApi struct {
	svc   *report.Service
	audit *audit.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := reportApi{
		svc:   opts.ReportSvc,
		audit: opts.AuditSvc,
	}
	read := requireCapability(opts.UserSvc, rbac.ReportRead)

	dg := g.Group("/dashboard", jwt)
	dg.GET("/stats", api.stats, read)
	dg.GET("/courses/:id", api.courseProgress, read)

	g.GET("/audit", api.queryAudit, jwt, requireCapability(opts.UserSvc, rbac.AuditRead))
}

// Handlers

func (api *reportApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing dashboard stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *reportApi) courseProgress(ctx echo.Context) error {
	prog, err := api.svc.Progress(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing course progress")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *reportApi) queryAudit(ctx echo.Context) error {
	filter := new(audit.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []audit.Entry{})
	}

	entries, err := api.audit.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying audit log")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}
