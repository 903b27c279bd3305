package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/rbac"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/metrics"
)

type certificateApi struct {
	svc      *certificate.Service
	users    *user.Service
	validate *validator.Validate
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := certificateApi{
		svc:      opts.CertificateSvc,
		users:    opts.UserSvc,
		validate: opts.Validate,
	}

	cg := g.Group("/certificates")

	// public
	cg.GET("/verify/:serial", api.verify)

	ag := cg.Group("", jwt)
	ag.GET("", api.query, requireCapability(opts.UserSvc, rbac.CertificateRead))
	ag.POST("", api.issue, requireCapability(opts.UserSvc, rbac.CertificateIssue))
}

// Handlers

func (api *certificateApi) verify(ctx echo.Context) error {
	v, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("serial"))
	if err != nil {
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, v)
}

// query lists the caller's certificates. Administrators may look at anyone's.
func (api *certificateApi) query(ctx echo.Context) error {
	filter := new(certificate.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []certificate.Certificate{})
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() || filter.UserID == "" {
		filter.UserID = ctxUsr.ID
	}

	certs, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying certificates")
	}
	if certs == nil {
		certs = []certificate.Certificate{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *certificateApi) issue(ctx echo.Context) error {
	var data certificate.NewCertificate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCertificate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cert, created, err := api.svc.IssueManual(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "issuing certificate")
	}
	if created {
		metrics.CertificatesIssued.Inc()
		return ctx.JSON(http.StatusCreated, cert)
	}
	return ctx.JSON(http.StatusOK, cert)
}
