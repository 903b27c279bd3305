package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/exam"
	"github.com/trezcool/academia/core/rbac"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/metrics"
)

type examApi struct {
	svc      *exam.Service
	users    *user.Service
	validate *validator.Validate
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := examApi{
		svc:      opts.ExamSvc,
		users:    opts.UserSvc,
		validate: opts.Validate,
	}
	read := requireCapability(opts.UserSvc, rbac.ExamRead)
	write := requireCapability(opts.UserSvc, rbac.ExamWrite)
	take := requireCapability(opts.UserSvc, rbac.ExamTake)

	xg := g.Group("/exams", jwt)
	xg.GET("", api.query, read)
	xg.POST("", api.create, write)
	xg.GET("/:id", api.retrieve, read)
	xg.GET("/:id/take", api.take, take)
	xg.POST("/:id/questions", api.addQuestion, write)
	xg.POST("/:id/publish", api.publish, write)
	xg.POST("/:id/unpublish", api.unpublish, write)
	xg.POST("/:id/submit", api.submit, take)
	xg.GET("/:id/attempts", api.queryAttempts, read)
}

type SubmitResponse struct {
	exam.Summary
	Certificate *certificate.Certificate `json:"certificate,omitempty"`
}

// Handlers

func (api *examApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	exams, err := api.svc.Query(ctx.Request().Context(), ctxUsr, core.CleanString(ctx.QueryParam("course_id")))
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.Get(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) take(ctx echo.Context) error {
	e, err := api.svc.TakeView(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "preparing exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) addQuestion(ctx echo.Context) error {
	var data exam.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	q, err := api.svc.AddQuestion(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *examApi) publish(ctx echo.Context) error {
	return api.setPublished(ctx, true)
}

func (api *examApi) unpublish(ctx echo.Context) error {
	return api.setPublished(ctx, false)
}

func (api *examApi) setPublished(ctx echo.Context, published bool) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.SetPublished(ctx.Request().Context(), ctxUsr, ctx.Param("id"), published)
	if err != nil {
		return errors.Wrap(err, "publishing exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) submit(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data exam.Submission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}

	res, err := api.svc.Submit(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting exam")
	}

	metrics.ExamSubmissions.WithLabelValues(metrics.ExamOutcome(res.Attempt.Passed)).Inc()
	if res.CertificateCreated {
		metrics.CertificatesIssued.Inc()
	}
	return ctx.JSON(http.StatusCreated, SubmitResponse{Summary: res.Attempt.Summary(), Certificate: res.Certificate})
}

func (api *examApi) queryAttempts(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	attempts, err := api.svc.Attempts(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if attempts == nil {
		attempts = []exam.Attempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}
