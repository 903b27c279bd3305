package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/rbac"
	"github.com/trezcool/academia/core/user"
)

type courseApi struct {
	svc      *course.Service
	users    *user.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := courseApi{
		svc:      opts.CourseSvc,
		users:    opts.UserSvc,
		validate: opts.Validate,
	}
	read := requireCapability(opts.UserSvc, rbac.CourseRead)
	write := requireCapability(opts.UserSvc, rbac.CourseWrite)
	enroll := requireCapability(opts.UserSvc, rbac.EnrollmentWrite)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query, read)
	cg.POST("", api.create, write)
	cg.GET("/:id", api.retrieve, read)
	cg.PUT("/:id", api.update, write)
	cg.POST("/:id/archive", api.archive, write)
	cg.GET("/:id/modules", api.queryModules, read)
	cg.POST("/:id/modules", api.createModule, write)
	cg.GET("/:id/enrollments", api.queryCourseEnrollments, read)
	cg.POST("/:id/enrollments", api.enroll, enroll)

	eg := g.Group("/enrollments", jwt)
	eg.GET("", api.queryEnrollments, read)
	eg.PATCH("/:id", api.updateEnrollment, enroll)
}

// visibleCourse finds the course of the `id` param. Trainees do not see unpublished courses.
func (api *courseApi) visibleCourse(ctx echo.Context, ctxUsr user.User) (course.Course, error) {
	c, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return course.Course{}, err
	}
	if !c.Published && !ctxUsr.IsAdmin() && !ctxUsr.IsInstructor() {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && !ctxUsr.IsInstructor() {
		published := true
		filter.Published = &published
	}

	courses, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.visibleCourse(ctx, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	c, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course")
	}

	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err = api.svc.Update(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) archive(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.Archive(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "archiving course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) queryModules(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.visibleCourse(ctx, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}

	modules, err := api.svc.Modules(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	if modules == nil {
		modules = []course.Module{}
	}
	return ctx.JSON(http.StatusOK, modules)
}

func (api *courseApi) createModule(ctx echo.Context) error {
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.AddModule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	var data course.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enr, created, err := api.svc.Enroll(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "enrolling user")
	}
	if created {
		return ctx.JSON(http.StatusCreated, enr)
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) queryCourseEnrollments(ctx echo.Context) error {
	if _, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding course")
	}
	return api.listEnrollments(ctx, ctx.Param("id"))
}

func (api *courseApi) queryEnrollments(ctx echo.Context) error {
	return api.listEnrollments(ctx, "")
}

// listEnrollments restricts trainees to their own enrollments.
func (api *courseApi) listEnrollments(ctx echo.Context, courseID string) error {
	filter := new(course.EnrollmentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Enrollment{})
	}
	if courseID != "" {
		filter.CourseID = courseID
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && !ctxUsr.IsInstructor() {
		filter.UserID = ctxUsr.ID
	}

	enrollments, err := api.svc.Enrollments(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []course.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *courseApi) updateEnrollment(ctx echo.Context) error {
	var data course.UpdateEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enr, err := api.svc.UpdateEnrollmentStatus(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}
