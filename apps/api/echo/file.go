package echoapi

import (
	"io"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/file"
	"github.com/trezcool/academia/core/rbac"
	"github.com/trezcool/academia/core/user"
)

const uploadField = "file"

type fileApi struct {
	svc     *file.Service
	users   *user.Service
	maxSize int64
}

func registerFileAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := fileApi{
		svc:     opts.FileSvc,
		users:   opts.UserSvc,
		maxSize: opts.Conf.Server.MaxUploadSize,
	}
	read := requireCapability(opts.UserSvc, rbac.FileRead)

	fg := g.Group("/files", jwt)
	fg.POST("", api.upload, requireCapability(opts.UserSvc, rbac.FileUpload))
	fg.GET("/:id", api.retrieve, read)
	fg.GET("/:id/preview", api.preview, read)
	fg.GET("/:id/download", api.download, read)
	// uploaders may delete their own files, the service enforces it
	fg.DELETE("/:id", api.destroy, requireCapability(opts.UserSvc, rbac.FileDelete, rbac.FileUpload))
}

// Handlers

func (api *fileApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: uploadField, Error: "this field is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	// one byte past the limit is enough for the service to refuse the file
	var r io.Reader = src
	if api.maxSize > 0 {
		r = io.LimitReader(src, api.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading upload")
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	obj, err := api.svc.Upload(ctx.Request().Context(), ctxUsr, file.Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return errors.Wrap(err, "uploading file")
	}
	return ctx.JSON(http.StatusCreated, obj)
}

func (api *fileApi) retrieve(ctx echo.Context) error {
	obj, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding file")
	}
	return ctx.JSON(http.StatusOK, obj)
}

func (api *fileApi) preview(ctx echo.Context) error {
	return api.serve(ctx, "inline")
}

func (api *fileApi) download(ctx echo.Context) error {
	return api.serve(ctx, "attachment")
}

func (api *fileApi) serve(ctx echo.Context, disposition string) error {
	obj, data, err := api.svc.Open(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		mime.FormatMediaType(disposition, map[string]string{"filename": obj.OriginalName}),
	)
	return ctx.Blob(http.StatusOK, obj.ContentType, data)
}

func (api *fileApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting file")
	}
	return ctx.NoContent(http.StatusNoContent)
}
