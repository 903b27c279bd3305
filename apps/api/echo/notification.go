package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/rbac"
	"github.com/trezcool/academia/core/user"
)

type notificationApi struct {
	svc      *notification.Service
	users    *user.Service
	auditor  audit.Recorder
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := notificationApi{
		svc:      opts.NotificationSvc,
		users:    opts.UserSvc,
		auditor:  opts.AuditSvc,
		validate: opts.Validate,
	}
	read := requireCapability(opts.UserSvc, rbac.NotificationRead)

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query, read)
	ng.GET("/unread-count", api.unreadCount, read)
	ng.POST("", api.create, requireCapability(opts.UserSvc, rbac.NotificationSend))
	ng.POST("/read-all", api.markAllRead, read)
	ng.POST("/:id/read", api.markRead, read)
}

type (
	UnreadCountResponse struct {
		Unread int `json:"unread"`
	}

	MarkAllReadResponse struct {
		Marked int `json:"marked"`
	}
)

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	filter := new(notification.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []notification.Notification{})
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter.UserID = ctxUsr.ID

	notifs, err := api.svc.List(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, UnreadCountResponse{Unread: n})
}

func (api *notificationApi) create(ctx echo.Context) error {
	var data notification.NewNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	for i, uid := range data.UserIDs {
		if _, err := api.users.GetByID(reqCtx, uid); err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return core.NewValidationError(err, core.FieldError{Field: fmt.Sprintf("user_ids[%d]", i), Error: "unknown user"})
			}
			return errors.Wrap(err, "finding recipient")
		}
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notifs, err := api.svc.Notify(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "sending notifications")
	}

	err = api.auditor.Record(reqCtx, audit.Entry{
		ActorID:    ctxUsr.ID,
		Action:     audit.ActionNotificationsSent,
		EntityType: "notification",
		EntityID:   notifs[0].ID,
		Metadata:   map[string]interface{}{"recipients": len(notifs), "type": data.Type, "title": data.Title},
	})
	if err != nil {
		return errors.Wrap(err, "auditing notifications")
	}
	return ctx.JSON(http.StatusCreated, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkRead(ctx.Request().Context(), ctx.Param("id"), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, MarkAllReadResponse{Marked: n})
}
