// Package notification manages in-app notifications and fans them out on the event bus.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// Types
const (
	TypeInfo        = "info"
	TypeExam        = "exam"
	TypeCertificate = "certificate"
	TypeAttendance  = "attendance"
	TypeSystem      = "system"
)

// TopicCreated is the event bus topic every created notification is published on.
const TopicCreated = "notifications.created"

var (
	ErrNotFound = core.NewNotFoundError("notification")

	nowFunc = time.Now // mockable
)

type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      string     `json:"link"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (n Notification) IsRead() bool { return n.ReadAt != nil }

// NewNotification is sent to every user in UserIDs.
type NewNotification struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,required"`
	Type    string   `json:"type" validate:"required,oneof=info exam certificate attendance system"`
	Title   string   `json:"title" validate:"required,max=200"`
	Message string   `json:"message" validate:"max=2000"`
	Link    string   `json:"link" validate:"omitempty,max=500"`

	// Emails, when set, also delivers the notification by email to these addresses.
	Emails []mail.Address `json:"-"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.UserIDs = core.CleanStrings(nn.UserIDs)
	nn.Type = core.CleanString(nn.Type, true /* lower */)
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	nn.Link = core.CleanString(nn.Link)
	return validate.Struct(nn)
}

type QueryFilter struct {
	UserID     string
	UnreadOnly bool `query:"unread"`
	Limit      int  `query:"limit"`
}

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs []Notification, exec ...core.DBExecutor) ([]Notification, error)
		// QueryNotifications returns the user's notifications, most recent first.
		QueryNotifications(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Notification, error)
		CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
		MarkRead(ctx context.Context, id, userID string, at time.Time, exec ...core.DBExecutor) (Notification, error)
		MarkAllRead(ctx context.Context, userID string, at time.Time, exec ...core.DBExecutor) (int, error)
	}

	// Publisher pushes events to subscribers outside the request (websocket gateways, mobile push workers...).
	Publisher interface {
		Publish(ctx context.Context, topic string, payload []byte) error
	}

	Service struct {
		repo    Repository
		pub     Publisher
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, pub Publisher, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, pub: pub, mailSvc: mailSvc, logger: logger}
}

// Notify stores one notification per recipient, then publishes and emails them.
// Publishing and emailing are best effort: failures are logged, the stored notifications are returned.
func (svc *Service) Notify(ctx context.Context, nn NewNotification, exec ...core.DBExecutor) ([]Notification, error) {
	now := nowFunc().UTC()
	notifs := make([]Notification, 0, len(nn.UserIDs))
	for _, uid := range nn.UserIDs {
		notifs = append(notifs, Notification{
			UserID:    uid,
			Type:      nn.Type,
			Title:     nn.Title,
			Message:   nn.Message,
			Link:      nn.Link,
			CreatedAt: now,
		})
	}

	created, err := svc.repo.CreateNotifications(ctx, notifs, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "creating notifications")
	}

	for _, n := range created {
		svc.publish(ctx, n)
	}
	if len(nn.Emails) > 0 && svc.mailSvc != nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           nn.Emails,
			Subject:      nn.Title,
			TemplateName: "notification",
			TemplateData: nn,
		})
	}
	return created, nil
}

func (svc *Service) publish(ctx context.Context, n Notification) {
	if svc.pub == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("encoding notification %s: %v", n.ID, err), err)
		return
	}
	if err = svc.pub.Publish(ctx, TopicCreated, payload); err != nil {
		svc.logger.Warn(fmt.Sprintf("publishing notification %s: %v", n.ID, err), err)
	}
}

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Notification, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return svc.repo.QueryNotifications(ctx, filter)
}

func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

// MarkRead marks one of the user's notifications as read. Other users' notifications are reported as not found.
func (svc *Service) MarkRead(ctx context.Context, id, userID string) (Notification, error) {
	return svc.repo.MarkRead(ctx, id, userID, nowFunc().UTC())
}

func (svc *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return svc.repo.MarkAllRead(ctx, userID, nowFunc().UTC())
}
