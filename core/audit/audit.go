// Package audit keeps the append-only trail of mutations performed through the application.
package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// Actions
const (
	ActionExamSubmitted      = "exam.submitted"
	ActionCertificateIssued  = "certificate.issued"
	ActionAttendanceMarked   = "attendance.marked"
	ActionEnrollmentCreated  = "enrollment.created"
	ActionEnrollmentUpdated  = "enrollment.updated"
	ActionCourseArchived     = "course.archived"
	ActionExamPublished      = "exam.published"
	ActionFileUploaded       = "file.uploaded"
	ActionFileDeleted        = "file.deleted"
	ActionNotificationsSent  = "notification.sent"
	ActionSessionScheduled   = "session.scheduled"
	ActionExamQuestionsAdded = "exam.question_added"
)

var nowFunc = time.Now // mockable

type Entry struct {
	ID         string                 `json:"id"`
	ActorID    string                 `json:"actor_id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

type QueryFilter struct {
	ActorID    string `query:"actor_id"`
	EntityType string `query:"entity_type"`
	EntityID   string `query:"entity_id"`
	Action     string `query:"action"`
	Limit      int    `query:"limit"`
}

type (
	Repository interface {
		CreateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		// QueryEntries returns the matching entries, most recent first.
		QueryEntries(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Entry, error)
	}

	// Recorder is what the other services depend on to write audit entries.
	Recorder interface {
		Record(ctx context.Context, entry Entry, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

var _ Recorder = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends entry. When exec is given the entry joins the caller's transaction,
// so the trail never mentions a mutation that got rolled back.
func (svc *Service) Record(ctx context.Context, entry Entry, exec ...core.DBExecutor) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = nowFunc().UTC()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]interface{}{}
	}
	if _, err := svc.repo.CreateEntry(ctx, entry, exec...); err != nil {
		return errors.Wrapf(err, "recording %s", entry.Action)
	}
	return nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return svc.repo.QueryEntries(ctx, filter)
}
