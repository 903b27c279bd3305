// Package attendance schedules training sessions and captures who attended them.
package attendance

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

var (
	ErrSessionNotFound = core.NewNotFoundError("session")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		QuerySessions(ctx context.Context, filter SessionFilter, exec ...core.DBExecutor) ([]Session, error)

		// UpsertAttendance creates the (session, user) record or updates the existing one.
		UpsertAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		QueryAttendance(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]Attendance, error)
	}

	Service struct {
		repo       Repository
		tx         core.Transactor
		users      *user.Service
		courses    *course.Service
		auditor    audit.Recorder
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	users *user.Service,
	courses *course.Service,
	auditor audit.Recorder,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *Service {
	return &Service{
		repo:       repo,
		tx:         tx,
		users:      users,
		courses:    courses,
		auditor:    auditor,
		validate:   validate,
		translator: translator,
		logger:     logger,
	}
}

func (svc *Service) CreateSession(ctx context.Context, actor user.User, ns NewSession) (Session, error) {
	if _, err := svc.courses.Get(ctx, ns.CourseID); err != nil {
		return Session{}, err
	}
	instructorID := ns.InstructorID
	if instructorID == "" {
		instructorID = actor.ID
	} else if _, err := svc.users.GetByID(ctx, instructorID); err != nil {
		return Session{}, err
	}

	var s Session
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if s, err = svc.repo.CreateSession(ctx, Session{
			CourseID:     ns.CourseID,
			Title:        ns.Title,
			Location:     ns.Location,
			StartsAt:     ns.StartsAt.UTC(),
			EndsAt:       ns.EndsAt.UTC(),
			InstructorID: instructorID,
			CreatedAt:    nowFunc().UTC(),
		}, core.TxExec(exec)...); err != nil {
			return errors.Wrap(err, "creating session")
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionSessionScheduled,
			EntityType: "session",
			EntityID:   s.ID,
			Metadata:   map[string]interface{}{"course_id": s.CourseID, "starts_at": s.StartsAt},
		}, core.TxExec(exec)...)
	})
	return s, err
}

func (svc *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) QuerySessions(ctx context.Context, filter SessionFilter) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, filter)
}

// MarkOne captures a single attendance record. Unknown sessions and users are reported as not found.
func (svc *Service) MarkOne(ctx context.Context, actor user.User, sessionID string, m Mark) (Attendance, error) {
	s, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Attendance{}, err
	}
	if err = m.Validate(svc.validate); err != nil {
		return Attendance{}, err
	}
	return svc.mark(ctx, actor, s, m)
}

// MarkBulk captures every record independently: a failing record is reported in its
// MarkResult and does not stop the others. Only an unknown session fails the whole call.
func (svc *Service) MarkBulk(ctx context.Context, actor user.User, sessionID string, marks []Mark) ([]MarkResult, error) {
	s, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	results := make([]MarkResult, 0, len(marks))
	for _, m := range marks {
		res := MarkResult{UserID: core.CleanString(m.UserID)}
		if err := m.Validate(svc.validate); err != nil {
			res.Error = svc.describe(err)
			results = append(results, res)
			continue
		}

		a, err := svc.mark(ctx, actor, s, m)
		if err != nil {
			res.Error = svc.describe(err)
		} else {
			res.Success = true
			res.Attendance = &a
		}
		results = append(results, res)
	}
	return results, nil
}

func (svc *Service) mark(ctx context.Context, actor user.User, s Session, m Mark) (Attendance, error) {
	if _, err := svc.users.GetByID(ctx, m.UserID); err != nil {
		return Attendance{}, err
	}

	var a Attendance
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if a, err = svc.repo.UpsertAttendance(ctx, Attendance{
			SessionID:  s.ID,
			UserID:     m.UserID,
			Status:     m.Status,
			Method:     m.Method,
			Notes:      m.Notes,
			CapturedBy: actor.ID,
			CapturedAt: nowFunc().UTC(),
		}, core.TxExec(exec)...); err != nil {
			return errors.Wrap(err, "saving attendance")
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionAttendanceMarked,
			EntityType: "attendance",
			EntityID:   a.ID,
			Metadata: map[string]interface{}{
				"session_id": s.ID,
				"user_id":    a.UserID,
				"status":     a.Status,
				"method":     a.Method,
			},
		}, core.TxExec(exec)...)
	})
	return a, err
}

// describe renders err for a bulk result entry.
func (svc *Service) describe(err error) string {
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		flds := core.TranslateValidationErrors(e, svc.translator)
		if len(flds) > 0 {
			return fmt.Sprintf("%s: %s", flds[0].Field, flds[0].Error)
		}
	case *core.ValidationError:
		return e.Error()
	case *core.NotFoundError:
		return e.Error()
	}
	svc.logger.Error(fmt.Sprintf("marking attendance: %v", err), err)
	return "internal error"
}

func (svc *Service) List(ctx context.Context, sessionID string) ([]Attendance, error) {
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttendance(ctx, sessionID)
}
