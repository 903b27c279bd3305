package course

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("course")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrCodeExists         = errors.New("a course with this code already exists")
	errCourseArchived     = errors.New("course is archived")
	errNotTrainee         = errors.New("only trainees can be enrolled")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)

		CreateModule(ctx context.Context, m Module, exec ...core.DBExecutor) (Module, error)
		QueryModules(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Module, error)

		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (Enrollment, error)
		GetUserEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter, exec ...core.DBExecutor) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
	}

	Service struct {
		repo    Repository
		tx      core.Transactor
		users   *user.Service
		auditor audit.Recorder
	}
)

func NewService(repo Repository, tx core.Transactor, users *user.Service, auditor audit.Recorder) *Service {
	return &Service{repo: repo, tx: tx, users: users, auditor: auditor}
}

func (svc *Service) Create(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	now := nowFunc().UTC()
	c, err := svc.repo.CreateCourse(ctx, Course{
		Code:        nc.Code,
		Title:       nc.Title,
		Description: nc.Description,
		Tags:        nc.Tags,
		Published:   nc.Published,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		if pkgerrors.Cause(err) == ErrCodeExists {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return Course{}, pkgerrors.Wrap(err, "creating course")
	}
	return c, nil
}

func (svc *Service) Get(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error) {
	return svc.repo.GetCourse(ctx, id, exec...)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, c Course, uc UpdateCourse) (Course, error) {
	if uc.Title != "" {
		c.Title = uc.Title
	}
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
	if uc.Tags != nil {
		c.Tags = uc.Tags
	}
	if uc.Published != nil {
		c.Published = *uc.Published
	}
	c.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

// Archive hides the course from the catalog and closes it to new enrollments.
func (svc *Service) Archive(ctx context.Context, actor user.User, id string) (Course, error) {
	var archived Course
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		c, err := svc.repo.GetCourse(ctx, id, core.TxExec(exec)...)
		if err != nil {
			return err
		}
		if c.IsArchived() {
			archived = c
			return nil
		}

		now := nowFunc().UTC()
		c.ArchivedAt = &now
		c.UpdatedAt = now
		if archived, err = svc.repo.UpdateCourse(ctx, c, core.TxExec(exec)...); err != nil {
			return pkgerrors.Wrap(err, "archiving course")
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionCourseArchived,
			EntityType: "course",
			EntityID:   c.ID,
			Metadata:   map[string]interface{}{"code": c.Code},
		}, core.TxExec(exec)...)
	})
	return archived, err
}

func (svc *Service) AddModule(ctx context.Context, courseID string, nm NewModule) (Module, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return Module{}, err
	}
	return svc.repo.CreateModule(ctx, Module{
		CourseID:  courseID,
		Title:     nm.Title,
		Content:   nm.Content,
		Position:  nm.Position,
		CreatedAt: nowFunc().UTC(),
	})
}

func (svc *Service) Modules(ctx context.Context, courseID string) ([]Module, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryModules(ctx, courseID)
}

// Enroll assigns a trainee to a course. Enrolling twice returns the existing Enrollment with created = false.
func (svc *Service) Enroll(ctx context.Context, actor user.User, courseID string, ne NewEnrollment) (enr Enrollment, created bool, err error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Enrollment{}, false, err
	}
	if c.IsArchived() {
		return Enrollment{}, false, core.NewValidationError(errCourseArchived)
	}

	trainee, err := svc.users.GetByID(ctx, ne.UserID)
	if err != nil {
		return Enrollment{}, false, err
	}
	if !trainee.IsTrainee() {
		return Enrollment{}, false, core.NewValidationError(errNotTrainee, core.FieldError{Field: "user_id", Error: errNotTrainee.Error()})
	}

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		existing, err := svc.repo.GetUserEnrollment(ctx, trainee.ID, c.ID, core.TxExec(exec)...)
		if err == nil {
			enr = existing
			return nil
		} else if err != ErrEnrollmentNotFound {
			return pkgerrors.Wrap(err, "finding enrollment")
		}

		now := nowFunc().UTC()
		if enr, err = svc.repo.CreateEnrollment(ctx, Enrollment{
			UserID:    trainee.ID,
			CourseID:  c.ID,
			Status:    EnrollmentAssigned,
			CreatedAt: now,
			UpdatedAt: now,
		}, core.TxExec(exec)...); err != nil {
			return pkgerrors.Wrap(err, "creating enrollment")
		}
		created = true
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionEnrollmentCreated,
			EntityType: "enrollment",
			EntityID:   enr.ID,
			Metadata:   map[string]interface{}{"user_id": trainee.ID, "course_id": c.ID},
		}, core.TxExec(exec)...)
	})
	return enr, created, err
}

func (svc *Service) Enrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

func (svc *Service) UpdateEnrollmentStatus(ctx context.Context, actor user.User, id string, ue UpdateEnrollment) (Enrollment, error) {
	var updated Enrollment
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		enr, err := svc.repo.GetEnrollment(ctx, id, core.TxExec(exec)...)
		if err != nil {
			return err
		}
		prev := enr.Status
		setStatus(&enr, ue.Status, nowFunc().UTC())
		if updated, err = svc.repo.UpdateEnrollment(ctx, enr, core.TxExec(exec)...); err != nil {
			return pkgerrors.Wrap(err, "updating enrollment")
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionEnrollmentUpdated,
			EntityType: "enrollment",
			EntityID:   enr.ID,
			Metadata:   map[string]interface{}{"from": prev, "to": enr.Status},
		}, core.TxExec(exec)...)
	})
	return updated, err
}

// CompleteEnrollment marks the user's enrollment in the course as completed.
// Users without an enrollment are left alone.
func (svc *Service) CompleteEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) error {
	enr, err := svc.repo.GetUserEnrollment(ctx, userID, courseID, exec...)
	if err != nil {
		if err == ErrEnrollmentNotFound {
			return nil
		}
		return pkgerrors.Wrap(err, "finding enrollment")
	}
	if enr.Status == EnrollmentCompleted {
		return nil
	}
	setStatus(&enr, EnrollmentCompleted, nowFunc().UTC())
	if _, err = svc.repo.UpdateEnrollment(ctx, enr, exec...); err != nil {
		return pkgerrors.Wrap(err, "completing enrollment")
	}
	return nil
}

// HasCompleted reports whether the user completed the course.
func (svc *Service) HasCompleted(ctx context.Context, userID, courseID string) (bool, error) {
	enr, err := svc.repo.GetUserEnrollment(ctx, userID, courseID)
	if err != nil {
		if err == ErrEnrollmentNotFound {
			return false, nil
		}
		return false, pkgerrors.Wrap(err, "finding enrollment")
	}
	return enr.Status == EnrollmentCompleted, nil
}

func setStatus(enr *Enrollment, status string, now time.Time) {
	enr.Status = status
	enr.UpdatedAt = now
	if status == EnrollmentCompleted {
		enr.CompletedAt = &now
	} else {
		enr.CompletedAt = nil
	}
}
