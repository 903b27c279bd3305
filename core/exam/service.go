package exam

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("exam")
	errNotPublished     = errors.New("exam is not published")
	errNoQuestions      = errors.New("an exam needs at least one question to be published")
	errHasAttempts      = errors.New("exam already has attempts, its questions can no longer change")
	errCourseArchived   = errors.New("course is archived")
	errSubmitNotTrainee = core.NewPermissionError("only trainees can submit exams")

	nowFunc     = time.Now     // mockable
	shuffleFunc = rand.Shuffle // mockable
)

type AttemptFilter struct {
	ExamID string
	UserID string
}

type (
	Repository interface {
		CreateExam(ctx context.Context, e Exam, exec ...core.DBExecutor) (Exam, error)
		// GetExam returns the exam with its questions ordered by position.
		GetExam(ctx context.Context, id string, exec ...core.DBExecutor) (Exam, error)
		QueryExams(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Exam, error)
		UpdateExam(ctx context.Context, e Exam, exec ...core.DBExecutor) (Exam, error)
		CreateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) (Question, error)

		CreateAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)
		// QueryAttempts returns the matching attempts, oldest first.
		QueryAttempts(ctx context.Context, filter AttemptFilter, exec ...core.DBExecutor) ([]Attempt, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		courses  *course.Service
		certs    *certificate.Service
		auditor  audit.Recorder
		validate *validator.Validate
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	courses *course.Service,
	certs *certificate.Service,
	auditor audit.Recorder,
	validate *validator.Validate,
) *Service {
	return &Service{repo: repo, tx: tx, courses: courses, certs: certs, auditor: auditor, validate: validate}
}

func (svc *Service) Create(ctx context.Context, actor user.User, ne NewExam) (Exam, error) {
	crs, err := svc.courses.Get(ctx, ne.CourseID)
	if err != nil {
		return Exam{}, err
	}
	if crs.IsArchived() {
		return Exam{}, core.NewValidationError(errCourseArchived, core.FieldError{Field: "course_id", Error: errCourseArchived.Error()})
	}

	now := nowFunc().UTC()
	e, err := svc.repo.CreateExam(ctx, Exam{
		CourseID:        crs.ID,
		Title:           ne.Title,
		Description:     ne.Description,
		Randomize:       ne.Randomize,
		NegativeMarking: ne.NegativeMarking,
		DurationMinutes: ne.DurationMinutes,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Exam{}, pkgerrors.Wrap(err, "creating exam")
	}
	e.Questions = []Question{}
	return e, nil
}

// Get returns the exam as the actor is allowed to see it:
// trainees only see published exams, without answer keys.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Exam, error) {
	e, err := svc.repo.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if actor.IsAdmin() || actor.IsInstructor() {
		return e, nil
	}
	if !e.Published {
		return Exam{}, ErrNotFound
	}
	return e.WithoutAnswerKeys(), nil
}

func (svc *Service) Query(ctx context.Context, actor user.User, courseID string) ([]Exam, error) {
	exams, err := svc.repo.QueryExams(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || actor.IsInstructor() {
		return exams, nil
	}
	published := make([]Exam, 0, len(exams))
	for _, e := range exams {
		if e.Published {
			published = append(published, e.WithoutAnswerKeys())
		}
	}
	return published, nil
}

// TakeView returns a published exam ready to be taken: no answer keys,
// questions shuffled when the exam is randomized.
func (svc *Service) TakeView(ctx context.Context, id string) (Exam, error) {
	e, err := svc.repo.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if !e.Published {
		return Exam{}, core.NewValidationError(errNotPublished)
	}
	e = e.WithoutAnswerKeys()
	if e.Randomize {
		shuffleFunc(len(e.Questions), func(i, j int) {
			e.Questions[i], e.Questions[j] = e.Questions[j], e.Questions[i]
		})
	}
	return e, nil
}

func (svc *Service) AddQuestion(ctx context.Context, actor user.User, examID string, nq NewQuestion) (Question, error) {
	var q Question
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		e, err := svc.repo.GetExam(ctx, examID, core.TxExec(exec)...)
		if err != nil {
			return err
		}
		attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{ExamID: e.ID}, core.TxExec(exec)...)
		if err != nil {
			return pkgerrors.Wrap(err, "querying attempts")
		}
		if len(attempts) > 0 {
			return core.NewValidationError(errHasAttempts)
		}

		position := nq.Position
		if position == 0 {
			position = len(e.Questions) + 1
		}
		if q, err = svc.repo.CreateQuestion(ctx, Question{
			ExamID:    e.ID,
			Type:      nq.Type,
			Prompt:    nq.Prompt,
			Options:   nq.Options,
			Marks:     nq.Marks,
			AnswerKey: nq.AnswerKeyValues(),
			Position:  position,
			CreatedAt: nowFunc().UTC(),
		}, core.TxExec(exec)...); err != nil {
			return pkgerrors.Wrap(err, "creating question")
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionExamQuestionsAdded,
			EntityType: "exam",
			EntityID:   e.ID,
			Metadata:   map[string]interface{}{"question_id": q.ID, "type": q.Type, "marks": q.Marks},
		}, core.TxExec(exec)...)
	})
	return q, err
}

// SetPublished publishes or withdraws an exam.
func (svc *Service) SetPublished(ctx context.Context, actor user.User, id string, published bool) (Exam, error) {
	var updated Exam
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		e, err := svc.repo.GetExam(ctx, id, core.TxExec(exec)...)
		if err != nil {
			return err
		}
		if published && len(e.Questions) == 0 {
			return core.NewValidationError(errNoQuestions)
		}

		e.Published = published
		e.UpdatedAt = nowFunc().UTC()
		if updated, err = svc.repo.UpdateExam(ctx, e, core.TxExec(exec)...); err != nil {
			return pkgerrors.Wrap(err, "updating exam")
		}
		updated.Questions = e.Questions
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionExamPublished,
			EntityType: "exam",
			EntityID:   e.ID,
			Metadata:   map[string]interface{}{"published": published},
		}, core.TxExec(exec)...)
	})
	return updated, err
}

// SubmitResult is the outcome of a submission.
type SubmitResult struct {
	Attempt            Attempt
	Certificate        *certificate.Certificate
	CertificateCreated bool
}

// Submit grades a trainee's answers and stores the attempt.
// A passing attempt issues the course certificate (once per user and course) and completes
// the trainee's enrollment, all in the same transaction as the attempt.
func (svc *Service) Submit(ctx context.Context, actor user.User, examID string, sub Submission) (SubmitResult, error) {
	if !actor.IsTrainee() {
		return SubmitResult{}, errSubmitNotTrainee
	}

	e, err := svc.repo.GetExam(ctx, examID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !e.Published {
		return SubmitResult{}, core.NewValidationError(errNotPublished)
	}

	if err = sub.Validate(svc.validate); err != nil {
		return SubmitResult{}, err
	}
	detail, err := Score(e, sub)
	if err != nil {
		return SubmitResult{}, err
	}
	passed := Passed(detail.Percentage)

	var res SubmitResult
	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		prior, err := svc.repo.QueryAttempts(ctx, AttemptFilter{ExamID: e.ID, UserID: actor.ID}, core.TxExec(exec)...)
		if err != nil {
			return pkgerrors.Wrap(err, "querying attempts")
		}
		detail.AttemptNumber = len(prior) + 1

		if passed {
			cert, created, err := svc.certs.Issue(ctx, certificate.IssueRequest{
				UserID:   actor.ID,
				CourseID: e.CourseID,
				ExamID:   e.ID,
				ActorID:  actor.ID,
			}, core.TxExec(exec)...)
			if err != nil {
				return err
			}
			res.Certificate = &cert
			res.CertificateCreated = created
			detail.CertificateID = cert.ID

			if err = svc.courses.CompleteEnrollment(ctx, actor.ID, e.CourseID, core.TxExec(exec)...); err != nil {
				return err
			}
		}

		if res.Attempt, err = svc.repo.CreateAttempt(ctx, Attempt{
			ExamID:      e.ID,
			UserID:      actor.ID,
			Score:       detail.TotalScore,
			Passed:      passed,
			Detail:      detail,
			SubmittedAt: nowFunc().UTC(),
		}, core.TxExec(exec)...); err != nil {
			return pkgerrors.Wrap(err, "creating attempt")
		}

		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionExamSubmitted,
			EntityType: "attempt",
			EntityID:   res.Attempt.ID,
			Metadata: map[string]interface{}{
				"exam_id":        e.ID,
				"score":          detail.TotalScore,
				"max_score":      detail.MaxScore,
				"percentage":     detail.Percentage,
				"passed":         passed,
				"auto_submit":    detail.AutoSubmit,
				"attempt_number": detail.AttemptNumber,
			},
		}, core.TxExec(exec)...)
	})
	if err != nil {
		return SubmitResult{}, err
	}

	if res.CertificateCreated {
		svc.certs.Announce(ctx, *res.Certificate)
	}
	return res, nil
}

// Attempts lists the attempts on an exam: trainees only see their own.
func (svc *Service) Attempts(ctx context.Context, actor user.User, examID string) ([]Attempt, error) {
	if _, err := svc.repo.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	filter := AttemptFilter{ExamID: examID}
	if !actor.IsAdmin() && !actor.IsInstructor() {
		filter.UserID = actor.ID
	}
	return svc.repo.QueryAttempts(ctx, filter)
}
