package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/exam"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil)

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo *examRepository) CreateExam(ctx context.Context, e exam.Exam, exec ...core.DBExecutor) (exam.Exam, error) {
	defer repo.db.lock(exec)()

	e.ID = newID()
	e.Questions = nil
	repo.db.tables.exams[e.ID] = e
	return e, nil
}

// withQuestions must be called with the lock held.
func (repo *examRepository) withQuestions(e exam.Exam) exam.Exam {
	qs := make([]exam.Question, 0)
	for _, q := range repo.db.tables.questions {
		if q.ExamID == e.ID {
			qs = append(qs, q)
		}
	}
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].Position == qs[j].Position {
			return qs[i].CreatedAt.Before(qs[j].CreatedAt)
		}
		return qs[i].Position < qs[j].Position
	})
	e.Questions = qs
	return e
}

func (repo *examRepository) GetExam(ctx context.Context, id string, exec ...core.DBExecutor) (exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	e, ok := repo.db.tables.exams[id]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	return repo.withQuestions(e), nil
}

func (repo *examRepository) QueryExams(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	exams := make([]exam.Exam, 0)
	for _, e := range repo.db.tables.exams {
		if courseID == "" || e.CourseID == courseID {
			exams = append(exams, repo.withQuestions(e))
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].CreatedAt.Before(exams[j].CreatedAt) })
	return exams, nil
}

func (repo *examRepository) UpdateExam(ctx context.Context, e exam.Exam, exec ...core.DBExecutor) (exam.Exam, error) {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.tables.exams[e.ID]; !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	e.Questions = nil
	repo.db.tables.exams[e.ID] = e
	return e, nil
}

func (repo *examRepository) CreateQuestion(ctx context.Context, q exam.Question, exec ...core.DBExecutor) (exam.Question, error) {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.tables.exams[q.ExamID]; !ok {
		return exam.Question{}, exam.ErrNotFound
	}
	q.ID = newID()
	repo.db.tables.questions[q.ID] = q
	return q, nil
}

func (repo *examRepository) CreateAttempt(ctx context.Context, a exam.Attempt, exec ...core.DBExecutor) (exam.Attempt, error) {
	defer repo.db.lock(exec)()

	a.ID = newID()
	repo.db.tables.attempts[a.ID] = a
	return a, nil
}

func (repo *examRepository) QueryAttempts(ctx context.Context, filter exam.AttemptFilter, exec ...core.DBExecutor) ([]exam.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	attempts := make([]exam.Attempt, 0)
	for _, a := range repo.db.tables.attempts {
		if (filter.ExamID == "" || a.ExamID == filter.ExamID) && (filter.UserID == "" || a.UserID == filter.UserID) {
			attempts = append(attempts, a)
		}
	}
	sort.Slice(attempts, func(i, j int) bool {
		if attempts[i].SubmittedAt.Equal(attempts[j].SubmittedAt) {
			return attempts[i].Detail.AttemptNumber < attempts[j].Detail.AttemptNumber
		}
		return attempts[i].SubmittedAt.Before(attempts[j].SubmittedAt)
	})
	return attempts, nil
}
