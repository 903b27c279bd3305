package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/exam"
)

const (
	examColumns = `id, course_id, title, description, duration_minutes, published, randomize, negative_marking,
	created_by, created_at, updated_at`
	questionColumns = `id, exam_id, type, prompt, options, marks, answer_key, position, created_at`
	attemptColumns  = `id, exam_id, user_id, score, passed, detail, submitted_at`
)

type (
	examRow struct {
		ID              string      `boil:"id"`
		CourseID        string      `boil:"course_id"`
		Title           string      `boil:"title"`
		Description     string      `boil:"description"`
		DurationMinutes int         `boil:"duration_minutes"`
		Published       bool        `boil:"published"`
		Randomize       bool        `boil:"randomize"`
		NegativeMarking bool        `boil:"negative_marking"`
		CreatedBy       null.String `boil:"created_by"`
		CreatedAt       time.Time   `boil:"created_at"`
		UpdatedAt       time.Time   `boil:"updated_at"`
	}

	questionRow struct {
		ID        string            `boil:"id"`
		ExamID    string            `boil:"exam_id"`
		Type      string            `boil:"type"`
		Prompt    string            `boil:"prompt"`
		Options   types.StringArray `boil:"options"`
		Marks     int               `boil:"marks"`
		AnswerKey types.StringArray `boil:"answer_key"`
		Position  int               `boil:"position"`
		CreatedAt time.Time         `boil:"created_at"`
	}

	attemptRow struct {
		ID          string     `boil:"id"`
		ExamID      string     `boil:"exam_id"`
		UserID      string     `boil:"user_id"`
		Score       float64    `boil:"score"`
		Passed      bool       `boil:"passed"`
		Detail      types.JSON `boil:"detail"`
		SubmittedAt time.Time  `boil:"submitted_at"`
	}
)

func (row examRow) unboil() exam.Exam {
	return exam.Exam{
		ID:              row.ID,
		CourseID:        row.CourseID,
		Title:           row.Title,
		Description:     row.Description,
		Published:       row.Published,
		Randomize:       row.Randomize,
		NegativeMarking: row.NegativeMarking,
		DurationMinutes: row.DurationMinutes,
		CreatedBy:       row.CreatedBy.String,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
		Questions:       []exam.Question{},
	}
}

func (row questionRow) unboil() exam.Question {
	return exam.Question{
		ID:        row.ID,
		ExamID:    row.ExamID,
		Type:      row.Type,
		Prompt:    row.Prompt,
		Options:   row.Options,
		Marks:     row.Marks,
		AnswerKey: row.AnswerKey,
		Position:  row.Position,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func (row attemptRow) unboil() (exam.Attempt, error) {
	a := exam.Attempt{
		ID:          row.ID,
		ExamID:      row.ExamID,
		UserID:      row.UserID,
		Score:       row.Score,
		Passed:      row.Passed,
		SubmittedAt: row.SubmittedAt.UTC(),
	}
	if len(row.Detail) > 0 {
		if err := row.Detail.Unmarshal(&a.Detail); err != nil {
			return exam.Attempt{}, errors.Wrap(err, "decoding attempt detail")
		}
	}
	return a, nil
}

type examRepository struct {
	baseRepository
}

var _ exam.Repository = (*examRepository)(nil)

func NewExamRepository(exec core.DBExecutor) exam.Repository {
	return &examRepository{baseRepository{exec: exec}}
}

func (repo examRepository) CreateExam(ctx context.Context, e exam.Exam, exec ...core.DBExecutor) (exam.Exam, error) {
	e.ID = newID()

	var row examRow
	err := bind(ctx, repo.getExec(exec), &row,
		`INSERT INTO exam (`+examColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+examColumns,
		e.ID, e.CourseID, e.Title, e.Description, e.DurationMinutes, e.Published, e.Randomize, e.NegativeMarking,
		nullID(e.CreatedBy), e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	return row.unboil(), nil
}

// withQuestions loads the questions of every exam, ordered by position.
func (repo examRepository) withQuestions(ctx context.Context, exe core.DBExecutor, exams []exam.Exam) error {
	if len(exams) == 0 {
		return nil
	}
	ids := make([]string, 0, len(exams))
	index := make(map[string]int, len(exams))
	for i, e := range exams {
		ids = append(ids, e.ID)
		index[e.ID] = i
	}

	var rows []questionRow
	err := bind(ctx, exe, &rows,
		`SELECT `+questionColumns+` FROM question WHERE exam_id IN (?) ORDER BY position, created_at`, ids)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	for _, row := range rows {
		i := index[row.ExamID]
		exams[i].Questions = append(exams[i].Questions, row.unboil())
	}
	return nil
}

func (repo examRepository) GetExam(ctx context.Context, id string, exec ...core.DBExecutor) (exam.Exam, error) {
	if !validID(id) {
		return exam.Exam{}, exam.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row examRow
	if err := bind(ctx, exe, &row, `SELECT `+examColumns+` FROM exam WHERE id = ?`, id); err != nil {
		return exam.Exam{}, trapNoRowsErr(err, exam.ErrNotFound, "finding exam")
	}
	exams := []exam.Exam{row.unboil()}
	if err := repo.withQuestions(ctx, exe, exams); err != nil {
		return exam.Exam{}, err
	}
	return exams[0], nil
}

func (repo examRepository) QueryExams(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]exam.Exam, error) {
	exe := repo.getExec(exec)
	q := `SELECT ` + examColumns + ` FROM exam`
	var args []interface{}
	if courseID != "" {
		if !validID(courseID) {
			return []exam.Exam{}, nil
		}
		q += ` WHERE course_id = ?`
		args = append(args, courseID)
	}

	var rows []examRow
	if err := bind(ctx, exe, &rows, q+` ORDER BY created_at`, args...); err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	exams := make([]exam.Exam, 0, len(rows))
	for _, row := range rows {
		exams = append(exams, row.unboil())
	}
	if err := repo.withQuestions(ctx, exe, exams); err != nil {
		return nil, err
	}
	return exams, nil
}

func (repo examRepository) UpdateExam(ctx context.Context, e exam.Exam, exec ...core.DBExecutor) (exam.Exam, error) {
	if !validID(e.ID) {
		return exam.Exam{}, exam.ErrNotFound
	}
	var row examRow
	err := bind(ctx, repo.getExec(exec), &row,
		`UPDATE exam SET title = ?, description = ?, duration_minutes = ?, published = ?, randomize = ?,
		negative_marking = ?, updated_at = ? WHERE id = ? RETURNING `+examColumns,
		e.Title, e.Description, e.DurationMinutes, e.Published, e.Randomize, e.NegativeMarking, e.UpdatedAt.UTC(), e.ID,
	)
	if err != nil {
		return exam.Exam{}, trapNoRowsErr(err, exam.ErrNotFound, "updating exam")
	}
	return row.unboil(), nil
}

func (repo examRepository) CreateQuestion(ctx context.Context, q exam.Question, exec ...core.DBExecutor) (exam.Question, error) {
	if !validID(q.ExamID) {
		return exam.Question{}, exam.ErrNotFound
	}
	q.ID = newID()

	var rows []questionRow
	// selecting from exam turns a missing exam into zero rows instead of a foreign key error
	err := bind(ctx, repo.getExec(exec), &rows,
		`INSERT INTO question (`+questionColumns+`)
		SELECT ?::uuid, id, ?, ?, ?::text[], ?::integer, ?::text[], ?::integer, ?::timestamptz FROM exam WHERE id = ? RETURNING `+questionColumns,
		q.ID, q.Type, q.Prompt, stringArray(q.Options), q.Marks, stringArray(q.AnswerKey), q.Position, q.CreatedAt.UTC(),
		q.ExamID,
	)
	if err != nil {
		return exam.Question{}, errors.Wrap(err, "inserting question")
	}
	if len(rows) == 0 {
		return exam.Question{}, exam.ErrNotFound
	}
	return rows[0].unboil(), nil
}

func (repo examRepository) CreateAttempt(ctx context.Context, a exam.Attempt, exec ...core.DBExecutor) (exam.Attempt, error) {
	a.ID = newID()

	var detail types.JSON
	if err := detail.Marshal(a.Detail); err != nil {
		return exam.Attempt{}, errors.Wrap(err, "encoding attempt detail")
	}

	var row attemptRow
	err := bind(ctx, repo.getExec(exec), &row,
		`INSERT INTO attempt (`+attemptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING `+attemptColumns,
		a.ID, a.ExamID, a.UserID, a.Score, a.Passed, detail, a.SubmittedAt.UTC(),
	)
	if err != nil {
		return exam.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return row.unboil()
}

func (repo examRepository) QueryAttempts(ctx context.Context, filter exam.AttemptFilter, exec ...core.DBExecutor) ([]exam.Attempt, error) {
	q := `SELECT ` + attemptColumns + ` FROM attempt WHERE true`
	var args []interface{}
	for _, cond := range [][2]string{{"exam_id", filter.ExamID}, {"user_id", filter.UserID}} {
		if cond[1] == "" {
			continue
		}
		if !validID(cond[1]) {
			return []exam.Attempt{}, nil
		}
		q += ` AND ` + cond[0] + ` = ?`
		args = append(args, cond[1])
	}

	var rows []attemptRow
	if err := bind(ctx, repo.getExec(exec), &rows, q+` ORDER BY submitted_at, (detail->>'attempt_number')::int`, args...); err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	attempts := make([]exam.Attempt, 0, len(rows))
	for _, row := range rows {
		a, err := row.unboil()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
