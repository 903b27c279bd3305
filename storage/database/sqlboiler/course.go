package boiledrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

const (
	courseColumns     = `id, code, title, description, tags, published, archived_at, created_by, created_at, updated_at`
	moduleColumns     = `id, course_id, title, content, position, created_at`
	enrollmentColumns = `id, user_id, course_id, status, created_at, updated_at, completed_at`
)

type (
	courseRow struct {
		ID          string            `boil:"id"`
		Code        string            `boil:"code"`
		Title       string            `boil:"title"`
		Description string            `boil:"description"`
		Tags        types.StringArray `boil:"tags"`
		Published   bool              `boil:"published"`
		ArchivedAt  null.Time         `boil:"archived_at"`
		CreatedBy   null.String       `boil:"created_by"`
		CreatedAt   time.Time         `boil:"created_at"`
		UpdatedAt   time.Time         `boil:"updated_at"`
	}

	moduleRow struct {
		ID        string    `boil:"id"`
		CourseID  string    `boil:"course_id"`
		Title     string    `boil:"title"`
		Content   string    `boil:"content"`
		Position  int       `boil:"position"`
		CreatedAt time.Time `boil:"created_at"`
	}

	enrollmentRow struct {
		ID          string    `boil:"id"`
		UserID      string    `boil:"user_id"`
		CourseID    string    `boil:"course_id"`
		Status      string    `boil:"status"`
		CreatedAt   time.Time `boil:"created_at"`
		UpdatedAt   time.Time `boil:"updated_at"`
		CompletedAt null.Time `boil:"completed_at"`
	}
)

func (row courseRow) unboil() course.Course {
	return course.Course{
		ID:          row.ID,
		Code:        row.Code,
		Title:       row.Title,
		Description: row.Description,
		Tags:        row.Tags,
		Published:   row.Published,
		ArchivedAt:  timePtr(row.ArchivedAt),
		CreatedBy:   row.CreatedBy.String,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (row moduleRow) unboil() course.Module {
	return course.Module{
		ID:        row.ID,
		CourseID:  row.CourseID,
		Title:     row.Title,
		Content:   row.Content,
		Position:  row.Position,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func (row enrollmentRow) unboil() course.Enrollment {
	return course.Enrollment{
		ID:          row.ID,
		UserID:      row.UserID,
		CourseID:    row.CourseID,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
		CompletedAt: timePtr(row.CompletedAt),
	}
}

func stringArray(items []string) types.StringArray {
	if items == nil {
		return types.StringArray{}
	}
	return items
}

type courseRepository struct {
	baseRepository
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(exec core.DBExecutor) course.Repository {
	return &courseRepository{baseRepository{exec: exec}}
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	c.ID = newID()

	var row courseRow
	err := bind(ctx, repo.getExec(exec), &row,
		`INSERT INTO course (`+courseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+courseColumns,
		c.ID, c.Code, c.Title, c.Description, stringArray(c.Tags), c.Published, ptrTime(c.ArchivedAt),
		nullID(c.CreatedBy), c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.unboil(), nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	if !validID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	if err := bind(ctx, repo.getExec(exec), &row, `SELECT `+courseColumns+` FROM course WHERE id = ?`, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return row.unboil(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	where := []string{`(archived_at IS NOT NULL) = ?`}
	args := []interface{}{filter.Archived}

	if filter.Published != nil {
		where = append(where, `published = ?`)
		args = append(args, *filter.Published)
	}
	if filter.Tag != "" {
		where = append(where, `? = ANY(tags)`)
		args = append(args, filter.Tag)
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		where = append(where, `(title ILIKE ? OR code ILIKE ?)`)
		args = append(args, val, val)
	}

	var rows []courseRow
	q := `SELECT ` + courseColumns + ` FROM course WHERE ` + strings.Join(where, " AND ") + ` ORDER BY code`
	if err := bind(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.unboil())
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	if !validID(c.ID) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	err := bind(ctx, repo.getExec(exec), &row,
		`UPDATE course SET title = ?, description = ?, tags = ?, published = ?, archived_at = ?, updated_at = ?
		WHERE id = ? RETURNING `+courseColumns,
		c.Title, c.Description, stringArray(c.Tags), c.Published, ptrTime(c.ArchivedAt), c.UpdatedAt.UTC(), c.ID,
	)
	if err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "updating course")
	}
	return row.unboil(), nil
}

func (repo courseRepository) CreateModule(ctx context.Context, m course.Module, exec ...core.DBExecutor) (course.Module, error) {
	m.ID = newID()

	var row moduleRow
	err := bind(ctx, repo.getExec(exec), &row,
		`INSERT INTO course_module (`+moduleColumns+`) VALUES (?, ?, ?, ?, ?, ?) RETURNING `+moduleColumns,
		m.ID, m.CourseID, m.Title, m.Content, m.Position, m.CreatedAt.UTC(),
	)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "inserting module")
	}
	return row.unboil(), nil
}

func (repo courseRepository) QueryModules(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Module, error) {
	if !validID(courseID) {
		return []course.Module{}, nil
	}
	var rows []moduleRow
	err := bind(ctx, repo.getExec(exec), &rows,
		`SELECT `+moduleColumns+` FROM course_module WHERE course_id = ? ORDER BY position, created_at`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	modules := make([]course.Module, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, row.unboil())
	}
	return modules, nil
}

// CreateEnrollment returns the existing enrollment when the user is already enrolled.
func (repo courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error) {
	e.ID = newID()
	exe := repo.getExec(exec)

	var rows []enrollmentRow
	err := bind(ctx, exe, &rows,
		`INSERT INTO enrollment (`+enrollmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, course_id) DO NOTHING RETURNING `+enrollmentColumns,
		e.ID, e.UserID, e.CourseID, e.Status, e.CreatedAt.UTC(), e.UpdatedAt.UTC(), ptrTime(e.CompletedAt),
	)
	if err != nil {
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	if len(rows) > 0 {
		return rows[0].unboil(), nil
	}
	return repo.GetUserEnrollment(ctx, e.UserID, e.CourseID, exe)
}

func (repo courseRepository) GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (course.Enrollment, error) {
	if !validID(id) {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	var row enrollmentRow
	if err := bind(ctx, repo.getExec(exec), &row, `SELECT `+enrollmentColumns+` FROM enrollment WHERE id = ?`, id); err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, course.ErrEnrollmentNotFound, "finding enrollment")
	}
	return row.unboil(), nil
}

func (repo courseRepository) GetUserEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (course.Enrollment, error) {
	if !validID(userID) || !validID(courseID) {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	var row enrollmentRow
	err := bind(ctx, repo.getExec(exec), &row,
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE user_id = ? AND course_id = ?`, userID, courseID)
	if err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, course.ErrEnrollmentNotFound, "finding user enrollment")
	}
	return row.unboil(), nil
}

func (repo courseRepository) QueryEnrollments(ctx context.Context, filter course.EnrollmentFilter, exec ...core.DBExecutor) ([]course.Enrollment, error) {
	var (
		where = []string{"true"}
		args  []interface{}
	)
	for _, cond := range [][2]string{{"course_id", filter.CourseID}, {"user_id", filter.UserID}} {
		if cond[1] == "" {
			continue
		}
		if !validID(cond[1]) {
			return []course.Enrollment{}, nil
		}
		where = append(where, cond[0]+` = ?`)
		args = append(args, cond[1])
	}
	if filter.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, filter.Status)
	}

	var rows []enrollmentRow
	q := `SELECT ` + enrollmentColumns + ` FROM enrollment WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at`
	if err := bind(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.unboil())
	}
	return enrollments, nil
}

func (repo courseRepository) UpdateEnrollment(ctx context.Context, e course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error) {
	if !validID(e.ID) {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	var row enrollmentRow
	err := bind(ctx, repo.getExec(exec), &row,
		`UPDATE enrollment SET status = ?, updated_at = ?, completed_at = ? WHERE id = ? RETURNING `+enrollmentColumns,
		e.Status, e.UpdatedAt.UTC(), ptrTime(e.CompletedAt), e.ID,
	)
	if err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, course.ErrEnrollmentNotFound, "updating enrollment")
	}
	return row.unboil(), nil
}
