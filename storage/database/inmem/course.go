package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	defer repo.db.lock(exec)()

	for _, existing := range repo.db.tables.courses {
		if strings.EqualFold(existing.Code, c.Code) {
			return course.Course{}, course.ErrCodeExists
		}
	}
	c.ID = newID()
	repo.db.tables.courses[c.ID] = c
	return c, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.tables.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	courses := make([]course.Course, 0)
	for _, c := range repo.db.tables.courses {
		if c.IsArchived() != filter.Archived {
			continue
		}
		if filter.Published != nil && c.Published != *filter.Published {
			continue
		}
		if filter.Tag != "" && !containsString(c.Tags, filter.Tag) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.Code), search) {
			continue
		}
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.tables.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.tables.courses[c.ID] = c
	return c, nil
}

func (repo *courseRepository) CreateModule(ctx context.Context, m course.Module, exec ...core.DBExecutor) (course.Module, error) {
	defer repo.db.lock(exec)()

	m.ID = newID()
	repo.db.tables.modules[m.ID] = m
	return m, nil
}

func (repo *courseRepository) QueryModules(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	modules := make([]course.Module, 0)
	for _, m := range repo.db.tables.modules {
		if m.CourseID == courseID {
			modules = append(modules, m)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Position == modules[j].Position {
			return modules[i].CreatedAt.Before(modules[j].CreatedAt)
		}
		return modules[i].Position < modules[j].Position
	})
	return modules, nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error) {
	defer repo.db.lock(exec)()

	for _, existing := range repo.db.tables.enrollments {
		if existing.UserID == e.UserID && existing.CourseID == e.CourseID {
			return existing, nil
		}
	}
	e.ID = newID()
	repo.db.tables.enrollments[e.ID] = e
	return e, nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.tables.enrollments[id]; ok {
		return e, nil
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) GetUserEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.tables.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return e, nil
		}
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, filter course.EnrollmentFilter, exec ...core.DBExecutor) ([]course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]course.Enrollment, 0)
	for _, e := range repo.db.tables.enrollments {
		if (filter.CourseID == "" || e.CourseID == filter.CourseID) &&
			(filter.UserID == "" || e.UserID == filter.UserID) &&
			(filter.Status == "" || e.Status == filter.Status) {
			enrollments = append(enrollments, e)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].CreatedAt.Before(enrollments[j].CreatedAt) })
	return enrollments, nil
}

func (repo *courseRepository) UpdateEnrollment(ctx context.Context, e course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error) {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.tables.enrollments[e.ID]; !ok {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	repo.db.tables.enrollments[e.ID] = e
	return e, nil
}

func containsString(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
