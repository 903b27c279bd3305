package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/report"
	"github.com/trezcool/academia/core/user"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil)

func NewReportRepository(db *DB) report.Repository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) UsersByRole(ctx context.Context) (map[string]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]int)
	for _, usr := range repo.db.tables.users {
		for _, role := range usr.Roles {
			counts[roleFamily(role)]++
		}
	}
	return counts, nil
}

// roleFamily maps "admin:owner" to "admin".
func roleFamily(role string) string {
	for _, fam := range []string{user.RoleAdmin, user.RoleInstructor, user.RoleTrainee} {
		if strings.HasPrefix(role, fam) {
			return strings.TrimSuffix(fam, ":")
		}
	}
	return role
}

func (repo *reportRepository) CountCourses(ctx context.Context) (active, archived int, err error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.tables.courses {
		if c.IsArchived() {
			archived++
		} else {
			active++
		}
	}
	return active, archived, nil
}

func (repo *reportRepository) CountPublishedExams(ctx context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, e := range repo.db.tables.exams {
		if e.Published {
			count++
		}
	}
	return count, nil
}

func (repo *reportRepository) CountAttempts(ctx context.Context, courseID string) (total, passed int, avgScore float64, err error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var sum float64
	for _, a := range repo.db.tables.attempts {
		if courseID != "" && repo.db.tables.exams[a.ExamID].CourseID != courseID {
			continue
		}
		total++
		sum += a.Detail.Percentage
		if a.Passed {
			passed++
		}
	}
	if total > 0 {
		avgScore = sum / float64(total)
	}
	return total, passed, avgScore, nil
}

func (repo *reportRepository) CountCertificates(ctx context.Context, courseID string, now time.Time) (active, expired int, err error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.tables.certificates {
		if courseID != "" && c.CourseID != courseID {
			continue
		}
		if c.IsExpired(now) {
			expired++
		} else {
			active++
		}
	}
	return active, expired, nil
}

func (repo *reportRepository) EnrollmentsByStatus(ctx context.Context, courseID string) (map[string]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range repo.db.tables.enrollments {
		if courseID == "" || e.CourseID == courseID {
			counts[e.Status]++
		}
	}
	return counts, nil
}

func (repo *reportRepository) CountAttendance(ctx context.Context, courseID string, since time.Time) (report.AttendanceCounts, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var counts report.AttendanceCounts
	for _, a := range repo.db.tables.attendance {
		s := repo.db.tables.sessions[a.SessionID]
		if courseID != "" && s.CourseID != courseID {
			continue
		}
		if !since.IsZero() && s.StartsAt.Before(since) {
			continue
		}
		counts.Total++
		if a.Status == attendance.Present || a.Status == attendance.Late {
			counts.Attended++
		}
	}
	return counts, nil
}

func (repo *reportRepository) CourseTitle(ctx context.Context, courseID string) (string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	c, ok := repo.db.tables.courses[courseID]
	if !ok {
		return "", report.ErrCourseNotFound
	}
	return c.Title, nil
}
