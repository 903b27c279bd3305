// Package report aggregates dashboard figures. It only ever reads.
package report

import (
	"context"
	"time"

	"github.com/trezcool/academia/core"
)

// AttendanceWindow is how far back the dashboard attendance rate looks.
const AttendanceWindow = 30 * 24 * time.Hour

var (
	ErrCourseNotFound = core.NewNotFoundError("course")

	nowFunc = time.Now // mockable
)

type DashboardStats struct {
	UsersByRole         map[string]int `json:"users_by_role"`
	ActiveCourses       int            `json:"active_courses"`
	ArchivedCourses     int            `json:"archived_courses"`
	PublishedExams      int            `json:"published_exams"`
	Attempts            int            `json:"attempts"`
	PassedAttempts      int            `json:"passed_attempts"`
	PassRate            float64        `json:"pass_rate"`
	ActiveCertificates  int            `json:"active_certificates"`
	ExpiredCertificates int            `json:"expired_certificates"`
	EnrollmentsByStatus map[string]int `json:"enrollments_by_status"`
	AttendanceRate      float64        `json:"attendance_rate"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

type CourseProgress struct {
	CourseID            string         `json:"course_id"`
	Title               string         `json:"title"`
	EnrollmentsByStatus map[string]int `json:"enrollments_by_status"`
	CompletionRate      float64        `json:"completion_rate"`
	Attempts            int            `json:"attempts"`
	AverageScore        float64        `json:"average_score"`
	PassRate            float64        `json:"pass_rate"`
	Certificates        int            `json:"certificates"`
	AttendanceRate      float64        `json:"attendance_rate"`
}

// AttendanceCounts are raw counts, "attended" being present or late.
type AttendanceCounts struct {
	Total    int `db:"total"`
	Attended int `db:"attended"`
}

type (
	Repository interface {
		UsersByRole(ctx context.Context) (map[string]int, error)
		CountCourses(ctx context.Context) (active, archived int, err error)
		CountPublishedExams(ctx context.Context) (int, error)
		CountAttempts(ctx context.Context, courseID string) (total, passed int, avgScore float64, err error)
		CountCertificates(ctx context.Context, courseID string, now time.Time) (active, expired int, err error)
		EnrollmentsByStatus(ctx context.Context, courseID string) (map[string]int, error)
		CountAttendance(ctx context.Context, courseID string, since time.Time) (AttendanceCounts, error)
		CourseTitle(ctx context.Context, courseID string) (string, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Stats computes the organisation wide dashboard figures.
func (svc *Service) Stats(ctx context.Context) (DashboardStats, error) {
	now := nowFunc().UTC()
	stats := DashboardStats{GeneratedAt: now}

	var err error
	if stats.UsersByRole, err = svc.repo.UsersByRole(ctx); err != nil {
		return DashboardStats{}, err
	}
	if stats.ActiveCourses, stats.ArchivedCourses, err = svc.repo.CountCourses(ctx); err != nil {
		return DashboardStats{}, err
	}
	if stats.PublishedExams, err = svc.repo.CountPublishedExams(ctx); err != nil {
		return DashboardStats{}, err
	}
	if stats.Attempts, stats.PassedAttempts, _, err = svc.repo.CountAttempts(ctx, ""); err != nil {
		return DashboardStats{}, err
	}
	stats.PassRate = rate(stats.PassedAttempts, stats.Attempts)
	if stats.ActiveCertificates, stats.ExpiredCertificates, err = svc.repo.CountCertificates(ctx, "", now); err != nil {
		return DashboardStats{}, err
	}
	if stats.EnrollmentsByStatus, err = svc.repo.EnrollmentsByStatus(ctx, ""); err != nil {
		return DashboardStats{}, err
	}

	att, err := svc.repo.CountAttendance(ctx, "", now.Add(-AttendanceWindow))
	if err != nil {
		return DashboardStats{}, err
	}
	stats.AttendanceRate = rate(att.Attended, att.Total)
	return stats, nil
}

// Progress computes the figures of a single course.
func (svc *Service) Progress(ctx context.Context, courseID string) (CourseProgress, error) {
	now := nowFunc().UTC()
	title, err := svc.repo.CourseTitle(ctx, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	prog := CourseProgress{CourseID: courseID, Title: title}

	if prog.EnrollmentsByStatus, err = svc.repo.EnrollmentsByStatus(ctx, courseID); err != nil {
		return CourseProgress{}, err
	}
	var enrolled int
	for _, n := range prog.EnrollmentsByStatus {
		enrolled += n
	}
	prog.CompletionRate = rate(prog.EnrollmentsByStatus["completed"], enrolled)

	var passed int
	if prog.Attempts, passed, prog.AverageScore, err = svc.repo.CountAttempts(ctx, courseID); err != nil {
		return CourseProgress{}, err
	}
	prog.PassRate = rate(passed, prog.Attempts)

	active, expired, err := svc.repo.CountCertificates(ctx, courseID, now)
	if err != nil {
		return CourseProgress{}, err
	}
	prog.Certificates = active + expired

	att, err := svc.repo.CountAttendance(ctx, courseID, time.Time{})
	if err != nil {
		return CourseProgress{}, err
	}
	prog.AttendanceRate = rate(att.Attended, att.Total)
	return prog, nil
}

// rate returns part/total as a percentage, 0 when total is 0.
func rate(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
