package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateSession(ctx context.Context, s attendance.Session, exec ...core.DBExecutor) (attendance.Session, error) {
	defer repo.db.lock(exec)()

	s.ID = newID()
	repo.db.tables.sessions[s.ID] = s
	return s, nil
}

func (repo *attendanceRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Session, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.tables.sessions[id]; ok {
		return s, nil
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (repo *attendanceRepository) QuerySessions(ctx context.Context, filter attendance.SessionFilter, exec ...core.DBExecutor) ([]attendance.Session, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sessions := make([]attendance.Session, 0)
	for _, s := range repo.db.tables.sessions {
		if filter.CourseID != "" && s.CourseID != filter.CourseID {
			continue
		}
		if !filter.From.IsZero() && s.StartsAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && s.StartsAt.After(filter.To) {
			continue
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartsAt.Before(sessions[j].StartsAt) })
	return sessions, nil
}

func (repo *attendanceRepository) UpsertAttendance(ctx context.Context, a attendance.Attendance, exec ...core.DBExecutor) (attendance.Attendance, error) {
	defer repo.db.lock(exec)()

	for id, existing := range repo.db.tables.attendance {
		if existing.SessionID == a.SessionID && existing.UserID == a.UserID {
			a.ID = id
			repo.db.tables.attendance[id] = a
			return a, nil
		}
	}
	a.ID = newID()
	repo.db.tables.attendance[a.ID] = a
	return a, nil
}

func (repo *attendanceRepository) QueryAttendance(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]attendance.Attendance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	records := make([]attendance.Attendance, 0)
	for _, a := range repo.db.tables.attendance {
		if a.SessionID == sessionID {
			records = append(records, a)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CapturedAt.Before(records[j].CapturedAt) })
	return records, nil
}
