// Package inmemdb implements every repository in memory. It backs the test suites and DB_ENGINE=memory.
package inmemdb

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/exam"
	"github.com/trezcool/academia/core/file"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

var newID = uuid.NewString // mockable

type (
	DB struct {
		mu     sync.RWMutex
		txMu   sync.Mutex
		tables tables
	}

	tables struct {
		users         map[string]user.User
		courses       map[string]course.Course
		modules       map[string]course.Module
		enrollments   map[string]course.Enrollment
		exams         map[string]exam.Exam
		questions     map[string]exam.Question
		attempts      map[string]exam.Attempt
		certificates  map[string]certificate.Certificate
		sessions      map[string]attendance.Session
		attendance    map[string]attendance.Attendance
		files         map[string]file.Object
		notifications map[string]notification.Notification
		audit         []audit.Entry
	}
)

func Open() *DB {
	return &DB{tables: tables{
		users:         make(map[string]user.User),
		courses:       make(map[string]course.Course),
		modules:       make(map[string]course.Module),
		enrollments:   make(map[string]course.Enrollment),
		exams:         make(map[string]exam.Exam),
		questions:     make(map[string]exam.Question),
		attempts:      make(map[string]exam.Attempt),
		certificates:  make(map[string]certificate.Certificate),
		sessions:      make(map[string]attendance.Session),
		attendance:    make(map[string]attendance.Attendance),
		files:         make(map[string]file.Object),
		notifications: make(map[string]notification.Notification),
	}}
}

func (t tables) clone() tables {
	return tables{
		users:         maps.Clone(t.users),
		courses:       maps.Clone(t.courses),
		modules:       maps.Clone(t.modules),
		enrollments:   maps.Clone(t.enrollments),
		exams:         maps.Clone(t.exams),
		questions:     maps.Clone(t.questions),
		attempts:      maps.Clone(t.attempts),
		certificates:  maps.Clone(t.certificates),
		sessions:      maps.Clone(t.sessions),
		attendance:    maps.Clone(t.attendance),
		files:         maps.Clone(t.files),
		notifications: maps.Clone(t.notifications),
		audit:         slices.Clone(t.audit),
	}
}

// Flush empties every table.
func (db *DB) Flush() {
	fresh := Open()
	defer db.lock(nil)()
	db.tables = fresh.tables
}

// txExec is the executor handed to a unit of work. Repositories only check that it belongs to their DB.
type txExec struct {
	core.DBExecutor
	db *DB
}

// lock takes the write lock on the tables and returns its release.
// Writes made outside a unit of work also wait for the running one to end, so a rollback
// never restores tables over them.
func (db *DB) lock(exec []core.DBExecutor) (unlock func()) {
	outside := true
	for _, e := range exec {
		if t, ok := e.(*txExec); ok && t.db == db {
			outside = false
		}
	}

	if outside {
		db.txMu.Lock()
	}
	db.mu.Lock()
	return func() {
		db.mu.Unlock()
		if outside {
			db.txMu.Unlock()
		}
	}
}

type transactor struct {
	db *DB
}

// NewTransactor serializes units of work and restores the tables when one fails.
// Repository calls inside fn must be given its exec.
func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

func (tx *transactor) RunInTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx.db.txMu.Lock()
	defer tx.db.txMu.Unlock()

	tx.db.mu.RLock()
	snapshot := tx.db.tables.clone()
	tx.db.mu.RUnlock()

	if err := fn(&txExec{db: tx.db}); err != nil {
		tx.db.mu.Lock()
		tx.db.tables = snapshot
		tx.db.mu.Unlock()
		return err
	}
	return nil
}
