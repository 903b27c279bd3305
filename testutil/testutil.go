// Package testutil wires the services on top of the in-memory database for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/assets"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/exam"
	"github.com/trezcool/academia/core/file"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/report"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/bus"
	emailsvc "github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/services/filestore"
	logsvc "github.com/trezcool/academia/services/logger"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
)

// Env holds every service of the application, backed by a fresh in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     *logsvc.RollbarLogger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *inmemdb.DB
	Tx         core.Transactor
	Mail       *emailsvc.ConsoleServiceMock
	Bus        *bus.Local
	Storage    file.Storage

	UserRepo user.Repository

	Users         *user.Service
	Audit         *audit.Service
	Courses       *course.Service
	Notifications *notification.Service
	Certificates  *certificate.Service
	Exams         *exam.Service
	Attendance    *attendance.Service
	Files         *file.Service
	Reports       *report.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Storage.LocalRoot = filepath.Join(t.TempDir(), "storage")

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(assets.FS, assets.CommonPasswords, logger)
	core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf, logger)

	db := inmemdb.Open()
	tx := inmemdb.NewTransactor(db)
	mail := emailsvc.NewConsoleServiceMock(conf, logger)
	events := bus.NewLocal()
	store := filestore.NewLocal(conf.Storage.LocalRoot, conf.Storage.PublicBaseURL)

	env := &Env{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		DB:         db,
		Tx:         tx,
		Mail:       mail,
		Bus:        events,
		Storage:    store,
		UserRepo:   inmemdb.NewUserRepository(db),
	}

	env.Users = user.NewService(env.UserRepo)
	env.Audit = audit.NewService(inmemdb.NewAuditRepository(db))
	env.Courses = course.NewService(inmemdb.NewCourseRepository(db), tx, env.Users, env.Audit)
	env.Notifications = notification.NewService(inmemdb.NewNotificationRepository(db), events, mail, logger)
	env.Certificates = certificate.NewService(
		inmemdb.NewCertificateRepository(db), tx, env.Users, env.Courses, env.Notifications, env.Audit, mail, logger,
	)
	env.Exams = exam.NewService(inmemdb.NewExamRepository(db), tx, env.Courses, env.Certificates, env.Audit, validate)
	env.Attendance = attendance.NewService(
		inmemdb.NewAttendanceRepository(db), tx, env.Users, env.Courses, env.Audit, validate, translator, logger,
	)
	env.Files = file.NewService(inmemdb.NewFileRepository(db), tx, store, env.Audit, logger, conf)
	env.Reports = report.NewService(inmemdb.NewReportRepository(db))
	return env
}

// CreateUser stores a user straight through the repository, bypassing validation.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateTrainee(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Trainee "+uname, uname, uname+"@police.test", "", []string{user.RoleTrainee}, true)
}

func (env *Env) CreateInstructor(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Instructor "+uname, uname, uname+"@police.test", "", []string{user.RoleInstructor}, true)
}

func (env *Env) CreateAdmin(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Admin "+uname, uname, uname+"@police.test", "", []string{user.RoleAdmin}, true)
}

// CreateCourse stores a published course.
func (env *Env) CreateCourse(t *testing.T, code string) course.Course {
	t.Helper()

	now := time.Now().UTC()
	c, err := inmemdb.NewCourseRepository(env.DB).CreateCourse(context.Background(), course.Course{
		Code:      code,
		Title:     "Course " + code,
		Published: true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

// QuestionSpec describes a question for CreateExam.
type QuestionSpec struct {
	Type      string
	Marks     int
	Options   []string
	AnswerKey []string
}

// MCQ is a multiple choice question with options a, b, c and answer key.
func MCQ(marks int, key ...string) QuestionSpec {
	return QuestionSpec{Type: exam.MultipleChoice, Marks: marks, Options: []string{"a", "b", "c"}, AnswerKey: key}
}

// CreateExam stores an exam of the course with the given questions.
func (env *Env) CreateExam(t *testing.T, courseID string, published, negativeMarking bool, questions ...QuestionSpec) exam.Exam {
	t.Helper()

	ctx := context.Background()
	repo := inmemdb.NewExamRepository(env.DB)
	now := time.Now().UTC()
	e, err := repo.CreateExam(ctx, exam.Exam{
		CourseID:        courseID,
		Title:           "Exam",
		Published:       published,
		NegativeMarking: negativeMarking,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("CreateExam() failed: %v", err)
	}
	for i, qs := range questions {
		if _, err = repo.CreateQuestion(ctx, exam.Question{
			ExamID:    e.ID,
			Type:      qs.Type,
			Prompt:    "Question",
			Options:   qs.Options,
			Marks:     qs.Marks,
			AnswerKey: qs.AnswerKey,
			Position:  i + 1,
			CreatedAt: now,
		}); err != nil {
			t.Fatalf("CreateExam() failed: %v", err)
		}
	}
	e, err = repo.GetExam(ctx, e.ID)
	if err != nil {
		t.Fatalf("CreateExam() failed: %v", err)
	}
	return e
}
