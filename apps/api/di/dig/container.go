package dig_container

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/academia/apps/api/echo"
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
	"github.com/trezcool/academia/services/ratelimit"
	"github.com/trezcool/academia/storage/database"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	boiledrepos "github.com/trezcool/academia/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// DBCloser releases the database handle, if any.
type DBCloser func() error

// Repositories are provided together since they all depend on the configured engine.
type Repositories struct {
	dig.Out

	Closer        DBCloser
	Tx            core.Transactor
	Users         user.Repository
	Courses       course.Repository
	Exams         exam.Repository
	Certificates  certificate.Repository
	Attendance    attendance.Repository
	Files         file.Repository
	Notifications notification.Repository
	Audit         audit.Repository
	Reports       report.Repository
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Limiter    *ratelimit.Limiter

	Users         *user.Service
	Courses       *course.Service
	Exams         *exam.Service
	Certificates  *certificate.Service
	Attendance    *attendance.Service
	Files         *file.Service
	Notifications *notification.Service
	Audit         *audit.Service
	Reports       *report.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.Engine == database.EngineMemory {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on restart")
		db := inmemdb.Open()
		return Repositories{
			Closer:        func() error { return nil },
			Tx:            inmemdb.NewTransactor(db),
			Users:         inmemdb.NewUserRepository(db),
			Courses:       inmemdb.NewCourseRepository(db),
			Exams:         inmemdb.NewExamRepository(db),
			Certificates:  inmemdb.NewCertificateRepository(db),
			Attendance:    inmemdb.NewAttendanceRepository(db),
			Files:         inmemdb.NewFileRepository(db),
			Notifications: inmemdb.NewNotificationRepository(db),
			Audit:         inmemdb.NewAuditRepository(db),
			Reports:       inmemdb.NewReportRepository(db),
		}
	}

	setUp := func() (*sql.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		Closer:        db.Close,
		Tx:            database.NewTransactor(db),
		Users:         boiledrepos.NewUserRepository(db),
		Courses:       boiledrepos.NewCourseRepository(db),
		Exams:         boiledrepos.NewExamRepository(db),
		Certificates:  boiledrepos.NewCertificateRepository(db),
		Attendance:    boiledrepos.NewAttendanceRepository(db),
		Files:         boiledrepos.NewFileRepository(db),
		Notifications: boiledrepos.NewNotificationRepository(db),
		Audit:         boiledrepos.NewAuditRepository(db),
		Reports:       sqlxrepos.NewReportRepository(sqlx.NewDb(db, database.EnginePostgres)),
	}
}

func newPublisher(b bus.Bus) notification.Publisher { return b }

func newAuditRecorder(svc *audit.Service) audit.Recorder { return svc }

func newFileStorage(conf *core.Config, logger core.Logger) (file.Storage, error) {
	return filestore.New(context.Background(), conf, logger)
}

func newLimiter(conf *core.Config, store ratelimit.Store) *ratelimit.Limiter {
	if conf.Server.RateLimitMax <= 0 {
		return nil
	}
	return ratelimit.NewLimiter(store, conf.Server.RateLimitWindow, conf.Server.RateLimitMax)
}

// NewServerOptions gathers everything the API needs.
func NewServerOptions(p ServerParams) *echoapi.Options {
	return &echoapi.Options{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		Limiter:         p.Limiter,
		UserSvc:         p.Users,
		CourseSvc:       p.Courses,
		ExamSvc:         p.Exams,
		CertificateSvc:  p.Certificates,
		AttendanceSvc:   p.Attendance,
		FileSvc:         p.Files,
		NotificationSvc: p.Notifications,
		AuditSvc:        p.Audit,
		ReportSvc:       p.Reports,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(core.NewValidator))
	must(c.Provide(newRepositories))
	must(c.Provide(emailsvc.New))
	must(c.Provide(bus.New))
	must(c.Provide(newPublisher))
	must(c.Provide(newFileStorage))
	must(c.Provide(ratelimit.NewStore))
	must(c.Provide(newLimiter))

	must(c.Provide(user.NewService))
	must(c.Provide(audit.NewService))
	must(c.Provide(newAuditRecorder))
	must(c.Provide(course.NewService))
	must(c.Provide(notification.NewService))
	must(c.Provide(certificate.NewService))
	must(c.Provide(exam.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(file.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(NewServerOptions))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
