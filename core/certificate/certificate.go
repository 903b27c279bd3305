// Package certificate issues and verifies course completion certificates.
package certificate

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

// Validity of a certificate from its issuance.
const Validity = 365 * 24 * time.Hour

var (
	ErrNotFound = core.NewNotFoundError("certificate")

	errCourseNotCompleted = errors.New("the user has not completed this course")

	nowFunc = time.Now // mockable
)

type Certificate struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	ExamID    string    `json:"exam_id"`
	Serial    string    `json:"serial"`
	QRCode    string    `json:"qr_code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c Certificate) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Verification is the public view of a certificate looked up by serial.
type Verification struct {
	Serial      string    `json:"serial"`
	Valid       bool      `json:"valid"`
	Expired     bool      `json:"expired"`
	HolderName  string    `json:"holder_name"`
	CourseTitle string    `json:"course_title"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IssueRequest describes a certificate to grant. ExamID is empty for manual issuance.
type IssueRequest struct {
	UserID   string
	CourseID string
	ExamID   string
	ActorID  string
}

type NewCertificate struct {
	UserID   string `json:"user_id" validate:"required"`
	CourseID string `json:"course_id" validate:"required"`
}

func (nc *NewCertificate) Validate(validate *validator.Validate) error {
	nc.UserID = core.CleanString(nc.UserID)
	nc.CourseID = core.CleanString(nc.CourseID)
	return validate.Struct(nc)
}

type QueryFilter struct {
	UserID   string `query:"user_id"`
	CourseID string `query:"course_id"`
}

type (
	Repository interface {
		// CreateCertificate stores c unless the user already holds one for the course,
		// in which case the existing certificate is returned with created = false.
		CreateCertificate(ctx context.Context, c Certificate, exec ...core.DBExecutor) (cert Certificate, created bool, err error)
		GetUserCertificate(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (Certificate, error)
		GetCertificateBySerial(ctx context.Context, serial string, exec ...core.DBExecutor) (Certificate, error)
		QueryCertificates(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Certificate, error)
	}

	Service struct {
		repo    Repository
		tx      core.Transactor
		users   *user.Service
		courses *course.Service
		notifs  *notification.Service
		auditor audit.Recorder
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	users *user.Service,
	courses *course.Service,
	notifs *notification.Service,
	auditor audit.Recorder,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		tx:      tx,
		users:   users,
		courses: courses,
		notifs:  notifs,
		auditor: auditor,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// Serial builds the certificate serial number: CERT-<unix millis>-<last 6 chars of the user id>.
func Serial(issuedAt time.Time, userID string) string {
	suffix := userID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("CERT-%d-%s", issuedAt.UnixNano()/int64(time.Millisecond), suffix)
}

// QRCode builds the QR code reference: QR-<unix millis>.
func QRCode(issuedAt time.Time) string {
	return fmt.Sprintf("QR-%d", issuedAt.UnixNano()/int64(time.Millisecond))
}

// Issue grants the user a certificate for the course, at most once per (user, course).
// It joins the caller's transaction when exec is given. Announce must be called once committed.
func (svc *Service) Issue(ctx context.Context, req IssueRequest, exec ...core.DBExecutor) (Certificate, bool, error) {
	existing, err := svc.repo.GetUserCertificate(ctx, req.UserID, req.CourseID, exec...)
	if err == nil {
		return existing, false, nil
	} else if err != ErrNotFound {
		return Certificate{}, false, pkgerrors.Wrap(err, "finding certificate")
	}

	now := nowFunc().UTC()
	cert, created, err := svc.repo.CreateCertificate(ctx, Certificate{
		UserID:    req.UserID,
		CourseID:  req.CourseID,
		ExamID:    req.ExamID,
		Serial:    Serial(now, req.UserID),
		QRCode:    QRCode(now),
		IssuedAt:  now,
		ExpiresAt: now.Add(Validity),
	}, exec...)
	if err != nil {
		return Certificate{}, false, pkgerrors.Wrap(err, "creating certificate")
	}
	if !created {
		return cert, false, nil
	}

	actor := req.ActorID
	if actor == "" {
		actor = req.UserID
	}
	err = svc.auditor.Record(ctx, audit.Entry{
		ActorID:    actor,
		Action:     audit.ActionCertificateIssued,
		EntityType: "certificate",
		EntityID:   cert.ID,
		Metadata: map[string]interface{}{
			"serial":    cert.Serial,
			"user_id":   cert.UserID,
			"course_id": cert.CourseID,
			"exam_id":   cert.ExamID,
		},
	}, exec...)
	return cert, true, err
}

// IssueManual lets an administrator grant a certificate to a user who completed the course.
func (svc *Service) IssueManual(ctx context.Context, actor user.User, nc NewCertificate) (Certificate, bool, error) {
	if _, err := svc.users.GetByID(ctx, nc.UserID); err != nil {
		return Certificate{}, false, err
	}
	if _, err := svc.courses.Get(ctx, nc.CourseID); err != nil {
		return Certificate{}, false, err
	}

	completed, err := svc.courses.HasCompleted(ctx, nc.UserID, nc.CourseID)
	if err != nil {
		return Certificate{}, false, err
	}
	if !completed {
		return Certificate{}, false, core.NewValidationError(errCourseNotCompleted, core.FieldError{Field: "course_id", Error: errCourseNotCompleted.Error()})
	}

	var (
		cert    Certificate
		created bool
	)
	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		cert, created, err = svc.Issue(ctx, IssueRequest{UserID: nc.UserID, CourseID: nc.CourseID, ActorID: actor.ID}, core.TxExec(exec)...)
		return err
	})
	if err != nil {
		return Certificate{}, false, err
	}
	if created {
		svc.Announce(ctx, cert)
	}
	return cert, created, nil
}

// Announce tells the holder about a new certificate, in-app and by email.
// Failures are logged only: the certificate is already committed.
func (svc *Service) Announce(ctx context.Context, cert Certificate) {
	usr, err := svc.users.GetByID(ctx, cert.UserID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("announcing certificate %s: %v", cert.Serial, err), err)
		return
	}
	crs, err := svc.courses.Get(ctx, cert.CourseID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("announcing certificate %s: %v", cert.Serial, err), err)
		return
	}

	_, err = svc.notifs.Notify(ctx, notification.NewNotification{
		UserIDs: []string{usr.ID},
		Type:    notification.TypeCertificate,
		Title:   "Certificate issued",
		Message: fmt.Sprintf("You earned the certificate for %q (serial %s).", crs.Title, cert.Serial),
		Link:    "/certificates/verify/" + cert.Serial,
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying certificate %s: %v", cert.Serial, err), err)
	}

	if usr.Email != "" && svc.mailSvc != nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Your certificate for " + crs.Title,
			TemplateName: "certificate_issued",
			TemplateData: map[string]interface{}{
				"Name":        usr.Name,
				"CourseTitle": crs.Title,
				"Serial":      cert.Serial,
				"ExpiresAt":   cert.ExpiresAt.Format("2006-01-02"),
			},
		})
	}
}

// Verify looks a certificate up by serial for public verification.
func (svc *Service) Verify(ctx context.Context, serial string) (Verification, error) {
	cert, err := svc.repo.GetCertificateBySerial(ctx, core.CleanString(serial))
	if err != nil {
		return Verification{}, err
	}

	expired := cert.IsExpired(nowFunc().UTC())
	v := Verification{
		Serial:    cert.Serial,
		Valid:     !expired,
		Expired:   expired,
		IssuedAt:  cert.IssuedAt,
		ExpiresAt: cert.ExpiresAt,
	}
	if usr, err := svc.users.GetByID(ctx, cert.UserID); err == nil {
		v.HolderName = usr.Name
	}
	if crs, err := svc.courses.Get(ctx, cert.CourseID); err == nil {
		v.CourseTitle = crs.Title
	}
	return v, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Certificate, error) {
	return svc.repo.QueryCertificates(ctx, filter)
}
