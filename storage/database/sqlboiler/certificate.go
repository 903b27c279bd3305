package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/certificate"
)

const certificateColumns = `id, user_id, course_id, exam_id, serial, qr_code, issued_at, expires_at`

type certificateRow struct {
	ID        string      `boil:"id"`
	UserID    string      `boil:"user_id"`
	CourseID  string      `boil:"course_id"`
	ExamID    null.String `boil:"exam_id"`
	Serial    string      `boil:"serial"`
	QRCode    string      `boil:"qr_code"`
	IssuedAt  time.Time   `boil:"issued_at"`
	ExpiresAt time.Time   `boil:"expires_at"`
}

func (row certificateRow) unboil() certificate.Certificate {
	return certificate.Certificate{
		ID:        row.ID,
		UserID:    row.UserID,
		CourseID:  row.CourseID,
		ExamID:    row.ExamID.String,
		Serial:    row.Serial,
		QRCode:    row.QRCode,
		IssuedAt:  row.IssuedAt.UTC(),
		ExpiresAt: row.ExpiresAt.UTC(),
	}
}

type certificateRepository struct {
	baseRepository
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(exec core.DBExecutor) certificate.Repository {
	return &certificateRepository{baseRepository{exec: exec}}
}

func (repo certificateRepository) CreateCertificate(
	ctx context.Context,
	c certificate.Certificate,
	exec ...core.DBExecutor,
) (certificate.Certificate, bool, error) {
	c.ID = newID()
	exe := repo.getExec(exec)

	var rows []certificateRow
	err := bind(ctx, exe, &rows,
		`INSERT INTO certificate (`+certificateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, course_id) DO NOTHING RETURNING `+certificateColumns,
		c.ID, c.UserID, c.CourseID, nullID(c.ExamID), c.Serial, c.QRCode, c.IssuedAt.UTC(), c.ExpiresAt.UTC(),
	)
	if err != nil {
		return certificate.Certificate{}, false, errors.Wrap(err, "inserting certificate")
	}
	if len(rows) > 0 {
		return rows[0].unboil(), true, nil
	}

	existing, err := repo.GetUserCertificate(ctx, c.UserID, c.CourseID, exe)
	if err != nil {
		return certificate.Certificate{}, false, err
	}
	return existing, false, nil
}

func (repo certificateRepository) GetUserCertificate(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	if !validID(userID) || !validID(courseID) {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	var row certificateRow
	err := bind(ctx, repo.getExec(exec), &row,
		`SELECT `+certificateColumns+` FROM certificate WHERE user_id = ? AND course_id = ?`, userID, courseID)
	if err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "finding user certificate")
	}
	return row.unboil(), nil
}

func (repo certificateRepository) GetCertificateBySerial(ctx context.Context, serial string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	var row certificateRow
	err := bind(ctx, repo.getExec(exec), &row, `SELECT `+certificateColumns+` FROM certificate WHERE serial = ?`, serial)
	if err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "finding certificate by serial")
	}
	return row.unboil(), nil
}

func (repo certificateRepository) QueryCertificates(ctx context.Context, filter certificate.QueryFilter, exec ...core.DBExecutor) ([]certificate.Certificate, error) {
	q := `SELECT ` + certificateColumns + ` FROM certificate WHERE true`
	var args []interface{}
	for _, cond := range [][2]string{{"user_id", filter.UserID}, {"course_id", filter.CourseID}} {
		if cond[1] == "" {
			continue
		}
		if !validID(cond[1]) {
			return []certificate.Certificate{}, nil
		}
		q += ` AND ` + cond[0] + ` = ?`
		args = append(args, cond[1])
	}

	var rows []certificateRow
	if err := bind(ctx, repo.getExec(exec), &rows, q+` ORDER BY issued_at DESC`, args...); err != nil {
		return nil, errors.Wrap(err, "querying certificates")
	}
	certs := make([]certificate.Certificate, 0, len(rows))
	for _, row := range rows {
		certs = append(certs, row.unboil())
	}
	return certs, nil
}
