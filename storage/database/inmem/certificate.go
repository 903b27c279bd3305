package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(
	ctx context.Context,
	c certificate.Certificate,
	exec ...core.DBExecutor,
) (certificate.Certificate, bool, error) {
	defer repo.db.lock(exec)()

	for _, existing := range repo.db.tables.certificates {
		if existing.UserID == c.UserID && existing.CourseID == c.CourseID {
			return existing, false, nil
		}
	}
	c.ID = newID()
	repo.db.tables.certificates[c.ID] = c
	return c, true, nil
}

func (repo *certificateRepository) GetUserCertificate(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.tables.certificates {
		if c.UserID == userID && c.CourseID == courseID {
			return c, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetCertificateBySerial(ctx context.Context, serial string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.tables.certificates {
		if c.Serial == serial {
			return c, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) QueryCertificates(ctx context.Context, filter certificate.QueryFilter, exec ...core.DBExecutor) ([]certificate.Certificate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	certs := make([]certificate.Certificate, 0)
	for _, c := range repo.db.tables.certificates {
		if (filter.UserID == "" || c.UserID == filter.UserID) && (filter.CourseID == "" || c.CourseID == filter.CourseID) {
			certs = append(certs, c)
		}
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].IssuedAt.After(certs[j].IssuedAt) })
	return certs, nil
}
