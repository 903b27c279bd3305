package inmemdb

import (
	"context"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	defer repo.db.lock(exec)()

	entry.ID = newID()
	repo.db.tables.audit = append(repo.db.tables.audit, entry)
	return entry, nil
}

func (repo *auditRepository) QueryEntries(ctx context.Context, filter audit.QueryFilter, exec ...core.DBExecutor) ([]audit.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]audit.Entry, 0)
	// appended in order, walk backwards for most recent first
	for i := len(repo.db.tables.audit) - 1; i >= 0; i-- {
		e := repo.db.tables.audit[i]
		if (filter.ActorID != "" && e.ActorID != filter.ActorID) ||
			(filter.EntityType != "" && e.EntityType != filter.EntityType) ||
			(filter.EntityID != "" && e.EntityID != filter.EntityID) ||
			(filter.Action != "" && e.Action != filter.Action) {
			continue
		}
		entries = append(entries, e)
		if filter.Limit > 0 && len(entries) == filter.Limit {
			break
		}
	}
	return entries, nil
}
