package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
)

const auditColumns = `id, actor_id, action, entity_type, entity_id, metadata, created_at`

type auditRow struct {
	ID         string      `boil:"id"`
	ActorID    null.String `boil:"actor_id"`
	Action     string      `boil:"action"`
	EntityType string      `boil:"entity_type"`
	EntityID   string      `boil:"entity_id"`
	Metadata   types.JSON  `boil:"metadata"`
	CreatedAt  time.Time   `boil:"created_at"`
}

func (row auditRow) unboil() (audit.Entry, error) {
	entry := audit.Entry{
		ID:         row.ID,
		ActorID:    row.ActorID.String,
		Action:     row.Action,
		EntityType: row.EntityType,
		EntityID:   row.EntityID,
		Metadata:   map[string]interface{}{},
		CreatedAt:  row.CreatedAt.UTC(),
	}
	if len(row.Metadata) > 0 {
		if err := row.Metadata.Unmarshal(&entry.Metadata); err != nil {
			return audit.Entry{}, errors.Wrap(err, "decoding audit metadata")
		}
	}
	return entry, nil
}

type auditRepository struct {
	baseRepository
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(exec core.DBExecutor) audit.Repository {
	return &auditRepository{baseRepository{exec: exec}}
}

func (repo auditRepository) CreateEntry(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	entry.ID = newID()

	var metadata types.JSON
	if err := metadata.Marshal(entry.Metadata); err != nil {
		return audit.Entry{}, errors.Wrap(err, "encoding audit metadata")
	}

	// system actions have no actor
	_, err := execute(ctx, repo.getExec(exec),
		`INSERT INTO audit_log (`+auditColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, nullID(entry.ActorID), entry.Action, entry.EntityType, entry.EntityID, metadata, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return entry, nil
}

func (repo auditRepository) QueryEntries(ctx context.Context, filter audit.QueryFilter, exec ...core.DBExecutor) ([]audit.Entry, error) {
	q := `SELECT ` + auditColumns + ` FROM audit_log WHERE true`
	var args []interface{}

	if filter.ActorID != "" {
		if !validID(filter.ActorID) {
			return []audit.Entry{}, nil
		}
		q += ` AND actor_id = ?`
		args = append(args, filter.ActorID)
	}
	for _, cond := range [][2]string{{"entity_type", filter.EntityType}, {"entity_id", filter.EntityID}, {"action", filter.Action}} {
		if cond[1] != "" {
			q += ` AND ` + cond[0] + ` = ?`
			args = append(args, cond[1])
		}
	}
	q += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []auditRow
	if err := bind(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.unboil()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
