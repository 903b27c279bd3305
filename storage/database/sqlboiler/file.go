package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/file"
)

const fileColumns = `id, key, name, content_type, size, url, uploaded_by, created_at`

type fileRow struct {
	ID          string      `boil:"id"`
	Key         string      `boil:"key"`
	Name        string      `boil:"name"`
	ContentType string      `boil:"content_type"`
	Size        int64       `boil:"size"`
	URL         string      `boil:"url"`
	UploadedBy  null.String `boil:"uploaded_by"`
	CreatedAt   time.Time   `boil:"created_at"`
}

func (row fileRow) unboil() file.Object {
	return file.Object{
		ID:           row.ID,
		Key:          row.Key,
		OriginalName: row.Name,
		ContentType:  row.ContentType,
		Size:         row.Size,
		URL:          row.URL,
		UploadedBy:   row.UploadedBy.String,
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

type fileRepository struct {
	baseRepository
}

var _ file.Repository = (*fileRepository)(nil)

func NewFileRepository(exec core.DBExecutor) file.Repository {
	return &fileRepository{baseRepository{exec: exec}}
}

func (repo fileRepository) CreateObject(ctx context.Context, obj file.Object, exec ...core.DBExecutor) (file.Object, error) {
	obj.ID = newID()

	var row fileRow
	err := bind(ctx, repo.getExec(exec), &row,
		`INSERT INTO file_object (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+fileColumns,
		obj.ID, obj.Key, obj.OriginalName, obj.ContentType, obj.Size, obj.URL, nullID(obj.UploadedBy), obj.CreatedAt.UTC(),
	)
	if err != nil {
		return file.Object{}, errors.Wrap(err, "inserting file")
	}
	return row.unboil(), nil
}

func (repo fileRepository) GetObject(ctx context.Context, id string, exec ...core.DBExecutor) (file.Object, error) {
	if !validID(id) {
		return file.Object{}, file.ErrNotFound
	}
	var row fileRow
	if err := bind(ctx, repo.getExec(exec), &row, `SELECT `+fileColumns+` FROM file_object WHERE id = ?`, id); err != nil {
		return file.Object{}, trapNoRowsErr(err, file.ErrNotFound, "finding file")
	}
	return row.unboil(), nil
}

func (repo fileRepository) DeleteObject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return file.ErrNotFound
	}
	cnt, err := execute(ctx, repo.getExec(exec), `DELETE FROM file_object WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting file")
	}
	if cnt == 0 {
		return file.ErrNotFound
	}
	return nil
}
