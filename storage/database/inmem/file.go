package inmemdb

import (
	"context"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/file"
)

type fileRepository struct {
	db *DB
}

var _ file.Repository = (*fileRepository)(nil)

func NewFileRepository(db *DB) file.Repository {
	return &fileRepository{db: db}
}

func (repo *fileRepository) CreateObject(ctx context.Context, obj file.Object, exec ...core.DBExecutor) (file.Object, error) {
	defer repo.db.lock(exec)()

	obj.ID = newID()
	repo.db.tables.files[obj.ID] = obj
	return obj, nil
}

func (repo *fileRepository) GetObject(ctx context.Context, id string, exec ...core.DBExecutor) (file.Object, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if obj, ok := repo.db.tables.files[id]; ok {
		return obj, nil
	}
	return file.Object{}, file.ErrNotFound
}

func (repo *fileRepository) DeleteObject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.tables.files[id]; !ok {
		return file.ErrNotFound
	}
	delete(repo.db.tables.files, id)
	return nil
}
