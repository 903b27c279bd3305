// Package file keeps uploaded documents: metadata in the database, bytes in a Storage backend.
package file

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/user"
)

var (
	ErrNotFound = core.NewNotFoundError("file")

	// ErrInvalidKey is returned by storages for keys escaping their root.
	ErrInvalidKey = errors.New("invalid storage key")

	errEmptyFile = errors.New("file is empty")
	errTooLarge  = errors.New("file is too large")

	nowFunc  = time.Now       // mockable
	uuidFunc = uuid.NewString // mockable
)

// Object is the metadata of an uploaded file.
type Object struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	UploadedBy   string    `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// Upload is a fully buffered file to store.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type (
	// Storage holds file bytes under keys. ResolveURL never does I/O.
	Storage interface {
		Upload(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
		Download(ctx context.Context, key string) ([]byte, error)
		Delete(ctx context.Context, key string) (bool, error)
		ResolveURL(key string) string
	}

	Repository interface {
		CreateObject(ctx context.Context, obj Object, exec ...core.DBExecutor) (Object, error)
		GetObject(ctx context.Context, id string, exec ...core.DBExecutor) (Object, error)
		DeleteObject(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo    Repository
		tx      core.Transactor
		store   Storage
		auditor audit.Recorder
		logger  core.Logger
		maxSize int64
	}
)

func NewService(repo Repository, tx core.Transactor, store Storage, auditor audit.Recorder, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		tx:      tx,
		store:   store,
		auditor: auditor,
		logger:  logger,
		maxSize: conf.Server.MaxUploadSize,
	}
}

// ValidateKey rejects keys that are empty, absolute or climb out of the storage root.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	return nil
}

// NewKey builds the storage key of a file uploaded at t: uploads/<yyyy>/<mm>/<uuid><ext>.
func NewKey(t time.Time, name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("uploads/%04d/%02d/%s%s", t.Year(), t.Month(), uuidFunc(), ext)
}

func (svc *Service) Upload(ctx context.Context, actor user.User, up Upload) (Object, error) {
	size := int64(len(up.Data))
	if size == 0 {
		return Object{}, core.NewValidationError(errEmptyFile, core.FieldError{Field: "file", Error: errEmptyFile.Error()})
	}
	if svc.maxSize > 0 && size > svc.maxSize {
		msg := fmt.Sprintf("%s (max %d bytes)", errTooLarge, svc.maxSize)
		return Object{}, core.NewValidationError(errTooLarge, core.FieldError{Field: "file", Error: msg})
	}

	now := nowFunc().UTC()
	key := NewKey(now, up.Name)
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := svc.store.Upload(ctx, key, up.Data, contentType)
	if err != nil {
		return Object{}, errors.Wrap(err, "storing file")
	}

	var obj Object
	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if obj, err = svc.repo.CreateObject(ctx, Object{
			Key:          key,
			OriginalName: path.Base(strings.ReplaceAll(up.Name, "\\", "/")),
			ContentType:  contentType,
			Size:         size,
			URL:          url,
			UploadedBy:   actor.ID,
			CreatedAt:    now,
		}, core.TxExec(exec)...); err != nil {
			return errors.Wrap(err, "creating file object")
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionFileUploaded,
			EntityType: "file",
			EntityID:   obj.ID,
			Metadata:   map[string]interface{}{"key": key, "size": size, "content_type": contentType},
		}, core.TxExec(exec)...)
	})
	if err != nil {
		if _, delErr := svc.store.Delete(ctx, key); delErr != nil {
			svc.logger.Warn(fmt.Sprintf("removing orphan file %s: %v", key, delErr), delErr)
		}
		return Object{}, err
	}
	return obj, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Object, error) {
	return svc.repo.GetObject(ctx, id)
}

// Open returns the file metadata together with its content.
func (svc *Service) Open(ctx context.Context, id string) (Object, []byte, error) {
	obj, err := svc.repo.GetObject(ctx, id)
	if err != nil {
		return Object{}, nil, err
	}
	data, err := svc.store.Download(ctx, obj.Key)
	if err != nil {
		return Object{}, nil, errors.Wrapf(err, "reading %s", obj.Key)
	}
	return obj, data, nil
}

// Delete removes a file. Only its uploader or an administrator may do so.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	obj, err := svc.repo.GetObject(ctx, id)
	if err != nil {
		return err
	}
	if obj.UploadedBy != actor.ID && !actor.IsAdmin() {
		return core.NewPermissionError("only the uploader or an administrator can delete this file")
	}

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.DeleteObject(ctx, obj.ID, core.TxExec(exec)...); err != nil {
			return err
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionFileDeleted,
			EntityType: "file",
			EntityID:   obj.ID,
			Metadata:   map[string]interface{}{"key": obj.Key},
		}, core.TxExec(exec)...)
	})
	if err != nil {
		return err
	}

	if ok, err := svc.store.Delete(ctx, obj.Key); err != nil || !ok {
		svc.logger.Warn(fmt.Sprintf("file %s deleted but its content %s could not be removed: %v", obj.ID, obj.Key, err), err)
	}
	return nil
}
