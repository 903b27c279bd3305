// Package filestore implements file.Storage on the local filesystem and on S3 compatible object stores.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/file"
)

// Drivers
const (
	DriverLocal = "local"
	DriverS3    = "s3"
	DriverMinio = "minio"
)

// New builds the storage selected by conf.Storage.Driver.
// Object storage drivers without a bucket degrade to the local driver.
func New(ctx context.Context, conf *core.Config, logger core.Logger) (file.Storage, error) {
	sc := conf.Storage
	switch sc.Driver {
	case "", DriverLocal:
		return NewLocal(sc.LocalRoot, sc.PublicBaseURL), nil
	case DriverS3, DriverMinio:
		if sc.Bucket == "" {
			logger.Warn(fmt.Sprintf("storage driver %q has no bucket configured, files will be stored under %s", sc.Driver, sc.LocalRoot))
			return NewLocal(sc.LocalRoot, sc.PublicBaseURL), nil
		}
		return NewS3(ctx, sc, sc.Driver == DriverMinio)
	default:
		return nil, errors.Errorf("unknown storage driver %q", sc.Driver)
	}
}

// Local stores files under a root directory.
type Local struct {
	root    string
	baseURL string
}

var _ file.Storage = (*Local)(nil)

func NewLocal(root, baseURL string) *Local {
	return &Local{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *Local) path(key string) (string, error) {
	if err := file.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *Local) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fp, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating directories")
	}
	if err = os.WriteFile(fp, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing %s", key)
	}
	return s.ResolveURL(key), nil
}

func (s *Local) Download(ctx context.Context, key string) ([]byte, error) {
	fp, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fp)
	if os.IsNotExist(err) {
		return nil, file.ErrNotFound
	}
	return data, errors.Wrapf(err, "reading %s", key)
}

func (s *Local) Delete(ctx context.Context, key string) (bool, error) {
	fp, err := s.path(key)
	if err != nil {
		return false, err
	}
	if err = os.Remove(fp); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "removing %s", key)
	}
	return true, nil
}

// ResolveURL returns a file:// URL unless a public base URL is configured.
func (s *Local) ResolveURL(key string) string {
	if s.baseURL == "" {
		return "file://" + filepath.ToSlash(filepath.Join(s.root, filepath.FromSlash(key)))
	}
	return s.baseURL + "/" + key
}
