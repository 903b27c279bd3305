package filestore

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/file"
	logsvc "github.com/trezcool/academia/services/logger"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewLocal(root, "http://files.test/")

	url, err := s.Upload(ctx, "uploads/2026/10/abc.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://files.test/uploads/2026/10/abc.pdf", url)
	assert.FileExists(t, filepath.Join(root, "uploads", "2026", "10", "abc.pdf"))

	data, err := s.Download(ctx, "uploads/2026/10/abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	ok, err := s.Delete(ctx, "uploads/2026/10/abc.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, "uploads/2026/10/abc.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Download(ctx, "uploads/2026/10/abc.pdf")
	assert.Equal(t, file.ErrNotFound, err)
}

func TestLocal_rejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewLocal(root, "")

	for _, key := range []string{"", "../secret", "uploads/../../etc/passwd", "/etc/passwd", `uploads\..\x`} {
		_, err := s.Upload(ctx, key, []byte("x"), "text/plain")
		assert.Equal(t, file.ErrInvalidKey, err, key)
		_, err = s.Download(ctx, key)
		assert.Equal(t, file.ErrInvalidKey, err, key)
		_, err = s.Delete(ctx, key)
		assert.Equal(t, file.ErrInvalidKey, err, key)
	}
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(root, "uploads", "a.txt")), s.ResolveURL("uploads/a.txt"))
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	ctx := context.Background()

	conf.Storage.Driver = DriverMinio
	conf.Storage.Bucket = ""
	s, err := New(ctx, conf, logger)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s, "object storage without bucket degrades to local")

	conf.Storage.Driver = "ftp"
	_, err = New(ctx, conf, logger)
	assert.Error(t, err)

	conf.Storage.Driver = DriverLocal
	conf.Storage.LocalRoot = os.TempDir()
	s, err = New(ctx, conf, logger)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)
}
