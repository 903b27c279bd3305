package file_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/file"
	"github.com/trezcool/academia/testutil"
)

func TestService_Upload(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	instructor := env.CreateInstructor(t, "sergeant")

	obj, err := env.Files.Upload(ctx, instructor, file.Upload{Name: "syllabus.PDF", ContentType: "application/pdf", Data: []byte("%PDF-1.7")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Key, "uploads/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".pdf"))
	assert.Equal(t, "syllabus.PDF", obj.OriginalName)
	assert.Equal(t, int64(8), obj.Size)
	assert.Equal(t, env.Storage.ResolveURL(obj.Key), obj.URL)
	assert.Equal(t, instructor.ID, obj.UploadedBy)

	got, data, err := env.Files.Open(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, obj.ID, got.ID)
	assert.Equal(t, []byte("%PDF-1.7"), data)

	obj, err = env.Files.Upload(ctx, instructor, file.Upload{Name: "blob", Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", obj.ContentType)

	var vErr *core.ValidationError
	_, err = env.Files.Upload(ctx, instructor, file.Upload{Name: "empty.txt"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "file", vErr.Fields[0].Field)

	tooBig := make([]byte, env.Conf.Server.MaxUploadSize+1)
	_, err = env.Files.Upload(ctx, instructor, file.Upload{Name: "big.bin", Data: tooBig})
	require.ErrorAs(t, err, &vErr)

	entries, err := env.Audit.Query(ctx, audit.QueryFilter{Action: audit.ActionFileUploaded})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	owner := env.CreateInstructor(t, "owner")
	other := env.CreateInstructor(t, "other")
	admin := env.CreateAdmin(t, "admin")

	upload := func() file.Object {
		obj, err := env.Files.Upload(ctx, owner, file.Upload{Name: "notes.txt", Data: []byte("notes")})
		require.NoError(t, err)
		return obj
	}

	obj := upload()
	err := env.Files.Delete(ctx, other, obj.ID)
	assert.True(t, core.IsPermissionDenied(err))

	require.NoError(t, env.Files.Delete(ctx, owner, obj.ID))
	_, err = env.Files.Get(ctx, obj.ID)
	assert.Equal(t, file.ErrNotFound, err)
	_, err = env.Storage.Download(ctx, obj.Key)
	assert.Equal(t, file.ErrNotFound, err)

	obj = upload()
	require.NoError(t, env.Files.Delete(ctx, admin, obj.ID))

	assert.Equal(t, file.ErrNotFound, env.Files.Delete(ctx, admin, obj.ID))
}
