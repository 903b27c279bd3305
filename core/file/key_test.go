package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewKey(t *testing.T) {
	orig := uuidFunc
	uuidFunc = func() string { return "f47ac10b" }
	defer func() { uuidFunc = orig }()

	at := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "uploads/2026/02/f47ac10b.pdf", NewKey(at, "Report.PDF"))
	assert.Equal(t, "uploads/2026/02/f47ac10b.jpg", NewKey(at, `C:\scans\id.jpg`))
	assert.Equal(t, "uploads/2026/02/f47ac10b", NewKey(at, "README"))
	assert.Equal(t, "uploads/2026/02/f47ac10b", NewKey(at, "x.averyveryverylongext"))
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("uploads/2026/02/a.pdf"))
	for _, key := range []string{"", "/abs", "a/../b", `a\b`} {
		assert.Equal(t, ErrInvalidKey, ValidateKey(key), key)
	}
}
