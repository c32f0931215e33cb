package localfs

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "grant_application_s1.txt", strings.NewReader("draft v1")))
	require.NoError(t, store.Save(ctx, "grant_application_s1.txt", strings.NewReader("draft v2")))

	rc, err := store.Open(ctx, "grant_application_s1.txt")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "draft v2", string(body))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestRejectsKeysOutsideBase(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape.txt", "nested/file.txt", ".hidden"} {
		err := store.Save(context.Background(), key, strings.NewReader("x"))
		assert.Error(t, err, "key %q", key)
	}
}
