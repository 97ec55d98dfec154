package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
)

func TestStorage_SaveAndGet(t *testing.T) {
	store, err := NewStorage(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)
	ctx := context.Background()

	locator, err := store.Save(ctx, []byte("%PDF-1.7 test"), "documents", "report.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(locator, "file://"))

	data, err := store.Get(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 test"), data)
}

func TestStorage_GetMissingReturnsNotFound(t *testing.T) {
	store, err := NewStorage(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "file://documents/missing.pdf")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestStorage_GetRejectsUnknownLocator(t *testing.T) {
	store, err := NewStorage(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "s3://bucket/key")
	assert.Error(t, err)
}

func TestStorage_SaveStripsTraversal(t *testing.T) {
	root := t.TempDir()
	store, err := NewStorage(root, arbor.NewLogger())
	require.NoError(t, err)

	locator, err := store.Save(context.Background(), []byte("x"), "../outside", "../../escape.txt")
	require.NoError(t, err)

	data, err := store.Get(context.Background(), locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	_, err = os.Stat(filepath.Join(filepath.Dir(root), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}
