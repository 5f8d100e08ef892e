package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLocatorLayout(t *testing.T) {
	assert.Equal(t, "7/report.pdf", FileLocator(7, nil, "report.pdf"))
	folderID := uint(42)
	assert.Equal(t, "7/42/report.pdf", FileLocator(7, &folderID, "report.pdf"))
	assert.Equal(t, "7/42", FolderDir(7, 42))
	assert.Equal(t, "7", UserDir(7))
}

func TestDiskStoreWriteOpenRemove(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	n, err := store.Write("1/a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.True(t, store.Exists("1/a.txt"))

	size, err := store.Size("1/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	r, err := store.Open("1/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Remove("1/a.txt"))
	assert.False(t, store.Exists("1/a.txt"))
}

func TestDiskStoreWriteCreatesParents(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Write("3/12/deep.txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, store.Exists("3/12"))
	assert.True(t, store.Exists("3/12/deep.txt"))
}

func TestDiskStoreRenameAcrossDirs(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Write("1/a.txt", strings.NewReader("move me"))
	require.NoError(t, err)

	require.NoError(t, store.Rename("1/a.txt", "1/9/a.txt"))
	assert.False(t, store.Exists("1/a.txt"))
	assert.True(t, store.Exists("1/9/a.txt"))
}

func TestDiskStoreRemoveDir(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Write("1/5/a.txt", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = store.Write("1/5/b.txt", strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, store.RemoveDir("1/5"))
	assert.False(t, store.Exists("1/5"))

	// Removing an absent directory is quiet.
	require.NoError(t, store.RemoveDir("1/5"))
}

func TestDiskStoreWriteTruncatesLimitedStream(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	n, err := store.Write("1/capped.txt", io.LimitReader(strings.NewReader("0123456789"), 4))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
