package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SecgPower/cloudpan/storage"
)

func TestCreateFolderAndResolve(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	tree := NewStorageTree(db, store)
	user := seedUser(t, db, "alice")

	docs, err := tree.CreateFolder(user.ID, nil, "docs")
	require.NoError(t, err)
	assert.Nil(t, docs.ParentID)
	assert.True(t, store.Exists(storage.FolderDir(user.ID, docs.ID)))

	work, err := tree.CreateFolder(user.ID, ref(docs.ID), "work")
	require.NoError(t, err)

	current, subfolders, files, err := tree.Resolve(user.ID, ref(docs.ID))
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "docs", current.Name)
	require.Len(t, subfolders, 1)
	assert.Equal(t, work.ID, subfolders[0].ID)
	assert.Empty(t, files)

	// Root view shows only the top-level folder.
	current, subfolders, _, err = tree.Resolve(user.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, current)
	require.Len(t, subfolders, 1)
	assert.Equal(t, docs.ID, subfolders[0].ID)
}

func TestResolveForeignFolderIsNotFound(t *testing.T) {
	db := newTestDB(t)
	tree := NewStorageTree(db, newTestStore(t))
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	secret, err := tree.CreateFolder(alice.ID, nil, "secret")
	require.NoError(t, err)

	_, _, _, err = tree.Resolve(bob.ID, ref(secret.ID))
	assert.True(t, IsKind(err, KindNotFound))

	// Nonexistent id reads the same as a foreign one.
	_, _, _, err = tree.Resolve(bob.ID, ref(99999))
	assert.True(t, IsKind(err, KindNotFound))
}

func TestCreateFolderSiblingConflict(t *testing.T) {
	db := newTestDB(t)
	tree := NewStorageTree(db, newTestStore(t))
	user := seedUser(t, db, "alice")

	_, err := tree.CreateFolder(user.ID, nil, "docs")
	require.NoError(t, err)

	_, err = tree.CreateFolder(user.ID, nil, "docs")
	assert.True(t, IsKind(err, KindConflict))

	// The same name is fine under a different parent.
	parent, err := tree.CreateFolder(user.ID, nil, "other")
	require.NoError(t, err)
	_, err = tree.CreateFolder(user.ID, ref(parent.ID), "docs")
	assert.NoError(t, err)

	// And fine for a different user at the root.
	bob := seedUser(t, db, "bob")
	_, err = tree.CreateFolder(bob.ID, nil, "docs")
	assert.NoError(t, err)
}

func TestBreadcrumbsRootFirst(t *testing.T) {
	db := newTestDB(t)
	tree := NewStorageTree(db, newTestStore(t))
	user := seedUser(t, db, "alice")

	a, err := tree.CreateFolder(user.ID, nil, "a")
	require.NoError(t, err)
	b, err := tree.CreateFolder(user.ID, ref(a.ID), "b")
	require.NoError(t, err)
	c, err := tree.CreateFolder(user.ID, ref(b.ID), "c")
	require.NoError(t, err)

	crumbs, err := tree.Breadcrumbs(c)
	require.NoError(t, err)
	require.Len(t, crumbs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{crumbs[0].Name, crumbs[1].Name, crumbs[2].Name})
}

func TestRenameFileMovesBytes(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	tree := NewStorageTree(db, store)
	quota := NewQuotaLedger(db, store, 1<<20)
	user := seedUser(t, db, "alice")

	file := mustUpload(t, quota, user.ID, nil, "old.txt", "hello")
	oldLocator := file.Filepath

	renamed, err := tree.RenameFile(user.ID, file.ID, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "new.txt", renamed.Filename)
	assert.False(t, store.Exists(oldLocator))
	assert.True(t, store.Exists(renamed.Filepath))
}

func TestRenameFileSiblingConflict(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	tree := NewStorageTree(db, store)
	quota := NewQuotaLedger(db, store, 1<<20)
	user := seedUser(t, db, "alice")

	mustUpload(t, quota, user.ID, nil, "a.txt", "aa")
	b := mustUpload(t, quota, user.ID, nil, "b.txt", "bb")

	_, err := tree.RenameFile(user.ID, b.ID, "a.txt")
	assert.True(t, IsKind(err, KindConflict))

	// The failed rename left both objects where they were.
	assert.True(t, store.Exists(storage.FileLocator(user.ID, nil, "a.txt")))
	assert.True(t, store.Exists(storage.FileLocator(user.ID, nil, "b.txt")))
}

func TestRenameFolderRecordOnly(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	tree := NewStorageTree(db, store)
	user := seedUser(t, db, "alice")

	folder, err := tree.CreateFolder(user.ID, nil, "docs")
	require.NoError(t, err)
	dir := storage.FolderDir(user.ID, folder.ID)

	renamed, err := tree.RenameFolder(user.ID, folder.ID, "papers")
	require.NoError(t, err)
	assert.Equal(t, "papers", renamed.Name)
	// Directories are keyed by id, so the physical path is unchanged.
	assert.True(t, store.Exists(dir))
}

func TestMoveFile(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	tree := NewStorageTree(db, store)
	quota := NewQuotaLedger(db, store, 1<<20)
	user := seedUser(t, db, "alice")

	folder, err := tree.CreateFolder(user.ID, nil, "docs")
	require.NoError(t, err)
	file := mustUpload(t, quota, user.ID, nil, "a.txt", "hello")

	moved, err := tree.MoveFile(user.ID, file.ID, ref(folder.ID))
	require.NoError(t, err)
	require.NotNil(t, moved.FolderID)
	assert.Equal(t, folder.ID, *moved.FolderID)
	assert.True(t, store.Exists(storage.FileLocator(user.ID, ref(folder.ID), "a.txt")))
	assert.False(t, store.Exists(storage.FileLocator(user.ID, nil, "a.txt")))

	// Moving back to the root works the same way.
	back, err := tree.MoveFile(user.ID, file.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, back.FolderID)
	assert.True(t, store.Exists(storage.FileLocator(user.ID, nil, "a.txt")))
}

func TestMoveFileDestinationConflict(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	tree := NewStorageTree(db, store)
	quota := NewQuotaLedger(db, store, 1<<20)
	user := seedUser(t, db, "alice")

	folder, err := tree.CreateFolder(user.ID, nil, "docs")
	require.NoError(t, err)
	mustUpload(t, quota, user.ID, ref(folder.ID), "a.txt", "in folder")
	rootFile := mustUpload(t, quota, user.ID, nil, "a.txt", "at root")

	_, err = tree.MoveFile(user.ID, rootFile.ID, ref(folder.ID))
	assert.True(t, IsKind(err, KindConflict))
	assert.True(t, store.Exists(storage.FileLocator(user.ID, nil, "a.txt")))
}

func TestRecentFilesNewestFirst(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	tree := NewStorageTree(db, store)
	quota := NewQuotaLedger(db, store, 1<<20)
	user := seedUser(t, db, "alice")

	mustUpload(t, quota, user.ID, nil, "first.txt", "1")
	mustUpload(t, quota, user.ID, nil, "second.txt", "2")
	third := mustUpload(t, quota, user.ID, nil, "third.txt", "3")

	files, err := tree.RecentFiles(user.ID, 2)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, third.ID, files[0].ID)
}
