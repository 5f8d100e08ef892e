package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/storage"
)

type lifecycleFixture struct {
	db        *gorm.DB
	store     *storage.DiskStore
	tree      *StorageTree
	quota     *QuotaLedger
	lifecycle *Lifecycle
	user      *models.User
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	db := newTestDB(t)
	store := newTestStore(t)
	quota := NewQuotaLedger(db, store, 1<<20)
	return &lifecycleFixture{
		db:        db,
		store:     store,
		tree:      NewStorageTree(db, store),
		quota:     quota,
		lifecycle: NewLifecycle(db, store, quota),
		user:      seedUser(t, db, "alice"),
	}
}

func (f *lifecycleFixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where("user_id = ?", f.user.ID).Count(&n).Error)
	return n
}

func TestDeleteFileRefundsQuota(t *testing.T) {
	f := newLifecycleFixture(t)
	file := mustUpload(t, f.quota, f.user.ID, nil, "a.txt", "hello")
	require.Equal(t, int64(5), usedBytes(t, f.db, f.user.ID))

	require.NoError(t, f.lifecycle.DeleteFile(f.user.ID, file.ID))

	assert.Equal(t, int64(0), usedBytes(t, f.db, f.user.ID))
	assert.False(t, f.store.Exists(file.Filepath))
	assert.Equal(t, int64(0), f.count(t, &models.File{}))
}

func TestDeleteFileNotOwned(t *testing.T) {
	f := newLifecycleFixture(t)
	file := mustUpload(t, f.quota, f.user.ID, nil, "a.txt", "hello")

	bob := seedUser(t, f.db, "bob")
	err := f.lifecycle.DeleteFile(bob.ID, file.ID)
	assert.True(t, IsKind(err, KindNotFound))

	// Nothing was touched.
	assert.True(t, f.store.Exists(file.Filepath))
	assert.Equal(t, int64(5), usedBytes(t, f.db, f.user.ID))
}

func TestDeleteFileWithMissingBytes(t *testing.T) {
	f := newLifecycleFixture(t)
	file := mustUpload(t, f.quota, f.user.ID, nil, "a.txt", "hello")
	require.NoError(t, f.store.Remove(file.Filepath))

	// An already absent physical object does not block the logical delete.
	require.NoError(t, f.lifecycle.DeleteFile(f.user.ID, file.ID))
	assert.Equal(t, int64(0), usedBytes(t, f.db, f.user.ID))
}

func TestDeleteFolderCascades(t *testing.T) {
	f := newLifecycleFixture(t)

	docs, err := f.tree.CreateFolder(f.user.ID, nil, "docs")
	require.NoError(t, err)
	sub, err := f.tree.CreateFolder(f.user.ID, ref(docs.ID), "sub")
	require.NoError(t, err)
	deep, err := f.tree.CreateFolder(f.user.ID, ref(sub.ID), "deep")
	require.NoError(t, err)

	mustUpload(t, f.quota, f.user.ID, ref(docs.ID), "top.txt", "aaa")
	mustUpload(t, f.quota, f.user.ID, ref(sub.ID), "mid.txt", "bbbb")
	mustUpload(t, f.quota, f.user.ID, ref(deep.ID), "leaf.txt", "ccccc")
	keeper := mustUpload(t, f.quota, f.user.ID, nil, "keep.txt", "zz")
	require.Equal(t, int64(14), usedBytes(t, f.db, f.user.ID))

	require.NoError(t, f.lifecycle.DeleteFolder(f.user.ID, docs.ID))

	// Exactly the subtree is gone: three folders, three files.
	assert.Equal(t, int64(0), f.count(t, &models.Folder{}))
	assert.Equal(t, int64(1), f.count(t, &models.File{}))
	assert.True(t, f.store.Exists(keeper.Filepath))
	assert.Equal(t, int64(2), usedBytes(t, f.db, f.user.ID))

	// The physical directories went with the records.
	assert.False(t, f.store.Exists(storage.FolderDir(f.user.ID, docs.ID)))
	assert.False(t, f.store.Exists(storage.FolderDir(f.user.ID, sub.ID)))
	assert.False(t, f.store.Exists(storage.FolderDir(f.user.ID, deep.ID)))
}

func TestDeleteFolderSiblingSubtreeSurvives(t *testing.T) {
	f := newLifecycleFixture(t)

	victim, err := f.tree.CreateFolder(f.user.ID, nil, "victim")
	require.NoError(t, err)
	survivor, err := f.tree.CreateFolder(f.user.ID, nil, "survivor")
	require.NoError(t, err)
	mustUpload(t, f.quota, f.user.ID, ref(survivor.ID), "keep.txt", "safe")

	require.NoError(t, f.lifecycle.DeleteFolder(f.user.ID, victim.ID))

	assert.Equal(t, int64(1), f.count(t, &models.Folder{}))
	assert.Equal(t, int64(1), f.count(t, &models.File{}))
	assert.True(t, f.store.Exists(storage.FileLocator(f.user.ID, ref(survivor.ID), "keep.txt")))
}

func TestAdminDeleteFileRefundsOwner(t *testing.T) {
	f := newLifecycleFixture(t)
	file := mustUpload(t, f.quota, f.user.ID, nil, "a.txt", "hello")

	require.NoError(t, f.lifecycle.AdminDeleteFile(file.ID))
	assert.Equal(t, int64(0), usedBytes(t, f.db, f.user.ID))
	assert.True(t, IsKind(f.lifecycle.AdminDeleteFile(file.ID), KindNotFound))
}

func TestDeleteUserRemovesEverything(t *testing.T) {
	f := newLifecycleFixture(t)

	docs, err := f.tree.CreateFolder(f.user.ID, nil, "docs")
	require.NoError(t, err)
	mustUpload(t, f.quota, f.user.ID, ref(docs.ID), "a.txt", "hello")
	mustUpload(t, f.quota, f.user.ID, nil, "b.txt", "world")

	bob := seedUser(t, f.db, "bob")
	bobFile := mustUpload(t, f.quota, bob.ID, nil, "bob.txt", "mine")

	require.NoError(t, f.lifecycle.DeleteUser(f.user.ID))

	var n int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(0), f.count(t, &models.File{}))
	assert.Equal(t, int64(0), f.count(t, &models.Folder{}))
	assert.False(t, f.store.Exists(storage.UserDir(f.user.ID)))

	// The other account is untouched.
	assert.True(t, f.store.Exists(bobFile.Filepath))
	assert.Equal(t, int64(4), usedBytes(t, f.db, bob.ID))
}

func TestDeleteUnknownUser(t *testing.T) {
	f := newLifecycleFixture(t)
	assert.True(t, IsKind(f.lifecycle.DeleteUser(9999), KindNotFound))
}
