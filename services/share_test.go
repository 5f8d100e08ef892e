package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SecgPower/cloudpan/models"
)

func newShareFixture(t *testing.T) (*ShareRegistry, *StorageTree, *QuotaLedger, *models.User) {
	t.Helper()
	db := newTestDB(t)
	store := newTestStore(t)
	tree := NewStorageTree(db, store)
	quota := NewQuotaLedger(db, store, 1<<20)
	return NewShareRegistry(db, tree), tree, quota, seedUser(t, db, "alice")
}

func TestFileShareLifetimeBoundary(t *testing.T) {
	shares, _, quota, user := newShareFixture(t)
	file := mustUpload(t, quota, user.ID, nil, "a.txt", "hello")

	share, err := shares.CreateFileShare(user.ID, file.ID, 1)
	require.NoError(t, err)
	created := share.CreatedTime

	// One minute before expiry the link still resolves.
	shares.now = func() time.Time { return created.Add(59 * time.Minute) }
	_, got, err := shares.ResolveFileShare(share.ShareCode)
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)

	// One minute past expiry it reads as expired, not as missing.
	shares.now = func() time.Time { return created.Add(61 * time.Minute) }
	_, _, err = shares.ResolveFileShare(share.ShareCode)
	assert.True(t, IsKind(err, KindExpired))
}

func TestCreateShareDefaultsTo24Hours(t *testing.T) {
	shares, _, quota, user := newShareFixture(t)
	file := mustUpload(t, quota, user.ID, nil, "a.txt", "hello")

	share, err := shares.CreateFileShare(user.ID, file.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 24, share.ExpiresIn)
}

func TestCreateShareForeignFileNotFound(t *testing.T) {
	shares, _, quota, user := newShareFixture(t)
	file := mustUpload(t, quota, user.ID, nil, "a.txt", "hello")

	bob := seedUser(t, shares.db, "bob")
	_, err := shares.CreateFileShare(bob.ID, file.ID, 1)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestResolveUnknownCode(t *testing.T) {
	shares, _, _, _ := newShareFixture(t)
	_, _, err := shares.ResolveFileShare("no-such-code")
	assert.True(t, IsKind(err, KindNotFound))
}

func TestRevokeFileShareIdempotent(t *testing.T) {
	shares, _, quota, user := newShareFixture(t)
	file := mustUpload(t, quota, user.ID, nil, "a.txt", "hello")

	share, err := shares.CreateFileShare(user.ID, file.ID, 24)
	require.NoError(t, err)

	require.NoError(t, shares.RevokeFileShare(user.ID, share.ID))
	// A second revocation is a quiet no-op.
	require.NoError(t, shares.RevokeFileShare(user.ID, share.ID))

	_, _, err = shares.ResolveFileShare(share.ShareCode)
	assert.True(t, IsKind(err, KindExpired))

	// The row itself survives for the share history.
	var stored models.FileShare
	require.NoError(t, shares.db.First(&stored, share.ID).Error)
	assert.False(t, stored.IsActive)
}

func TestRevokeByNonOwnerForbidden(t *testing.T) {
	shares, _, quota, user := newShareFixture(t)
	file := mustUpload(t, quota, user.ID, nil, "a.txt", "hello")

	share, err := shares.CreateFileShare(user.ID, file.ID, 24)
	require.NoError(t, err)

	bob := seedUser(t, shares.db, "bob")
	err = shares.RevokeFileShare(bob.ID, share.ID)
	assert.True(t, IsKind(err, KindForbidden))

	// The share is still live for everyone.
	_, _, err = shares.ResolveFileShare(share.ShareCode)
	assert.NoError(t, err)
}

func TestResolveShareWithDeletedTarget(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	tree := NewStorageTree(db, store)
	quota := NewQuotaLedger(db, store, 1<<20)
	shares := NewShareRegistry(db, tree)
	lifecycle := NewLifecycle(db, store, quota)
	user := seedUser(t, db, "alice")

	file := mustUpload(t, quota, user.ID, nil, "a.txt", "hello")
	share, err := shares.CreateFileShare(user.ID, file.ID, 24)
	require.NoError(t, err)

	require.NoError(t, lifecycle.DeleteFile(user.ID, file.ID))

	_, _, err = shares.ResolveFileShare(share.ShareCode)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestFolderShareExposesImmediateChildrenOnly(t *testing.T) {
	shares, tree, quota, user := newShareFixture(t)

	docs, err := tree.CreateFolder(user.ID, nil, "docs")
	require.NoError(t, err)
	nested, err := tree.CreateFolder(user.ID, ref(docs.ID), "nested")
	require.NoError(t, err)
	mustUpload(t, quota, user.ID, ref(docs.ID), "direct.txt", "d")
	mustUpload(t, quota, user.ID, ref(nested.ID), "deep.txt", "x")

	share, err := shares.CreateFolderShare(user.ID, docs.ID, 24)
	require.NoError(t, err)

	folder, subfolders, files, err := shares.ResolveFolderShare(share.ShareCode)
	require.NoError(t, err)
	assert.Equal(t, docs.ID, folder.ID)
	require.Len(t, subfolders, 1)
	assert.Equal(t, nested.ID, subfolders[0].ID)
	require.Len(t, files, 1)
	assert.Equal(t, "direct.txt", files[0].Filename)
}

func TestFolderShareRevocation(t *testing.T) {
	shares, tree, _, user := newShareFixture(t)

	docs, err := tree.CreateFolder(user.ID, nil, "docs")
	require.NoError(t, err)
	share, err := shares.CreateFolderShare(user.ID, docs.ID, 24)
	require.NoError(t, err)

	require.NoError(t, shares.RevokeFolderShare(user.ID, share.ID))
	_, _, _, err = shares.ResolveFolderShare(share.ShareCode)
	assert.True(t, IsKind(err, KindExpired))
}

func TestOwnedSharesIncludesRevoked(t *testing.T) {
	shares, tree, quota, user := newShareFixture(t)

	file := mustUpload(t, quota, user.ID, nil, "a.txt", "hello")
	docs, err := tree.CreateFolder(user.ID, nil, "docs")
	require.NoError(t, err)

	fs, err := shares.CreateFileShare(user.ID, file.ID, 24)
	require.NoError(t, err)
	_, err = shares.CreateFolderShare(user.ID, docs.ID, 24)
	require.NoError(t, err)
	require.NoError(t, shares.RevokeFileShare(user.ID, fs.ID))

	fileShares, folderShares, err := shares.OwnedShares(user.ID)
	require.NoError(t, err)
	require.Len(t, fileShares, 1)
	assert.False(t, fileShares[0].IsActive)
	assert.Equal(t, "a.txt", fileShares[0].File.Filename)
	require.Len(t, folderShares, 1)
	assert.Equal(t, "docs", folderShares[0].Folder.Name)
}
