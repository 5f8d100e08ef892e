package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/storage"
)

func TestSaveUploadChargesMeasuredSize(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	quota := NewQuotaLedger(db, store, 100)
	user := seedUser(t, db, "alice")

	file, err := quota.SaveUpload(user.ID, nil, "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), file.Filesize)
	assert.Equal(t, int64(5), usedBytes(t, db, user.ID))
	assert.True(t, store.Exists(file.Filepath))

	size, err := store.Size(file.Filepath)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func TestSaveUploadQuotaExceededLeavesNothingBehind(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	quota := NewQuotaLedger(db, store, 10)
	user := seedUser(t, db, "alice")

	mustUpload(t, quota, user.ID, nil, "a.txt", "12345")

	_, err := quota.SaveUpload(user.ID, nil, "b.txt", strings.NewReader("1234567"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindQuotaExceeded))

	// The failed upload changed nothing: counter, records and disk.
	assert.Equal(t, int64(5), usedBytes(t, db, user.ID))
	assert.False(t, store.Exists(storage.FileLocator(user.ID, nil, "b.txt")))
	var count int64
	require.NoError(t, db.Model(&models.File{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSaveUploadExactFitSucceeds(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	quota := NewQuotaLedger(db, store, 10)
	user := seedUser(t, db, "alice")

	mustUpload(t, quota, user.ID, nil, "a.txt", "12345")
	mustUpload(t, quota, user.ID, nil, "b.txt", "67890")
	assert.Equal(t, int64(10), usedBytes(t, db, user.ID))

	// The cap is now fully consumed: even one more byte is rejected.
	_, err := quota.SaveUpload(user.ID, nil, "c.txt", strings.NewReader("x"))
	assert.True(t, IsKind(err, KindQuotaExceeded))
}

func TestSaveUploadSiblingConflict(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	quota := NewQuotaLedger(db, store, 100)
	user := seedUser(t, db, "alice")

	mustUpload(t, quota, user.ID, nil, "a.txt", "one")
	_, err := quota.SaveUpload(user.ID, nil, "a.txt", strings.NewReader("two"))
	assert.True(t, IsKind(err, KindConflict))

	// The original bytes survived the rejected duplicate.
	reader, err := store.Open(storage.FileLocator(user.ID, nil, "a.txt"))
	require.NoError(t, err)
	defer reader.Close()
	buf := make([]byte, 8)
	n, _ := reader.Read(buf)
	assert.Equal(t, "one", string(buf[:n]))
}

func TestSaveUploadSameNameDifferentFolders(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	tree := NewStorageTree(db, store)
	quota := NewQuotaLedger(db, store, 100)
	user := seedUser(t, db, "alice")

	folder, err := tree.CreateFolder(user.ID, nil, "docs")
	require.NoError(t, err)

	mustUpload(t, quota, user.ID, nil, "a.txt", "root copy")
	mustUpload(t, quota, user.ID, ref(folder.ID), "a.txt", "folder copy")

	assert.True(t, store.Exists(storage.FileLocator(user.ID, nil, "a.txt")))
	assert.True(t, store.Exists(storage.FileLocator(user.ID, ref(folder.ID), "a.txt")))
}

func TestSaveUploadUnknownFolder(t *testing.T) {
	db := newTestDB(t)
	quota := NewQuotaLedger(db, newTestStore(t), 100)
	user := seedUser(t, db, "alice")

	_, err := quota.SaveUpload(user.ID, ref(4242), "a.txt", strings.NewReader("x"))
	assert.True(t, IsKind(err, KindNotFound))
}

func TestReleaseClampsAtZero(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	quota := NewQuotaLedger(db, store, 100)
	user := seedUser(t, db, "alice")

	mustUpload(t, quota, user.ID, nil, "a.txt", "abc")
	require.NoError(t, quota.releaseTx(db, user.ID, 1000))
	assert.Equal(t, int64(0), usedBytes(t, db, user.ID))
}

func TestUsageReportsCounterAndCap(t *testing.T) {
	db := newTestDB(t)
	quota := NewQuotaLedger(db, newTestStore(t), 4<<30)
	user := seedUser(t, db, "alice")

	used, capacity, err := quota.Usage(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
	assert.Equal(t, int64(4<<30), capacity)

	_, _, err = quota.Usage(999)
	assert.True(t, IsKind(err, KindNotFound))
}
