package services

import (
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/storage"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps all sessions on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Folder{}, &models.File{}, &models.FileShare{}, &models.FolderShare{}))
	return db
}

func newTestStore(t *testing.T) *storage.DiskStore {
	t.Helper()
	store, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Confirmed: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func mustUpload(t *testing.T, q *QuotaLedger, userID uint, folderID *uint, name, content string) *models.File {
	t.Helper()
	file, err := q.SaveUpload(userID, folderID, name, strings.NewReader(content))
	require.NoError(t, err)
	return file
}

func usedBytes(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, userID).Error)
	return user.TotalStorageUsed
}

func ref(id uint) *uint { return &id }
