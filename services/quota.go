package services

import (
	"errors"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/storage"
)

// QuotaLedger enforces the per-user storage cap. The used counter is only
// ever moved with conditional in-database arithmetic, so concurrent uploads
// cannot push a user past capacity through a read-modify-write race.
type QuotaLedger struct {
	db       *gorm.DB
	store    storage.Store
	capacity int64
}

// NewQuotaLedger creates a ledger with the given per-user capacity in bytes.
func NewQuotaLedger(db *gorm.DB, store storage.Store, capacity int64) *QuotaLedger {
	return &QuotaLedger{db: db, store: store, capacity: capacity}
}

// Capacity returns the fixed per-user cap.
func (q *QuotaLedger) Capacity() int64 { return q.capacity }

// Remaining returns the unused quota for a user.
func (q *QuotaLedger) Remaining(user *models.User) int64 {
	return q.capacity - user.TotalStorageUsed
}

// CanUpload reports whether size more bytes fit under the cap.
func (q *QuotaLedger) CanUpload(user *models.User, size int64) bool {
	return q.Remaining(user) >= size
}

// Usage reloads the current counter for a user.
func (q *QuotaLedger) Usage(userID uint) (used int64, capacity int64, err error) {
	var user models.User
	if err := q.db.Select("total_storage_used").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, notFound("user")
		}
		return 0, 0, err
	}
	return user.TotalStorageUsed, q.capacity, nil
}

// SaveUpload streams r into the byte store and commits the file record.
// The size is measured from the stream itself, never from a client claim.
// The used counter moves only after the physical write succeeded and inside
// the same transaction that commits the record; if the conditional
// increment finds no headroom the physical object is removed again and
// nothing is recorded.
func (q *QuotaLedger) SaveUpload(userID uint, folderID *uint, filename string, r io.Reader) (*models.File, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, conflictf("file", "file name must not be empty")
	}

	tree := NewStorageTree(q.db, q.store)
	if folderID != nil {
		if _, err := tree.Folder(userID, *folderID); err != nil {
			return nil, err
		}
	}
	if taken, err := tree.fileNameTaken(userID, folderID, filename, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, conflictf("file", "file %q already exists", filename)
	}

	var user models.User
	if err := q.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user")
		}
		return nil, err
	}
	remaining := q.Remaining(&user)
	if remaining < 0 {
		remaining = 0
	}

	// Cap the copy one byte past the remaining quota: a stream that still
	// has data at that point cannot fit, whatever the client claimed.
	locator := storage.FileLocator(userID, folderID, filename)
	written, err := q.store.Write(locator, io.LimitReader(r, remaining+1))
	if err != nil {
		return nil, physicalIO("file", err)
	}
	if written > remaining {
		_ = q.store.Remove(locator)
		return nil, quotaExceeded(written, remaining)
	}

	file := models.File{
		Filename: filename,
		Filepath: locator,
		Filesize: written,
		UserID:   userID,
		FolderID: folderID,
	}
	err = q.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&file).Error; err != nil {
			if isDuplicateErr(err) {
				return conflictf("file", "file %q already exists", filename)
			}
			return err
		}
		return q.chargeTx(tx, userID, written)
	})
	if err != nil {
		_ = q.store.Remove(locator)
		return nil, err
	}
	return &file, nil
}

// chargeTx conditionally adds size bytes to the user's counter, failing
// with QuotaExceeded when the result would overshoot the cap.
func (q *QuotaLedger) chargeTx(tx *gorm.DB, userID uint, size int64) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND total_storage_used + ? <= ?", userID, size, q.capacity).
		Update("total_storage_used", gorm.Expr("total_storage_used + ?", size))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return quotaExceeded(size, 0)
	}
	return nil
}

// releaseTx subtracts size bytes, clamping at zero so a stray double
// release can never drive the counter negative.
func (q *QuotaLedger) releaseTx(tx *gorm.DB, userID uint, size int64) error {
	return tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("total_storage_used", gorm.Expr(
			"CASE WHEN total_storage_used >= ? THEN total_storage_used - ? ELSE 0 END", size, size)).Error
}
