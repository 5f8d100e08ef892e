package services

import (
	"errors"
	"os"

	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/storage"
)

// Lifecycle sequences deletions across the relational store and the byte
// store so neither side is left with orphans the other still references.
// The write order is always: physical removal first, logical commit second.
// When a physical step fails the logical records stay put and the caller
// can retry; deletion is never silently partial.
type Lifecycle struct {
	db    *gorm.DB
	store storage.Store
	quota *QuotaLedger
}

// NewLifecycle creates a Lifecycle manager.
func NewLifecycle(db *gorm.DB, store storage.Store, quota *QuotaLedger) *Lifecycle {
	return &Lifecycle{db: db, store: store, quota: quota}
}

// DeleteFile removes a file the actor owns. The record is only dropped
// when the physical object was removed or was already absent, so a failed
// removal can be retried.
func (l *Lifecycle) DeleteFile(actorID, fileID uint) error {
	var file models.File
	err := l.db.Where("id = ? AND user_id = ?", fileID, actorID).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("file")
	}
	if err != nil {
		return err
	}
	return l.deleteFileRecord(&file)
}

// AdminDeleteFile removes any user's file; the admin guard has already
// authorized the actor.
func (l *Lifecycle) AdminDeleteFile(fileID uint) error {
	var file models.File
	err := l.db.First(&file, fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("file")
	}
	if err != nil {
		return err
	}
	return l.deleteFileRecord(&file)
}

func (l *Lifecycle) deleteFileRecord(file *models.File) error {
	if err := l.store.Remove(file.Filepath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return physicalIO("file", err)
	}
	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.File{}, file.ID).Error; err != nil {
			return err
		}
		return l.quota.releaseTx(tx, file.UserID, file.Filesize)
	})
}

// DeleteFolder removes a folder the actor owns together with every
// descendant folder and file, then settles the quota by the full subtree
// total, not just the direct children.
func (l *Lifecycle) DeleteFolder(actorID, folderID uint) error {
	var folder models.Folder
	err := l.db.Where("id = ? AND user_id = ?", folderID, actorID).First(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("folder")
	}
	if err != nil {
		return err
	}

	folders, files, err := l.collectSubtree(folder.UserID, folder.ID)
	if err != nil {
		return err
	}

	// Physical subtrees first: each folder owns one directory named by its
	// id. Any failure aborts before the records are touched.
	for _, f := range folders {
		if err := l.store.RemoveDir(storage.FolderDir(f.UserID, f.ID)); err != nil {
			return physicalIO("folder directory", err)
		}
	}
	var freed int64
	fileIDs := make([]uint, 0, len(files))
	for _, f := range files {
		freed += f.Filesize
		fileIDs = append(fileIDs, f.ID)
	}
	folderIDs := make([]uint, 0, len(folders))
	for _, f := range folders {
		folderIDs = append(folderIDs, f.ID)
	}

	return l.db.Transaction(func(tx *gorm.DB) error {
		if len(fileIDs) > 0 {
			if err := tx.Delete(&models.File{}, fileIDs).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.Folder{}, folderIDs).Error; err != nil {
			return err
		}
		if freed > 0 {
			return l.quota.releaseTx(tx, folder.UserID, freed)
		}
		return nil
	})
}

// DeleteUser destroys an account and everything it owns: files, folders,
// the physical user directory, the avatar, and finally the user row. The
// logical deletes run in one transaction, so the caller observes either a
// fully removed account or an unchanged one.
func (l *Lifecycle) DeleteUser(userID uint) error {
	var user models.User
	err := l.db.First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("user")
	}
	if err != nil {
		return err
	}

	if err := l.store.RemoveDir(storage.UserDir(user.ID)); err != nil {
		return physicalIO("user directory", err)
	}
	if user.AvatarPath != "" {
		if err := os.Remove(user.AvatarPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return physicalIO("avatar", err)
		}
	}

	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Folder{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, user.ID).Error
	})
}

// collectSubtree gathers the folder (inclusive) and file records of a
// subtree with an explicit breadth-first walk over parent links; nothing
// here relies on the ORM cascading for us.
func (l *Lifecycle) collectSubtree(userID, rootID uint) ([]models.Folder, []models.File, error) {
	var folders []models.Folder
	frontier := []uint{rootID}

	var root models.Folder
	if err := l.db.Where("id = ? AND user_id = ?", rootID, userID).First(&root).Error; err != nil {
		return nil, nil, err
	}
	folders = append(folders, root)

	for len(frontier) > 0 {
		var children []models.Folder
		if err := l.db.Where("user_id = ? AND parent_id IN ?", userID, frontier).Find(&children).Error; err != nil {
			return nil, nil, err
		}
		frontier = frontier[:0]
		for _, c := range children {
			folders = append(folders, c)
			frontier = append(frontier, c.ID)
		}
	}

	ids := make([]uint, 0, len(folders))
	for _, f := range folders {
		ids = append(ids, f.ID)
	}
	var files []models.File
	if err := l.db.Where("user_id = ? AND folder_id IN ?", userID, ids).Find(&files).Error; err != nil {
		return nil, nil, err
	}
	return folders, files, nil
}
