package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/storage"
)

// StorageTree maintains the per-user folder/file hierarchy and keeps the
// physical layout in lock-step with the logical records. Mutations follow a
// physical-first write order: when the byte-store step fails the record is
// never touched, so a crash can leave an orphaned physical object but never
// a record pointing at missing bytes.
type StorageTree struct {
	db    *gorm.DB
	store storage.Store
}

// NewStorageTree creates a StorageTree.
func NewStorageTree(db *gorm.DB, store storage.Store) *StorageTree {
	return &StorageTree{db: db, store: store}
}

// Resolve returns the target folder (nil for the root level) together with
// its immediate subfolders and files. Folders that do not exist and folders
// owned by another user both come back as "folder not found".
func (t *StorageTree) Resolve(userID uint, folderID *uint) (*models.Folder, []models.Folder, []models.File, error) {
	var current *models.Folder
	if folderID != nil {
		var folder models.Folder
		err := t.db.Where("id = ? AND user_id = ?", *folderID, userID).First(&folder).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, notFound("folder")
		}
		if err != nil {
			return nil, nil, nil, err
		}
		current = &folder
	}

	subfolders, files, err := t.listChildren(userID, folderID)
	if err != nil {
		return nil, nil, nil, err
	}
	return current, subfolders, files, nil
}

// listChildren is the owner-scoped listing shared by the authenticated view
// and resolved folder shares.
func (t *StorageTree) listChildren(userID uint, folderID *uint) ([]models.Folder, []models.File, error) {
	var subfolders []models.Folder
	q := t.db.Where("user_id = ?", userID).Order("name")
	if folderID != nil {
		q = q.Where("parent_id = ?", *folderID)
	} else {
		q = q.Where("parent_id IS NULL")
	}
	if err := q.Find(&subfolders).Error; err != nil {
		return nil, nil, err
	}

	var files []models.File
	q = t.db.Where("user_id = ?", userID).Order("filename")
	if folderID != nil {
		q = q.Where("folder_id = ?", *folderID)
	} else {
		q = q.Where("folder_id IS NULL")
	}
	if err := q.Find(&files).Error; err != nil {
		return nil, nil, err
	}
	return subfolders, files, nil
}

// Breadcrumbs walks parent links up to the root and returns the path
// ordered root first. The root level itself has an empty path.
func (t *StorageTree) Breadcrumbs(folder *models.Folder) ([]models.Folder, error) {
	var crumbs []models.Folder
	current := folder
	for current != nil {
		crumbs = append([]models.Folder{*current}, crumbs...)
		if current.ParentID == nil {
			break
		}
		var parent models.Folder
		err := t.db.Where("id = ? AND user_id = ?", *current.ParentID, folder.UserID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("folder")
		}
		if err != nil {
			return nil, err
		}
		current = &parent
	}
	return crumbs, nil
}

// CreateFolder inserts the record and then creates the matching physical
// directory {root}/{userID}/{folderID}.
func (t *StorageTree) CreateFolder(userID uint, parentID *uint, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, conflictf("folder", "folder name must not be empty")
	}

	if parentID != nil {
		var parent models.Folder
		err := t.db.Where("id = ? AND user_id = ?", *parentID, userID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("folder")
		}
		if err != nil {
			return nil, err
		}
	}

	if taken, err := t.folderNameTaken(userID, parentID, name, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, conflictf("folder", "folder %q already exists", name)
	}

	folder := models.Folder{Name: name, ParentID: parentID, UserID: userID}
	if err := t.db.Create(&folder).Error; err != nil {
		// The composite unique index backstops the pre-insert check under
		// concurrent creates.
		if isDuplicateErr(err) {
			return nil, conflictf("folder", "folder %q already exists", name)
		}
		return nil, err
	}

	if err := t.store.MkdirAll(storage.FolderDir(userID, folder.ID)); err != nil {
		// Roll the record back rather than keep a folder with no directory.
		_ = t.db.Delete(&models.Folder{}, folder.ID).Error
		return nil, physicalIO("folder directory", err)
	}
	return &folder, nil
}

// File fetches an owner-scoped file record.
func (t *StorageTree) File(userID, fileID uint) (*models.File, error) {
	var file models.File
	err := t.db.Where("id = ? AND user_id = ?", fileID, userID).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("file")
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// Folder fetches an owner-scoped folder record.
func (t *StorageTree) Folder(userID, folderID uint) (*models.Folder, error) {
	var folder models.Folder
	err := t.db.Where("id = ? AND user_id = ?", folderID, userID).First(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("folder")
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// RenameFile renames the physical object first and only then commits the
// record; a failed physical rename leaves the record untouched.
func (t *StorageTree) RenameFile(userID, fileID uint, newName string) (*models.File, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, conflictf("file", "file name must not be empty")
	}

	file, err := t.File(userID, fileID)
	if err != nil {
		return nil, err
	}
	if file.Filename == newName {
		return file, nil
	}

	if taken, err := t.fileNameTaken(userID, file.FolderID, newName, file.ID); err != nil {
		return nil, err
	} else if taken {
		return nil, conflictf("file", "file %q already exists", newName)
	}

	newLocator := storage.FileLocator(userID, file.FolderID, newName)
	if err := t.store.Rename(file.Filepath, newLocator); err != nil {
		return nil, physicalIO("file", err)
	}

	updates := map[string]interface{}{"filename": newName, "filepath": newLocator}
	if err := t.db.Model(&models.File{}).Where("id = ?", file.ID).Updates(updates).Error; err != nil {
		// Undo the physical rename so both sides stay consistent.
		_ = t.store.Rename(newLocator, file.Filepath)
		if isDuplicateErr(err) {
			return nil, conflictf("file", "file %q already exists", newName)
		}
		return nil, err
	}
	file.Filename = newName
	file.Filepath = newLocator
	return file, nil
}

// RenameFolder updates the record only: physical directories are named by
// folder id, so no byte-store work is needed.
func (t *StorageTree) RenameFolder(userID, folderID uint, newName string) (*models.Folder, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, conflictf("folder", "folder name must not be empty")
	}

	folder, err := t.Folder(userID, folderID)
	if err != nil {
		return nil, err
	}
	if folder.Name == newName {
		return folder, nil
	}

	if taken, err := t.folderNameTaken(userID, folder.ParentID, newName, folder.ID); err != nil {
		return nil, err
	} else if taken {
		return nil, conflictf("folder", "folder %q already exists", newName)
	}

	if err := t.db.Model(&models.Folder{}).Where("id = ?", folder.ID).Update("name", newName).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, conflictf("folder", "folder %q already exists", newName)
		}
		return nil, err
	}
	folder.Name = newName
	return folder, nil
}

// MoveFile relocates a file into another folder (nil = root level),
// physical first.
func (t *StorageTree) MoveFile(userID, fileID uint, destFolderID *uint) (*models.File, error) {
	file, err := t.File(userID, fileID)
	if err != nil {
		return nil, err
	}

	if destFolderID != nil {
		if _, err := t.Folder(userID, *destFolderID); err != nil {
			return nil, err
		}
	}
	if equalFolderRef(file.FolderID, destFolderID) {
		return file, nil
	}

	if taken, err := t.fileNameTaken(userID, destFolderID, file.Filename, file.ID); err != nil {
		return nil, err
	} else if taken {
		return nil, conflictf("file", "file %q already exists in the destination", file.Filename)
	}

	newLocator := storage.FileLocator(userID, destFolderID, file.Filename)
	if err := t.store.Rename(file.Filepath, newLocator); err != nil {
		return nil, physicalIO("file", err)
	}

	updates := map[string]interface{}{"folder_id": destFolderID, "filepath": newLocator}
	if err := t.db.Model(&models.File{}).Where("id = ?", file.ID).Updates(updates).Error; err != nil {
		_ = t.store.Rename(newLocator, file.Filepath)
		if isDuplicateErr(err) {
			return nil, conflictf("file", "file %q already exists in the destination", file.Filename)
		}
		return nil, err
	}
	file.FolderID = destFolderID
	file.Filepath = newLocator
	return file, nil
}

// RecentFiles returns the user's latest uploads, newest first.
func (t *StorageTree) RecentFiles(userID uint, limit int) ([]models.File, error) {
	if limit <= 0 {
		limit = 5
	}
	var files []models.File
	err := t.db.Where("user_id = ?", userID).Order("upload_time DESC").Limit(limit).Find(&files).Error
	return files, err
}

func (t *StorageTree) folderNameTaken(userID uint, parentID *uint, name string, excludeID uint) (bool, error) {
	var count int64
	q := t.db.Model(&models.Folder{}).Where("user_id = ? AND name = ?", userID, name)
	if parentID != nil {
		q = q.Where("parent_id = ?", *parentID)
	} else {
		q = q.Where("parent_id IS NULL")
	}
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t *StorageTree) fileNameTaken(userID uint, folderID *uint, name string, excludeID uint) (bool, error) {
	var count int64
	q := t.db.Model(&models.File{}).Where("user_id = ? AND filename = ?", userID, name)
	if folderID != nil {
		q = q.Where("folder_id = ?", *folderID)
	} else {
		q = q.Where("folder_id IS NULL")
	}
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func equalFolderRef(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// isDuplicateErr matches unique-constraint violations across MySQL and the
// SQLite driver used in tests.
func isDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
