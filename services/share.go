package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/models"
)

// ShareRegistry issues and resolves anonymous share links. Resolution is
// the one deliberate bypass of ownership checks; it still enforces both the
// active flag and the TTL on every request. Expiry is a pure function of
// the stored creation time, evaluated lazily; there is no sweeper.
type ShareRegistry struct {
	db   *gorm.DB
	tree *StorageTree
	now  func() time.Time
}

// NewShareRegistry creates a ShareRegistry; the tree is used to render the
// shared-folder view with the same listing logic as the authenticated one.
func NewShareRegistry(db *gorm.DB, tree *StorageTree) *ShareRegistry {
	return &ShareRegistry{db: db, tree: tree, now: time.Now}
}

// CreateFileShare issues a share code for a file the owner holds.
func (s *ShareRegistry) CreateFileShare(ownerID, fileID uint, hours int) (*models.FileShare, error) {
	if hours <= 0 {
		hours = 24
	}
	if _, err := s.tree.File(ownerID, fileID); err != nil {
		return nil, err
	}
	share := models.FileShare{
		ShareCode: uuid.NewString(),
		FileID:    fileID,
		ExpiresIn: hours,
		IsActive:  true,
	}
	if err := s.db.Create(&share).Error; err != nil {
		return nil, err
	}
	return &share, nil
}

// CreateFolderShare issues a share code for a folder the owner holds.
func (s *ShareRegistry) CreateFolderShare(ownerID, folderID uint, hours int) (*models.FolderShare, error) {
	if hours <= 0 {
		hours = 24
	}
	if _, err := s.tree.Folder(ownerID, folderID); err != nil {
		return nil, err
	}
	share := models.FolderShare{
		ShareCode: uuid.NewString(),
		FolderID:  folderID,
		ExpiresIn: hours,
		IsActive:  true,
	}
	if err := s.db.Create(&share).Error; err != nil {
		return nil, err
	}
	return &share, nil
}

// ResolveFileShare validates a code and returns the shared file. Inactive
// and lapsed shares are both reported as expired; unknown codes come back
// as not found.
func (s *ShareRegistry) ResolveFileShare(code string) (*models.FileShare, *models.File, error) {
	var share models.FileShare
	err := s.db.Where("share_code = ?", code).First(&share).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, notFound("share")
	}
	if err != nil {
		return nil, nil, err
	}
	if !share.IsActive || share.IsExpired(s.now()) {
		return nil, nil, expired("share")
	}

	var file models.File
	if err := s.db.First(&file, share.FileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Target was deleted after sharing; the link is dead.
			return nil, nil, notFound("file")
		}
		return nil, nil, err
	}
	return &share, &file, nil
}

// ResolveFolderShare validates a code and returns the shared folder with
// its immediate children, rendered by the same owner-scoped listing as the
// authenticated view. Descendants are not exposed through the link.
func (s *ShareRegistry) ResolveFolderShare(code string) (*models.Folder, []models.Folder, []models.File, error) {
	var share models.FolderShare
	err := s.db.Where("share_code = ?", code).First(&share).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil, notFound("share")
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if !share.IsActive || share.IsExpired(s.now()) {
		return nil, nil, nil, expired("share")
	}

	var folder models.Folder
	if err := s.db.First(&folder, share.FolderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, notFound("folder")
		}
		return nil, nil, nil, err
	}

	folderID := folder.ID
	subfolders, files, err := s.tree.listChildren(folder.UserID, &folderID)
	if err != nil {
		return nil, nil, nil, err
	}
	return &folder, subfolders, files, nil
}

// RevokeFileShare deactivates a share. Only the owner of the underlying
// file may revoke; revoking an already inactive share is a no-op.
func (s *ShareRegistry) RevokeFileShare(requesterID, shareID uint) error {
	var share models.FileShare
	err := s.db.First(&share, shareID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("share")
	}
	if err != nil {
		return err
	}
	if _, err := s.tree.File(requesterID, share.FileID); err != nil {
		if IsKind(err, KindNotFound) {
			return forbidden("share")
		}
		return err
	}
	if !share.IsActive {
		return nil
	}
	return s.db.Model(&models.FileShare{}).Where("id = ?", shareID).Update("is_active", false).Error
}

// RevokeFolderShare is the folder-scoped counterpart of RevokeFileShare.
func (s *ShareRegistry) RevokeFolderShare(requesterID, shareID uint) error {
	var share models.FolderShare
	err := s.db.First(&share, shareID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("share")
	}
	if err != nil {
		return err
	}
	if _, err := s.tree.Folder(requesterID, share.FolderID); err != nil {
		if IsKind(err, KindNotFound) {
			return forbidden("share")
		}
		return err
	}
	if !share.IsActive {
		return nil
	}
	return s.db.Model(&models.FolderShare{}).Where("id = ?", shareID).Update("is_active", false).Error
}

// OwnedShares lists a user's shares, newest first, targets preloaded.
// Inactive and lapsed rows are included: the history is kept for audit.
func (s *ShareRegistry) OwnedShares(ownerID uint) ([]models.FileShare, []models.FolderShare, error) {
	var fileShares []models.FileShare
	err := s.db.Joins("JOIN files ON files.id = file_shares.file_id").
		Where("files.user_id = ?", ownerID).
		Preload("File").
		Order("file_shares.created_time DESC").
		Find(&fileShares).Error
	if err != nil {
		return nil, nil, err
	}

	var folderShares []models.FolderShare
	err = s.db.Joins("JOIN folders ON folders.id = folder_shares.folder_id").
		Where("folders.user_id = ?", ownerID).
		Preload("Folder").
		Order("folder_shares.created_time DESC").
		Find(&folderShares).Error
	if err != nil {
		return nil, nil, err
	}
	return fileShares, folderShares, nil
}
