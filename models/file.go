package models

import "time"

// File is a stored object owned by exactly one user. Filepath is the
// locator inside the byte store ({userID}/{folderID}/{filename}); Filesize
// is measured from the actual byte stream at upload time and never changes.
type File struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Filename string `gorm:"size:255;not null;uniqueIndex:uniq_file_sibling" json:"filename"`
	Filepath string `gorm:"size:512;not null" json:"-"`
	Filesize int64  `gorm:"not null" json:"filesize"`
	UserID   uint   `gorm:"index;not null;uniqueIndex:uniq_file_sibling" json:"user_id"`
	FolderID *uint  `gorm:"index;uniqueIndex:uniq_file_sibling" json:"folder_id"`

	UploadTime time.Time `gorm:"autoCreateTime" json:"upload_time"`
}
