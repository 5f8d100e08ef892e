package models

import "time"

// FileShare grants anonymous, time-boxed access to a single file. Rows are
// never deleted; revocation flips IsActive so the history stays auditable.
// A share is usable only when IsActive is true AND the TTL has not lapsed;
// both checks are applied on every resolution.
type FileShare struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ShareCode   string    `gorm:"size:36;uniqueIndex;not null" json:"share_code"`
	FileID      uint      `gorm:"index;not null" json:"file_id"`
	CreatedTime time.Time `gorm:"autoCreateTime" json:"created_time"`
	ExpiresIn   int       `gorm:"not null;default:24" json:"expires_in"` // hours
	IsActive    bool      `gorm:"default:true" json:"is_active"`

	File File `gorm:"foreignKey:FileID" json:"-"`
}

// IsExpired reports whether the share's TTL has lapsed.
func (s *FileShare) IsExpired(now time.Time) bool {
	return now.After(s.CreatedTime.Add(time.Duration(s.ExpiresIn) * time.Hour))
}

// FolderShare is the folder-scoped share variant. A resolved folder share
// exposes the folder's immediate children only; navigation into descendants
// is not part of the shared view.
type FolderShare struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ShareCode   string    `gorm:"size:36;uniqueIndex;not null" json:"share_code"`
	FolderID    uint      `gorm:"index;not null" json:"folder_id"`
	CreatedTime time.Time `gorm:"autoCreateTime" json:"created_time"`
	ExpiresIn   int       `gorm:"not null;default:24" json:"expires_in"` // hours
	IsActive    bool      `gorm:"default:true" json:"is_active"`

	Folder Folder `gorm:"foreignKey:FolderID" json:"-"`
}

// IsExpired reports whether the share's TTL has lapsed.
func (s *FolderShare) IsExpired(now time.Time) bool {
	return now.After(s.CreatedTime.Add(time.Duration(s.ExpiresIn) * time.Hour))
}
