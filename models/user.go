package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// User represents an account. Passwords are stored as bcrypt hashes only.
// TotalStorageUsed mirrors the byte sum of all live files owned by the user
// and is maintained with conditional updates by the quota ledger.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255" json:"-"`
	Confirmed    bool   `gorm:"default:false" json:"confirmed"`
	// Single-use email confirmation token; nil once consumed.
	ConfirmationToken *string `gorm:"size:36;uniqueIndex" json:"-"`

	AvatarFilename string `gorm:"size:255" json:"avatar_filename"`
	AvatarPath     string `gorm:"size:512" json:"-"`

	TotalStorageUsed int64 `gorm:"default:0" json:"total_storage_used"`

	// Admin elevation state: a secondary, time-limited authorization layer
	// on top of the normal login. AdminAuthTime anchors the session TTL.
	AdminAuthenticated bool       `gorm:"default:false" json:"-"`
	AdminAuthTime      *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Files   []File   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Folders []Folder `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// AvatarURL returns the public avatar location, falling back to a generated one.
func (u *User) AvatarURL(size int) string {
	if u.AvatarFilename != "" {
		return "/avatars/" + u.AvatarFilename
	}
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&size=%d", u.Username, size)
}
