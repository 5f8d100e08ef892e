package models

import "time"

// Folder is a node of the per-user directory tree. ParentID is nil for
// root-level folders; cycles cannot form because creation only ever links
// to an already existing parent.
//
// Sibling names are unique per (user, parent). MySQL keeps NULL parent_id
// rows out of the composite unique index, so root-level uniqueness is also
// enforced by the pre-insert check in the storage tree service.
type Folder struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:255;not null;uniqueIndex:uniq_folder_sibling" json:"name"`
	ParentID *uint  `gorm:"index;uniqueIndex:uniq_folder_sibling" json:"parent_id"`
	UserID   uint   `gorm:"index;not null;uniqueIndex:uniq_folder_sibling" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`

	Subfolders []Folder `gorm:"foreignKey:ParentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Files      []File   `gorm:"foreignKey:FolderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
