package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store is the byte-addressable backing store consumed by the services
// layer. Locators are slash-separated paths relative to the store root,
// shaped as {userID}/{folderID}/{filename}; the folder-id directory level
// mirrors the logical tree.
type Store interface {
	// Write streams r into the object at locator, creating parent
	// directories as needed, and returns the number of bytes written.
	Write(locator string, r io.Reader) (int64, error)
	// Open returns a reader over the object.
	Open(locator string) (io.ReadCloser, error)
	// Remove deletes one object. Removing an absent object is an error
	// (callers distinguish absent via Exists).
	Remove(locator string) error
	// RemoveDir deletes a directory subtree. Absent directories are fine.
	RemoveDir(locator string) error
	// Rename moves an object; used for renames and moves between folders.
	Rename(oldLocator, newLocator string) error
	// Exists reports whether an object or directory is present.
	Exists(locator string) bool
	// Size returns the byte size of an object.
	Size(locator string) (int64, error)
	// MkdirAll creates a directory (and parents) at locator.
	MkdirAll(locator string) error
}

// UserDir returns the locator of a user's top-level directory.
func UserDir(userID uint) string {
	return fmt.Sprintf("%d", userID)
}

// FolderDir returns the locator of a folder's physical directory. Every
// folder gets its own directory directly under the user directory, named
// by folder id, regardless of its logical depth.
func FolderDir(userID, folderID uint) string {
	return fmt.Sprintf("%d/%d", userID, folderID)
}

// FileLocator returns the object locator for a file; folderID nil places
// the object directly in the user directory.
func FileLocator(userID uint, folderID *uint, filename string) string {
	if folderID != nil {
		return fmt.Sprintf("%d/%d/%s", userID, *folderID, filename)
	}
	return fmt.Sprintf("%d/%s", userID, filename)
}

// DiskStore implements Store on a local filesystem root.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if missing and returns the store.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Root exposes the filesystem root, for composition-time wiring only.
func (d *DiskStore) Root() string { return d.root }

func (d *DiskStore) abs(locator string) string {
	return filepath.Join(d.root, filepath.FromSlash(locator))
}

func (d *DiskStore) Write(locator string, r io.Reader) (int64, error) {
	path := d.abs(locator)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

func (d *DiskStore) Open(locator string) (io.ReadCloser, error) {
	return os.Open(d.abs(locator))
}

func (d *DiskStore) Remove(locator string) error {
	return os.Remove(d.abs(locator))
}

func (d *DiskStore) RemoveDir(locator string) error {
	return os.RemoveAll(d.abs(locator))
}

func (d *DiskStore) Rename(oldLocator, newLocator string) error {
	dst := d.abs(newLocator)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(d.abs(oldLocator), dst)
}

func (d *DiskStore) Exists(locator string) bool {
	_, err := os.Stat(d.abs(locator))
	return err == nil
}

func (d *DiskStore) Size(locator string) (int64, error) {
	info, err := os.Stat(d.abs(locator))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (d *DiskStore) MkdirAll(locator string) error {
	return os.MkdirAll(d.abs(locator), 0o755)
}
