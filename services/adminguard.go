package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"io"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/models"
)

// AdminGuard implements the two-state admin elevation machine. Elevation
// requires an already authenticated user to upload a file whose SHA-256
// digest matches the server-held reference key; the elevated state lapses
// after a fixed TTL, re-checked lazily at the start of every guarded
// operation rather than by a background timer.
type AdminGuard struct {
	db         *gorm.DB
	keyPath    string
	sessionTTL time.Duration
	now        func() time.Time
}

// NewAdminGuard creates a guard backed by the reference key file at keyPath.
func NewAdminGuard(db *gorm.DB, keyPath string, sessionTTL time.Duration) *AdminGuard {
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	return &AdminGuard{db: db, keyPath: keyPath, sessionTTL: sessionTTL, now: time.Now}
}

// SessionTTL returns the configured elevation lifetime.
func (g *AdminGuard) SessionTTL() time.Duration { return g.sessionTTL }

// Elevate compares the uploaded key against the reference key and, on a
// digest match, persists the elevated state with the current time.
func (g *AdminGuard) Elevate(user *models.User, uploaded io.Reader) error {
	refDigest, err := g.referenceDigest()
	if err != nil {
		return err
	}

	h := sha256.New()
	if _, err := io.Copy(h, uploaded); err != nil {
		return physicalIO("uploaded key", err)
	}
	if subtle.ConstantTimeCompare(refDigest, h.Sum(nil)) != 1 {
		return forbidden("admin elevation")
	}

	now := g.now()
	updates := map[string]interface{}{"admin_authenticated": true, "admin_auth_time": now}
	if err := g.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return err
	}
	user.AdminAuthenticated = true
	user.AdminAuthTime = &now
	return nil
}

// Check verifies the elevated state is present and still inside the TTL.
// A lapsed state is demoted in the database as a side effect and reported
// as expired; a state that was never granted is forbidden.
func (g *AdminGuard) Check(user *models.User) error {
	if !user.AdminAuthenticated {
		return forbidden("admin area")
	}
	if user.AdminAuthTime == nil || g.now().Sub(*user.AdminAuthTime) >= g.sessionTTL {
		if err := g.Demote(user); err != nil {
			return err
		}
		return expired("admin session")
	}
	return nil
}

// Demote clears the elevated state. It is idempotent and doubles as the
// explicit admin logout.
func (g *AdminGuard) Demote(user *models.User) error {
	updates := map[string]interface{}{"admin_authenticated": false, "admin_auth_time": nil}
	if err := g.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return err
	}
	user.AdminAuthenticated = false
	user.AdminAuthTime = nil
	return nil
}

func (g *AdminGuard) referenceDigest() ([]byte, error) {
	f, err := os.Open(g.keyPath)
	if errors.Is(err, os.ErrNotExist) {
		// No reference key means nobody can elevate.
		return nil, forbidden("admin elevation")
	}
	if err != nil {
		return nil, physicalIO("admin key", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, physicalIO("admin key", err)
	}
	return h.Sum(nil), nil
}
