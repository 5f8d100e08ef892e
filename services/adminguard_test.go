package services

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SecgPower/cloudpan/models"
)

func newGuardFixture(t *testing.T, key []byte, ttl time.Duration) (*AdminGuard, *models.User) {
	t.Helper()
	db := newTestDB(t)
	keyPath := filepath.Join(t.TempDir(), "admin_key.dat")
	require.NoError(t, os.WriteFile(keyPath, key, 0o600))
	return NewAdminGuard(db, keyPath, ttl), seedUser(t, db, "alice")
}

func TestElevateWithMatchingKey(t *testing.T) {
	key := []byte("thirty-two-byte-reference-key!!!")
	guard, user := newGuardFixture(t, key, time.Hour)

	require.NoError(t, guard.Elevate(user, bytes.NewReader(key)))
	assert.True(t, user.AdminAuthenticated)
	require.NotNil(t, user.AdminAuthTime)
	assert.NoError(t, guard.Check(user))

	// The elevated state was persisted, not just flipped in memory.
	var stored models.User
	require.NoError(t, guard.db.First(&stored, user.ID).Error)
	assert.True(t, stored.AdminAuthenticated)
}

func TestElevateWithWrongKey(t *testing.T) {
	guard, user := newGuardFixture(t, []byte("the-real-reference-key"), time.Hour)

	err := guard.Elevate(user, bytes.NewReader([]byte("an-impostor-key")))
	assert.True(t, IsKind(err, KindForbidden))
	assert.False(t, user.AdminAuthenticated)
	assert.True(t, IsKind(guard.Check(user), KindForbidden))
}

func TestElevateWithMissingReferenceKey(t *testing.T) {
	db := newTestDB(t)
	guard := NewAdminGuard(db, filepath.Join(t.TempDir(), "missing.dat"), time.Hour)
	user := seedUser(t, db, "alice")

	err := guard.Elevate(user, bytes.NewReader([]byte("anything")))
	assert.True(t, IsKind(err, KindForbidden))
}

func TestCheckDemotesLazilyAfterTTL(t *testing.T) {
	key := []byte("reference")
	guard, user := newGuardFixture(t, key, time.Hour)
	require.NoError(t, guard.Elevate(user, bytes.NewReader(key)))
	elevatedAt := *user.AdminAuthTime

	// Just inside the TTL the session holds.
	guard.now = func() time.Time { return elevatedAt.Add(59 * time.Minute) }
	assert.NoError(t, guard.Check(user))

	// One second past the TTL the check reports expiry and demotes the
	// stored state so later checks fail as plain forbidden.
	guard.now = func() time.Time { return elevatedAt.Add(time.Hour + time.Second) }
	assert.True(t, IsKind(guard.Check(user), KindExpired))

	var stored models.User
	require.NoError(t, guard.db.First(&stored, user.ID).Error)
	assert.False(t, stored.AdminAuthenticated)

	guard.now = time.Now
	assert.True(t, IsKind(guard.Check(&stored), KindForbidden))
}

func TestDemoteIsIdempotent(t *testing.T) {
	key := []byte("reference")
	guard, user := newGuardFixture(t, key, time.Hour)
	require.NoError(t, guard.Elevate(user, bytes.NewReader(key)))

	require.NoError(t, guard.Demote(user))
	require.NoError(t, guard.Demote(user))
	assert.True(t, IsKind(guard.Check(user), KindForbidden))
}
