package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SecgPower/cloudpan/models"
)

func TestConfirmationTokenRoundTrip(t *testing.T) {
	db := newTestDB(t)
	user := &models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(user).Error)

	token, err := GenerateConfirmationToken(db, user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	confirmed, err := ConsumeConfirmationToken(db, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, confirmed.ID)
	assert.True(t, confirmed.Confirmed)

	// Tokens are single-use: the second consumption finds nothing.
	_, err = ConsumeConfirmationToken(db, token)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestGenerateTokenForConfirmedAccount(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "alice")

	_, err := GenerateConfirmationToken(db, user)
	assert.True(t, IsKind(err, KindConflict))
}

func TestConsumeEmptyOrUnknownToken(t *testing.T) {
	db := newTestDB(t)

	_, err := ConsumeConfirmationToken(db, "")
	assert.True(t, IsKind(err, KindNotFound))

	_, err = ConsumeConfirmationToken(db, "not-a-token")
	assert.True(t, IsKind(err, KindNotFound))
}

func TestRegenerateReplacesToken(t *testing.T) {
	db := newTestDB(t)
	user := &models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(user).Error)

	first, err := GenerateConfirmationToken(db, user)
	require.NoError(t, err)
	second, err := GenerateConfirmationToken(db, user)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// Only the latest token works.
	_, err = ConsumeConfirmationToken(db, first)
	assert.True(t, IsKind(err, KindNotFound))
	_, err = ConsumeConfirmationToken(db, second)
	assert.NoError(t, err)
}
