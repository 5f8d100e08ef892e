package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/models"
)

// GenerateConfirmationToken issues (and persists) a fresh single-use email
// confirmation token for an unconfirmed account.
func GenerateConfirmationToken(db *gorm.DB, user *models.User) (string, error) {
	if user.Confirmed {
		return "", conflictf("account", "account is already confirmed")
	}
	token := uuid.NewString()
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("confirmation_token", token).Error; err != nil {
		return "", err
	}
	user.ConfirmationToken = &token
	return token, nil
}

// ConsumeConfirmationToken marks the matching account confirmed and voids
// the token. Tokens are strictly single-use: a second consumption attempt
// finds nothing.
func ConsumeConfirmationToken(db *gorm.DB, token string) (*models.User, error) {
	if token == "" {
		return nil, notFound("confirmation token")
	}
	var user models.User
	err := db.Where("confirmation_token = ?", token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("confirmation token")
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"confirmed": true, "confirmation_token": nil}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	user.Confirmed = true
	user.ConfirmationToken = nil
	return &user, nil
}
