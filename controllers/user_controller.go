package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/config"
	"github.com/SecgPower/cloudpan/middleware"
	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/services"
	"github.com/SecgPower/cloudpan/utils"
)

// UserController covers profile management and account deletion.
type UserController struct {
	db        *gorm.DB
	quota     *services.QuotaLedger
	lifecycle *services.Lifecycle
}

func NewUserController(db *gorm.DB, quota *services.QuotaLedger, lifecycle *services.Lifecycle) *UserController {
	return &UserController{db: db, quota: quota, lifecycle: lifecycle}
}

// Profile returns the account, its avatar and its storage usage.
func (u *UserController) Profile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	var user models.User
	if err := u.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to load account")
		return
	}
	used, capacity, err := u.quota.Usage(userID)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"email":          user.Email,
		"confirmed":      user.Confirmed,
		"avatar":         user.AvatarURL(128),
		"created_at":     user.CreatedAt,
		"used":           used,
		"capacity":       capacity,
		"used_human":     utils.HumanSize(used),
		"capacity_human": utils.HumanSize(capacity),
	})
}

// UploadAvatar replaces the account's avatar image. Avatars live outside
// the quota-charged upload tree and do not count against storage.
func (u *UserController) UploadAvatar(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	header, err := ctx.FormFile("avatar")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "missing avatar field")
		return
	}

	cfg := config.Get()
	if header.Size > cfg.MaxAvatarBytes {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41302, "avatar exceeds the size limit")
		return
	}
	if !allowedExtension(header.Filename, cfg.AllowedAvatarExtensions) {
		utils.Error(ctx, http.StatusBadRequest, 40041, "avatar type not allowed")
		return
	}

	var user models.User
	if err := u.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to load account")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	newName := fmt.Sprintf("%d_%s%s", userID, uuid.NewString(), ext)
	newPath := filepath.Join(cfg.AvatarDir, newName)

	if err := os.MkdirAll(cfg.AvatarDir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to store avatar")
		return
	}
	src, err := header.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "failed to read avatar")
		return
	}
	defer src.Close()
	dst, err := os.Create(newPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to store avatar")
		return
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(newPath)
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to store avatar")
		return
	}
	dst.Close()

	oldPath := user.AvatarPath
	updates := map[string]interface{}{"avatar_filename": newName, "avatar_path": newPath}
	if err := u.db.Model(&user).Updates(updates).Error; err != nil {
		os.Remove(newPath)
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to update account")
		return
	}
	if oldPath != "" {
		if err := os.Remove(oldPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			utils.Sugar.Warnf("remove old avatar %s: %v", oldPath, err)
		}
	}

	user.AvatarFilename = newName
	utils.Success(ctx, gin.H{"avatar": user.AvatarURL(128)})
}

// DeleteAccount removes the account and everything it owns after a
// password re-check.
func (u *UserController) DeleteAccount(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	type request struct {
		Password string `json:"password" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40043, "invalid request payload")
		return
	}

	var user models.User
	if err := u.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to load account")
		return
	}
	if user.PasswordHash == "" || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusForbidden, 40330, "password check failed")
		return
	}

	if err := u.lifecycle.DeleteUser(userID); err != nil {
		serviceError(ctx, err)
		return
	}

	if v, ok := ctx.Get(middleware.ContextTokenKey); ok {
		if token, ok := v.(string); ok && token != "" {
			utils.BlacklistToken(token, time.Now().Add(tokenDuration))
		}
	}
	utils.Success(ctx, gin.H{"deleted": userID})
}
