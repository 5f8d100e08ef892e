package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/services"
	"github.com/SecgPower/cloudpan/utils"
)

// AdminController holds the key-file elevation flow and the moderation
// surface it unlocks.
type AdminController struct {
	db        *gorm.DB
	guard     *services.AdminGuard
	lifecycle *services.Lifecycle
}

func NewAdminController(db *gorm.DB, guard *services.AdminGuard, lifecycle *services.Lifecycle) *AdminController {
	return &AdminController{db: db, guard: guard, lifecycle: lifecycle}
}

// Login elevates the session by comparing an uploaded key file against
// the server's reference key.
func (a *AdminController) Login(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	header, err := ctx.FormFile("key_file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "missing key_file field")
		return
	}
	src, err := header.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40051, "failed to read key file")
		return
	}
	defer src.Close()

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to load account")
		return
	}

	if err := a.guard.Elevate(&user, src); err != nil {
		if services.IsKind(err, services.KindForbidden) {
			utils.Error(ctx, http.StatusForbidden, 40312, "key file rejected")
			return
		}
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"admin": true, "ttl_seconds": int(a.guard.SessionTTL().Seconds())})
}

// Logout drops the elevation immediately.
func (a *AdminController) Logout(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to load account")
		return
	}
	if err := a.guard.Demote(&user); err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"admin": false})
}

const dashboardCacheKey = "cache:admin:dashboard"

// Dashboard returns aggregate counts for the admin landing page. The
// counts are cached briefly; deletions through this controller flush them.
func (a *AdminController) Dashboard(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(dashboardCacheKey); ok {
		var cached gin.H
		if err := json.Unmarshal(b, &cached); err == nil {
			utils.Success(ctx, cached)
			return
		}
	}

	var userCount, fileCount, folderCount int64
	var totalUsed int64

	if err := a.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to gather stats")
		return
	}
	if err := a.db.Model(&models.File{}).Count(&fileCount).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to gather stats")
		return
	}
	if err := a.db.Model(&models.Folder{}).Count(&folderCount).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to gather stats")
		return
	}
	row := a.db.Model(&models.User{}).Select("COALESCE(SUM(total_storage_used), 0)").Row()
	if err := row.Scan(&totalUsed); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to gather stats")
		return
	}

	stats := gin.H{
		"users":             userCount,
		"files":             fileCount,
		"folders":           folderCount,
		"total_bytes":       totalUsed,
		"total_bytes_human": utils.HumanSize(totalUsed),
	}
	utils.CacheSetJSON(dashboardCacheKey, stats, time.Minute)
	utils.Success(ctx, stats)
}

// Users lists all accounts with their storage usage.
func (a *AdminController) Users(ctx *gin.Context) {
	var users []models.User
	if err := a.db.Order("id ASC").Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to list users")
		return
	}
	list := make([]gin.H, 0, len(users))
	for _, u := range users {
		list = append(list, gin.H{
			"id":         u.ID,
			"username":   u.Username,
			"email":      u.Email,
			"confirmed":  u.Confirmed,
			"used":       u.TotalStorageUsed,
			"used_human": utils.HumanSize(u.TotalStorageUsed),
			"created_at": u.CreatedAt,
		})
	}
	utils.Success(ctx, gin.H{"users": list})
}

// DeleteUser removes another account and everything it owns. Admins
// cannot delete themselves through this endpoint.
func (a *AdminController) DeleteUser(ctx *gin.Context) {
	actorID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	targetID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if targetID == actorID {
		utils.Error(ctx, http.StatusBadRequest, 40052, "use account deletion to remove your own account")
		return
	}

	var target models.User
	if err := a.db.First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40400, "user not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to load account")
		}
		return
	}

	if err := a.lifecycle.DeleteUser(targetID); err != nil {
		serviceError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(dashboardCacheKey)
	utils.Success(ctx, gin.H{"deleted": targetID})
}

// Files lists stored files, optionally filtered to one user.
func (a *AdminController) Files(ctx *gin.Context) {
	q := a.db.Model(&models.File{}).Order("upload_time DESC")
	if raw := ctx.Query("user_id"); raw != "" {
		ownerID, ok := parseOptionalFolderID(raw)
		if !ok || ownerID == nil {
			utils.Error(ctx, http.StatusBadRequest, 40053, "invalid user_id")
			return
		}
		q = q.Where("user_id = ?", *ownerID)
	}

	var files []models.File
	if err := q.Limit(500).Find(&files).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to list files")
		return
	}
	list := make([]gin.H, 0, len(files))
	for _, f := range files {
		v := fileView(f)
		v["user_id"] = f.UserID
		list = append(list, v)
	}
	utils.Success(ctx, gin.H{"files": list})
}

// DeleteFile removes any user's file, refunding that user's quota.
func (a *AdminController) DeleteFile(ctx *gin.Context) {
	fileID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := a.lifecycle.AdminDeleteFile(fileID); err != nil {
		serviceError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(dashboardCacheKey)
	utils.Success(ctx, gin.H{"deleted": fileID})
}
