package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/services"
	"github.com/SecgPower/cloudpan/utils"
)

// AdminRequired gates routes behind the admin elevation state. It runs
// after AuthRequired, reloads the user, and lazily re-validates the
// elevation TTL on every request; a lapsed session is demoted in the
// database before the request is rejected.
func AdminRequired(db *gorm.DB, guard *services.AdminGuard) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID, ok := UserID(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			ctx.Abort()
			return
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.Error(ctx, http.StatusUnauthorized, 40111, "unknown account")
			} else {
				utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load account")
			}
			ctx.Abort()
			return
		}

		if err := guard.Check(&user); err != nil {
			switch services.KindOf(err) {
			case services.KindExpired:
				utils.Error(ctx, http.StatusForbidden, 40310, "admin session expired, verify the key again")
			case services.KindForbidden:
				utils.Error(ctx, http.StatusForbidden, 40311, "admin verification required")
			default:
				utils.Error(ctx, http.StatusInternalServerError, 50011, "admin check failed")
			}
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserKey, &user)
		ctx.Next()
	}
}
