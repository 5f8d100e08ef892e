package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/config"
	"github.com/SecgPower/cloudpan/controllers"
	"github.com/SecgPower/cloudpan/middleware"
	"github.com/SecgPower/cloudpan/services"
	"github.com/SecgPower/cloudpan/storage"
	"github.com/SecgPower/cloudpan/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, store storage.Store) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")
	r.Static("/avatars", cfg.AvatarDir)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	quota := services.NewQuotaLedger(db, store, cfg.QuotaBytes)
	tree := services.NewStorageTree(db, store)
	shares := services.NewShareRegistry(db, tree)
	lifecycle := services.NewLifecycle(db, store, quota)
	guard := services.NewAdminGuard(db, cfg.AdminKeyPath(), time.Duration(cfg.AdminSessionMinutes)*time.Minute)

	authController := controllers.NewAuthController(db)
	fileController := controllers.NewFileController(tree, quota, lifecycle, store)
	shareController := controllers.NewShareController(shares, fileController)
	userController := controllers.NewUserController(db, quota, lifecycle)
	adminController := controllers.NewAdminController(db, guard, lifecycle)
	contactController := controllers.NewContactController()

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/captcha", authController.Captcha)
	authGroup.GET("/confirm/:token", authController.ConfirmEmail)
	authGroup.POST("/resend-confirmation", authController.ResendConfirmation)
	authGroup.GET("/oauth/github/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/github/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Public side of share links
	shared := api.Group("/s")
	shared.GET("/file/:code", shareController.ResolveFile)
	shared.GET("/file/:code/download", shareController.DownloadFile)
	shared.GET("/folder/:code", shareController.ResolveFolder)
	shared.GET("/folder/:code/files/:file_id/download", shareController.DownloadFolderFile)

	api.POST("/contact", middleware.RateLimitMiddleware(), contactController.Submit)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.GET("/files", fileController.List)
	protected.GET("/files/recent", fileController.Recent)
	protected.GET("/storage/usage", fileController.Usage)
	protected.POST("/folders", fileController.CreateFolder)
	protected.PATCH("/folders/:id", fileController.RenameFolder)
	protected.DELETE("/folders/:id", fileController.DeleteFolder)
	protected.POST("/files/upload", fileController.Upload)
	protected.PATCH("/files/:id", fileController.RenameFile)
	protected.POST("/files/:id/move", fileController.MoveFile)
	protected.GET("/files/:id/download", fileController.Download)
	protected.DELETE("/files/:id", fileController.DeleteFile)

	protected.POST("/files/:id/share", shareController.CreateFileShare)
	protected.POST("/folders/:id/share", shareController.CreateFolderShare)
	protected.GET("/shares", shareController.Mine)
	protected.DELETE("/shares/file/:id", shareController.RevokeFileShare)
	protected.DELETE("/shares/folder/:id", shareController.RevokeFolderShare)

	protected.GET("/profile", userController.Profile)
	protected.POST("/profile/avatar", userController.UploadAvatar)
	protected.DELETE("/account", userController.DeleteAccount)

	protected.POST("/admin/login", adminController.Login)
	protected.POST("/admin/logout", adminController.Logout)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.AuthRequired(), middleware.AdminRequired(db, guard))
	adminGroup.GET("/dashboard", adminController.Dashboard)
	adminGroup.GET("/users", adminController.Users)
	adminGroup.DELETE("/users/:id", adminController.DeleteUser)
	adminGroup.GET("/files", adminController.Files)
	adminGroup.DELETE("/files/:id", adminController.DeleteFile)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.Status(http.StatusOK)
		ctx.File("./static/index.html")
	})

	return r
}
