package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"gorm.io/gorm"

	"github.com/SecgPower/cloudpan/config"
	"github.com/SecgPower/cloudpan/middleware"
	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/services"
	"github.com/SecgPower/cloudpan/utils"
)

const tokenDuration = 7 * 24 * time.Hour

// AuthController handles registration, email confirmation and login,
// including the optional GitHub provider.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register creates an unconfirmed account and sends the confirmation link.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username      string `json:"username" binding:"required,min=2,max=64"`
		Email         string `json:"email" binding:"required,email"`
		Password      string `json:"password" binding:"required,min=6"`
		Confirm       string `json:"confirm"`
		CaptchaID     string `json:"captcha_id"`
		CaptchaAnswer string `json:"captcha_answer"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	cfg := config.Get()
	if cfg.RegisterCaptchaEnabled && !utils.VerifyCaptcha(req.CaptchaID, req.CaptchaAnswer) {
		utils.Error(ctx, http.StatusBadRequest, 40003, "captcha verification failed")
		return
	}

	if req.Confirm != "" && req.Confirm != req.Password {
		utils.Error(ctx, http.StatusBadRequest, 40004, "passwords do not match")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	if err := a.db.Where("email = ? OR username = ?", req.Email, req.Username).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "email or username already registered")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to check account")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to hash password")
		return
	}

	user := models.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := a.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to create account")
		return
	}

	a.sendConfirmationEmail(&user)
	utils.Success(ctx, gin.H{"id": user.ID, "message": "confirmation email sent"})
}

// Login authenticates a confirmed account and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	var user models.User
	err := a.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !utils.CheckPassword(user.PasswordHash, req.Password)) {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "invalid email or password")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to load account")
		return
	}

	if !user.Confirmed {
		utils.Error(ctx, http.StatusForbidden, 40320, "please confirm your email before logging in")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, tokenDuration)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to issue token")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"avatar":   user.AvatarURL(128),
	}})
}

// ConfirmEmail consumes a single-use confirmation token.
func (a *AuthController) ConfirmEmail(ctx *gin.Context) {
	user, err := services.ConsumeConfirmationToken(a.db, ctx.Param("token"))
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": user.ID, "confirmed": true})
}

// ResendConfirmation re-issues the confirmation mail, behind a cooldown.
func (a *AuthController) ResendConfirmation(ctx *gin.Context) {
	type request struct {
		Email string `json:"email" binding:"required,email"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid request payload")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	err := a.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40401, "email not registered")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to load account")
		return
	}
	if user.Confirmed {
		utils.Error(ctx, http.StatusConflict, 40902, "account already confirmed")
		return
	}

	if !utils.EmailCooldownTrySet(email, time.Minute) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "confirmation email recently sent, try again later")
		return
	}

	a.sendConfirmationEmail(&user)
	utils.Success(ctx, gin.H{"message": "confirmation email sent"})
}

func (a *AuthController) sendConfirmationEmail(user *models.User) {
	token, err := services.GenerateConfirmationToken(a.db, user)
	if err != nil {
		utils.Sugar.Errorf("issue confirmation token for %s: %v", user.Email, err)
		return
	}
	cfg := config.Get()
	link := fmt.Sprintf("%s/api/v1/auth/confirm/%s", strings.TrimRight(cfg.BaseURL, "/"), token)
	body := "Please confirm your email address by opening the following link:\n\n" + link
	if err := utils.SendMail(user.Email, "Confirm your CloudPan account", body); err != nil {
		utils.Sugar.Warnf("send confirmation mail to %s: %v", user.Email, err)
	}
}

// Logout blacklists the current token until its natural expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	if v, ok := ctx.Get(middleware.ContextTokenKey); ok {
		if token, ok := v.(string); ok && token != "" {
			utils.BlacklistToken(token, time.Now().Add(tokenDuration))
		}
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated account.
func (a *AuthController) Me(ctx *gin.Context) {
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
	utils.Success(ctx, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"confirmed":  user.Confirmed,
		"avatar":     user.AvatarURL(128),
		"created_at": user.CreatedAt,
	})
}

// Captcha returns a fresh captcha id and image for the register form.
func (a *AuthController) Captcha(ctx *gin.Context) {
	id, b64, err := utils.GenerateCaptcha()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50008, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"captcha_id": id, "image": b64})
}

func (a *AuthController) githubOAuthConfig() *oauth2.Config {
	cfg := config.Get()
	redirectBase := cfg.OAuthRedirectBase
	if redirectBase == "" {
		redirectBase = cfg.BaseURL
	}
	return &oauth2.Config{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		Endpoint:     github.Endpoint,
		RedirectURL:  strings.TrimRight(redirectBase, "/") + "/api/v1/auth/oauth/github/callback",
		Scopes:       []string{"user:email"},
	}
}

// OAuthRedirect starts the GitHub login flow.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	conf := a.githubOAuthConfig()
	if conf.ClientID == "" {
		utils.Error(ctx, http.StatusNotFound, 40402, "github login not configured")
		return
	}
	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)
	ctx.Redirect(http.StatusFound, conf.AuthCodeURL(state))
}

// OAuthCallback finishes the GitHub login flow; accounts created this way
// are confirmed implicitly since GitHub verified the email.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	if !utils.ConsumeState(ctx.Query("state")) {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid oauth state")
		return
	}
	conf := a.githubOAuthConfig()

	octx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()
	token, err := conf.Exchange(octx, ctx.Query("code"))
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50220, "oauth code exchange failed")
		return
	}

	client := conf.Client(octx, token)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50221, "failed to fetch github profile")
		return
	}
	defer resp.Body.Close()

	var profile struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50222, "failed to decode github profile")
		return
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		email = fmt.Sprintf("github_%d@users.noreply.github.com", profile.ID)
	}

	var user models.User
	err = a.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Username:  fmt.Sprintf("%s_%d", profile.Login, profile.ID),
			Email:     email,
			Confirmed: true,
		}
		if err := a.db.Create(&user).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50009, "failed to create account")
			return
		}
	} else if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to load account")
		return
	}

	jwtToken, err := utils.GenerateToken(user.ID, user.Username, tokenDuration)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to issue token")
		return
	}
	utils.Success(ctx, gin.H{"token": jwtToken, "user": gin.H{"id": user.ID, "username": user.Username}})
}
