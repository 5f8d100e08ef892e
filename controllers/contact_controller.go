package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SecgPower/cloudpan/config"
	"github.com/SecgPower/cloudpan/utils"
)

// ContactController receives contact-form submissions. Messages are
// sanitized, logged, and forwarded to the site mailbox when SMTP is up.
type ContactController struct{}

func NewContactController() *ContactController {
	return &ContactController{}
}

func (c *ContactController) Submit(ctx *gin.Context) {
	type request struct {
		Name    string `json:"name" binding:"required,max=128"`
		Email   string `json:"email" binding:"required,email"`
		Message string `json:"message" binding:"required,max=4000"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}

	name := utils.Sanitize(req.Name)
	message := utils.Sanitize(req.Message)

	utils.Sugar.Infow("contact message received",
		"name", name,
		"email", req.Email,
		"length", len(message),
	)

	cfg := config.Get()
	if cfg.SMTPHost != "" && cfg.ContactRecipient != "" {
		body := "From: " + name + " <" + req.Email + ">\n\n" + message
		if err := utils.SendMail(cfg.ContactRecipient, "CloudPan contact form", body); err != nil {
			utils.Sugar.Warnf("forward contact message: %v", err)
		}
	}

	utils.Success(ctx, gin.H{"received": true})
}
