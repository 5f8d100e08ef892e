package controllers

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SecgPower/cloudpan/middleware"
	"github.com/SecgPower/cloudpan/services"
	"github.com/SecgPower/cloudpan/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	return middleware.UserID(ctx)
}

// serviceError maps the core error taxonomy onto HTTP statuses and the
// numeric app codes used across the API. Unknown errors degrade to a
// generic failure so internal paths never leak.
func serviceError(ctx *gin.Context, err error) {
	switch services.KindOf(err) {
	case services.KindNotFound:
		utils.Error(ctx, http.StatusNotFound, 40400, err.Error())
	case services.KindConflict:
		utils.Error(ctx, http.StatusConflict, 40900, err.Error())
	case services.KindForbidden:
		utils.Error(ctx, http.StatusForbidden, 40300, err.Error())
	case services.KindExpired:
		utils.Error(ctx, http.StatusGone, 41000, err.Error())
	case services.KindQuotaExceeded:
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41300, err.Error())
	case services.KindPhysicalIO:
		utils.Sugar.Errorf("storage failure: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50060, "storage operation failed, please retry")
	default:
		utils.Sugar.Errorf("unhandled service error: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal error")
	}
}

// parseOptionalFolderID reads an optional folder reference from a string
// form/query value; empty means the root level.
func parseOptionalFolderID(raw string) (*uint, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return nil, false
	}
	id := uint(n)
	return &id, true
}

// parseIDParam reads a positive integer path parameter, responding with a
// 400 itself when the value is malformed.
func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 32)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

// allowedExtension checks a filename against a configured whitelist; a
// single "*" entry disables the check.
func allowedExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}
