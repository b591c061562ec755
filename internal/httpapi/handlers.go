package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"voicedesk/internal/apperr"
	"voicedesk/internal/audit"
	"voicedesk/internal/auth"
	"voicedesk/internal/campaigns"
	"voicedesk/internal/records"
	"voicedesk/internal/reporting"
	"voicedesk/internal/tenants"
	"voicedesk/internal/webhooks"
	"voicedesk/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Service
	Tenants   *tenants.Service
	Campaigns *campaigns.Service
	Records   *records.Service
	Reports   *reporting.Service
	Webhooks  *webhooks.Classifier
}

// ClientIP stores the caller's address in the request context for audit events.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// writeError maps err to a status and a client-safe message. Internal errors
// are logged and reported.
func writeError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "route", c.FullPath(), "error", err)
		logger.CaptureError(c.Request.Context(), err, map[string]string{"route": c.FullPath()})
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}

var errInvalidJSON = fmt.Errorf("%w: invalid json", apperr.ErrInvalidArgument)

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, errInvalidJSON)
		return false
	}
	return true
}

// tenantID reads the caller's tenant placed in context by the auth middleware.
func tenantID(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil || uid == "" {
		writeError(c, fmt.Errorf("%w: tenant required", apperr.ErrUnauthorized))
		return "", false
	}
	return uid, true
}

func notConfigured(c *gin.Context, what string) {
	writeError(c, errors.New(what+" not configured"))
}
