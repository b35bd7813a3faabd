package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"crm-webhook/internal/auth"
	"crm-webhook/internal/leads"
	"crm-webhook/internal/reporting"
	"crm-webhook/pkg/logger"

	"github.com/gin-gonic/gin"
)

// PermissionSetter toggles whether a manager's calls are analysed.
type PermissionSetter interface {
	SetManagerPermission(ctx context.Context, crmUserID int64, permitted bool) error
}

// Exporter produces the read-only data export.
type Exporter interface {
	Export(ctx context.Context) (reporting.Snapshot, error)
}

// Handlers groups the operator-facing HTTP handlers.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth        *auth.Manager
	Permissions PermissionSetter
	Reporting   Exporter

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair.
// Initial pairs are minted offline by cmd/admintoken.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// --- Managers ---

type permissionRequest struct {
	IsPermitted *bool `json:"is_permitted"`
}

// SetManagerPermission flips the analysis permission of one CRM user.
// RBAC: admin.
func (h Handlers) SetManagerPermission(c *gin.Context) {
	if h.Permissions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "leads not configured"})
		return
	}
	crmUserID, err := strconv.ParseInt(c.Param("crm_user_id"), 10, 64)
	if err != nil || crmUserID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "crm_user_id must be a positive integer"})
		return
	}
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsPermitted == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "is_permitted required"})
		return
	}

	err = h.Permissions.SetManagerPermission(c.Request.Context(), crmUserID, *req.IsPermitted)
	switch {
	case errors.Is(err, leads.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "manager not found"})
		return
	case err != nil:
		logger.FromGin(c).Error("set manager permission failed", "crm_user_id", crmUserID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	operator, _ := auth.Operator(c.Request.Context())
	logger.FromGin(c).Info("manager permission changed",
		"crm_user_id", crmUserID,
		"is_permitted", *req.IsPermitted,
		"operator", operator,
	)
	c.JSON(http.StatusOK, gin.H{"crm_user_id": crmUserID, "is_permitted": *req.IsPermitted})
}

// --- Reporting ---

// Export returns every stored row plus a summary.
// RBAC: viewer or admin.
func (h Handlers) Export(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	snap, err := h.Reporting.Export(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("export failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
