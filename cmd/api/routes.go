package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"crm-webhook/internal/auth"
	"crm-webhook/internal/httpapi"
	"crm-webhook/internal/metrics"
	"crm-webhook/internal/rbac"
	"crm-webhook/internal/webhook"
	"crm-webhook/pkg/logger"
	"crm-webhook/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	DB      *sql.DB
	Metrics *metrics.Metrics
	Webhook webhook.Handler
	API     httpapi.Handlers
	// Auth is nil when JWT_SECRET is unset; the /v1 group is then not mounted.
	Auth *auth.Manager
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if d.DB != nil {
			if err := utils.HealthCheck(c.Request.Context(), d.DB, 2*time.Second); err != nil {
				logger.FromGin(c).Warn("health check failed", "err", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// CRM webhook (public). Only POST is routed; other methods get 405.
	r.POST("/webhook/como/crm/", d.Webhook.Receive)

	if d.Auth == nil {
		return
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/refresh", d.API.Refresh)

		admin := v1.Group("/admin")
		admin.Use(auth.RequireAccessToken(d.Auth))
		{
			admin.GET("/export", rbac.RequireAnyRole(rbac.RoleViewer), d.API.Export)
			admin.PUT("/managers/:crm_user_id/permission", rbac.RequireAnyRole(rbac.RoleAdmin), d.API.SetManagerPermission)
		}
	}
}

func newRouter(log *slog.Logger, d routeDeps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(d.Metrics.Middleware())
	registerRoutes(r, d)
	return r
}
