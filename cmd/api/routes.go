package main

import (
	"context"
	"log/slog"
	"net/http"

	"voicedesk/internal/httpapi"
	"voicedesk/internal/rbac"
	"voicedesk/pkg/logger"
	"voicedesk/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// newRouter builds the engine with middleware and every route.
func newRouter(log *slog.Logger, h httpapi.Handlers, authMW gin.HandlerFunc, health func(context.Context) error) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())
	r.Use(httpapi.ClientIP())

	registerRoutes(r, h, authMW, health)
	return r
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, health func(context.Context) error) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				logger.FromGin(c).Warn("health check failed", "err", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	// Provider webhooks carry no bearer token; every write they cause is keyed
	// by provider call id or a resolved tenant.
	r.POST("/webhooks/vapi", h.VapiWebhook)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW, rbac.RequireTenant())
	{
		v1.GET("/me", h.GetMe)
		v1.PATCH("/me", h.PatchMe)

		tenant := v1.Group("")
		tenant.Use(rbac.RequireAnyRole(rbac.RoleUser))

		campaigns := tenant.Group("/campaigns")
		{
			campaigns.GET("", h.ListCampaigns)
			campaigns.POST("", h.CreateCampaign)
			campaigns.GET("/:id", h.GetCampaign)
			campaigns.POST("/:id/cancel", h.CancelCampaign)
			campaigns.GET("/:id/export", h.ExportCampaign)
		}

		pedidos := tenant.Group("/pedidos")
		{
			pedidos.GET("", h.ListOrders)
			pedidos.POST("", h.CreateOrder)
			pedidos.GET("/:id", h.GetOrder)
			pedidos.PATCH("/:id", h.PatchOrder)
			pedidos.DELETE("/:id", h.DeleteOrder)
		}

		reservaciones := tenant.Group("/reservaciones")
		{
			reservaciones.GET("", h.ListReservations)
			reservaciones.POST("", h.CreateReservation)
			reservaciones.GET("/:id", h.GetReservation)
			reservaciones.PATCH("/:id", h.PatchReservation)
			reservaciones.DELETE("/:id", h.DeleteReservation)
		}

		reports := tenant.Group("/reports")
		{
			reports.GET("/summary", h.ReportSummary)
			reports.GET("/campaigns/:id", h.ReportCampaign)
		}

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.GET("/users", h.ListUsers)
			admin.PATCH("/users/:id", h.PatchUser)
			admin.GET("/plans", h.ListPlans)
		}
	}
}
