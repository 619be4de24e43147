package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by New.
type Handlers struct {
	Metrics       *handler.MetricsHandler
	Profiles      *handler.ProfileHandler
	Pairing       *handler.PairingHandler
	Enrollments   *handler.EnrollmentHandler
	Sessions      *handler.SessionHandler
	Meetings      *handler.MeetingHandler
	Notifications *handler.NotificationHandler
	Webhooks      *handler.WebhookHandler
}

// New builds the gin engine with the middleware chain and all routes.
func New(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, auth middleware.TokenValidator, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metrics))
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.POST("/webhooks/video", h.Webhooks.Video)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.JWT(auth))
	admin := middleware.RequireRoles(models.RoleAdmin)

	api.GET("/notifications", h.Notifications.Mine)
	api.GET("/metrics/summary", admin, h.Metrics.Summary)

	profiles := api.Group("/profiles")
	profiles.GET("", admin, h.Profiles.List)
	profiles.POST("", admin, h.Profiles.Create)
	profiles.GET("/:id/matching", middleware.RequireRolesOrSelf(models.RoleAdmin), h.Profiles.Get)
	profiles.PUT("/:id/matching", middleware.RequireRolesOrSelf(models.RoleAdmin), h.Profiles.UpdateMatching)

	pairing := api.Group("/pairing", admin)
	pairing.POST("/requests", h.Pairing.Enqueue)
	pairing.DELETE("/requests/:id", h.Pairing.Withdraw)
	pairing.PATCH("/requests/:id/priority", h.Pairing.SetPriority)
	pairing.GET("/queue", h.Pairing.Queue)
	pairing.POST("/resolve", h.Pairing.Resolve)
	pairing.POST("/clear", h.Pairing.Clear)
	pairing.POST("/reset", h.Pairing.Reset)
	pairing.GET("/matches", h.Pairing.ListMatches)
	pairing.POST("/matches/:id/confirm", h.Pairing.ConfirmMatch)
	pairing.POST("/matches/:id/reject", h.Pairing.RejectMatch)

	enrollments := api.Group("/enrollments", admin)
	enrollments.GET("", h.Enrollments.List)
	enrollments.POST("", h.Enrollments.Create)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.DELETE("/:id", h.Enrollments.Delete)
	enrollments.PUT("/:id/availability", h.Enrollments.UpdateAvailability)

	sessions := api.Group("/sessions", admin)
	sessions.POST("/materialize", h.Sessions.Materialize)
	sessions.GET("", h.Sessions.List)
	sessions.GET("/export", h.Sessions.Export)
	sessions.PUT("/:id/reschedule", h.Sessions.Reschedule)
	sessions.POST("/:id/complete", h.Sessions.Complete)
	sessions.POST("/:id/cancel", h.Sessions.Cancel)

	meetings := api.Group("/meetings", admin)
	meetings.GET("", h.Meetings.List)
	meetings.POST("", h.Meetings.Create)
	meetings.GET("/:id/availability", h.Meetings.Availability)

	return r
}
