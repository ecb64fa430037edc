package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/manuphatak/talks/internal/app"
	iauth "github.com/manuphatak/talks/internal/auth"
	"github.com/manuphatak/talks/internal/handlers"
	"github.com/manuphatak/talks/internal/middleware"
	"github.com/manuphatak/talks/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}

	auditService, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	userService, err := services.NewUserService(db, auditService)
	if err != nil {
		return nil, err
	}
	talkService, err := services.NewTalkService(db, auditService)
	if err != nil {
		return nil, err
	}
	queueService, err := services.NewEmailQueueService(db, jwt,
		services.WithQueueBaseURL(cfg.Server.BaseURL))
	if err != nil {
		return nil, err
	}
	commentService, err := services.NewCommentService(db, queueService, jwt, auditService)
	if err != nil {
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(userService, jwt)
	auditHandler := handlers.NewAuditHandler(auditService, userService)
	userHandler := handlers.NewUserHandler(userService, talkService)
	talkHandler := handlers.NewTalkHandler(talkService, userService)
	commentHandler := handlers.NewCommentHandler(commentService, talkService, userService)

	requireAuth := middleware.Auth(jwt)
	optionalAuth := middleware.OptionalAuth(jwt)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// Public catalogue routes. Optional auth lets presenters see their own
	// unapproved comments and post under their identity.
	public := r.Group("/api")
	public.Use(optionalAuth)
	{
		public.GET("/talks", talkHandler.List)
		public.GET("/talks/:id", talkHandler.Get)
		public.GET("/talks/:id/comments", commentHandler.ListForTalk)
		public.POST("/talks/:id/comments", commentHandler.Create)
		public.GET("/users/:username", userHandler.GetProfile)
		public.GET("/unsubscribe", commentHandler.Unsubscribe)
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(requireAuth)
	{
		api.GET("/auth/me", authHandler.Me)
		api.POST("/tokens", authHandler.APIToken)

		api.PATCH("/profile", userHandler.UpdateProfile)
		api.POST("/profile/password", userHandler.ChangePassword)

		api.POST("/talks", talkHandler.Create)
		api.PATCH("/talks/:id", talkHandler.Update)
		api.DELETE("/talks/:id", talkHandler.Delete)

		api.GET("/moderation", commentHandler.ModerationQueue)
		api.POST("/comments/:id/approve", commentHandler.Approve)
		api.DELETE("/comments/:id", commentHandler.Delete)

		api.GET("/audit", auditHandler.List)
	}

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
