package router

import (
	"ai-character-chat/backend/internal/api"
	"ai-character-chat/backend/internal/ws"
	"ai-character-chat/backend/pkg/config"
	"ai-character-chat/backend/pkg/di"
	"ai-character-chat/backend/pkg/errors"
	"ai-character-chat/backend/pkg/health"
	"ai-character-chat/backend/pkg/logger"
	"ai-character-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
	Health    *health.Checker
}

// New creates a new router with the given container
func New(container *di.Container, cfg *config.Config) *Router {
	logger.SetGlobal(container.Logger)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Logger first so every request gets a request-scoped logger
	engine.Use(middleware.RequestID())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: middleware.DefaultRateLimiterOptions().ExpiryDuration,
		KeyFunc:        middleware.DefaultRateLimiterOptions().KeyFunc,
	})
	engine.Use(rateLimiter.Middleware())

	checker := health.NewChecker(container.Logger, cfg.Database.Timeout)
	checker.RegisterDatabaseCheck(func() error {
		sqlDB, err := container.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	if container.Redis != nil {
		checker.RegisterCacheCheck(container.Redis.Ping)
	}
	checker.Start()

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
		Health:    checker,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	characterHandler := api.NewCharacterHandler(r.Container.CharacterService)
	chatHandler := api.NewChatHandler(r.Container.ChatService)
	wsHandler := ws.NewHandler(r.Container.ChatService, r.Logger)

	v1 := r.Engine.Group("/api/v1")
	{
		v1.GET("/health", r.healthCheckHandler())

		characterRoutes := v1.Group("/characters")
		{
			characterRoutes.POST("", characterHandler.CreateCharacter)
			characterRoutes.GET("", characterHandler.ListCharacters)
			characterRoutes.GET("/:id", characterHandler.GetCharacter)
			characterRoutes.POST("/:id/chat", chatHandler.Chat)
			characterRoutes.GET("/:id/messages", chatHandler.GetMessages)
		}
	}

	// WebSocket transport for clients that prefer a duplex connection
	r.Engine.GET("/ws/chat", wsHandler.ServeChat)
}

// healthCheckHandler reports component status from the background checker
func (r *Router) healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := 200
		if !r.Health.IsSystemHealthy() {
			status = 503
		}
		c.JSON(status, gin.H{
			"status":     string(healthStatus(r.Health.IsSystemHealthy())),
			"components": r.Health.GetStatus(),
		})
	}
}

func healthStatus(healthy bool) health.Status {
	if healthy {
		return health.StatusUp
	}
	return health.StatusDown
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
