// Package server provides HTTP server setup and configuration.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/akorchak/groundlink/internal/auth"
	"github.com/akorchak/groundlink/internal/config"
	"github.com/akorchak/groundlink/internal/handlers"
	"github.com/akorchak/groundlink/internal/hub"
	"github.com/akorchak/groundlink/internal/middleware"
	"github.com/akorchak/groundlink/internal/repository"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check if request ID already exists in header
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			// Generate new UUID for request ID
			requestID = uuid.New().String()
		}

		// Set request ID in context and response header
		c.Set("RequestID", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// NewRateLimitMiddleware creates a rate limiting middleware using ulule/limiter.
// It allows 100 requests per minute per IP address.
func NewRateLimitMiddleware() gin.HandlerFunc {
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  100,
	}

	store := memory.NewStore()
	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance)
}

// Dependencies holds all dependencies needed to create a server
type Dependencies struct {
	Config       *config.Config
	Verifier     auth.Verifier
	Commander    handlers.DroneCommander
	Hub          *hub.Hub
	DroneRepo    repository.DroneRepository
	UserRepo     repository.UserRepository
	DBHealth     handlers.HealthChecker // optional
	WriterHealth handlers.WriterHealth  // optional
}

// New creates a new Gin router with all routes configured
func New(deps *Dependencies) *gin.Engine {
	// Set Gin to release mode to disable ANSI colors in logs
	gin.SetMode(gin.ReleaseMode)

	// Use gin.New() instead of gin.Default() to have explicit control over middleware
	router := gin.New()

	// Add recovery middleware (without colored output)
	router.Use(gin.Recovery())

	// Add logger middleware without colored output
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(_ gin.LogFormatterParams) string {
			return ""
		},
		Output:    nil,
		SkipPaths: []string{"/health"},
	}))

	// Add CORS middleware for web client support
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Add middlewares
	router.Use(RequestIDMiddleware())
	router.Use(NewRateLimitMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(deps.Verifier)
	commandRateLimiter := middleware.NewCommandRateLimitMiddleware()

	// Initialize handlers
	droneHandler := handlers.NewDroneHandler(deps.Commander)
	adminHandler := handlers.NewAdminHandler(deps.Commander, deps.DroneRepo, deps.UserRepo)
	healthHandler := handlers.NewHealthHandler(deps.DBHealth, deps.WriterHealth)

	// Health check endpoint
	router.GET("/health", healthHandler.Check)

	// Bidirectional subscriber channel
	router.GET("/ws/drone", deps.Hub.ServeWS)

	// Vehicle command surface, mirroring the channel vocabulary
	droneGroup := router.Group("/drone")
	droneGroup.Use(authMiddleware.Required())
	{
		droneGroup.POST("/connect", droneHandler.Connect)
		droneGroup.POST("/disconnect", droneHandler.Disconnect)
		droneGroup.GET("/status", droneHandler.Status)
		droneGroup.POST("/arm", droneHandler.Arm)
		droneGroup.POST("/disarm", droneHandler.Disarm)
		droneGroup.POST("/set-mode", droneHandler.SetMode)
	}

	// Vehicle registration
	userGroup := router.Group("/user/drone")
	userGroup.Use(authMiddleware.Required())
	{
		userGroup.POST("/register", commandRateLimiter, droneHandler.Register)
		userGroup.POST("/disconnect", droneHandler.Disconnect)
	}

	// Fleet administration
	adminGroup := router.Group("/admin")
	adminGroup.Use(authMiddleware.AdminRequired())
	{
		adminGroup.GET("/drones", adminHandler.ListDrones)
		adminGroup.POST("/message/send", commandRateLimiter, adminHandler.SendMessage)
	}

	return router
}

// Run starts an HTTP server for the router. Kept as a helper so main can
// wire graceful shutdown around the raw http.Server.
func Run(router *gin.Engine, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
