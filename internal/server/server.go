package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/gravadigital/polls-api/internal/archive"
	"github.com/gravadigital/polls-api/internal/auth"
	"github.com/gravadigital/polls-api/internal/config"
	"github.com/gravadigital/polls-api/internal/handlers"
	"github.com/gravadigital/polls-api/internal/identity"
	"github.com/gravadigital/polls-api/internal/logger"
	"github.com/gravadigital/polls-api/internal/middleware/events"
	"github.com/gravadigital/polls-api/internal/middleware/ratelimit"
	"github.com/gravadigital/polls-api/internal/response"
	"github.com/gravadigital/polls-api/internal/services"
	"github.com/gravadigital/polls-api/internal/storage/postgres"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	config     *config.Config
	repos      postgres.RepositoryContainer
	router     *gin.Engine
}

// New wires services and handlers on top of the repositories
func New(cfg *config.Config, repos postgres.RepositoryContainer, archiver archive.Archiver) (*Server, error) {
	sessions, err := auth.NewSessionManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid session configuration: %w", err)
	}

	s := &Server{
		config: cfg,
		repos:  repos,
	}
	s.router = s.setupRouter(sessions, archiver)
	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    ":" + s.config.Server.Port,
		Handler: s.router,

		// Timeouts seguros según estándares de Go
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Get().Info("Starting HTTP server", "port", s.config.Server.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	logger.Get().Info("Shutting down HTTP server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// setupRouter configures the HTTP router with middleware and routes
func (s *Server) setupRouter(sessions *auth.SessionManager, archiver archive.Archiver) *gin.Engine {
	// Configurar Gin
	if s.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if s.config.Server.GinMode != "" {
		gin.SetMode(s.config.Server.GinMode)
	}

	router := gin.New()

	// Middleware básico
	router.Use(events.CreateEvent())
	router.Use(gin.Recovery())

	// CORS middleware
	if origins := config.SplitList(s.config.CORS.AllowOrigins); len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		if methods := config.SplitList(s.config.CORS.AllowMethods); len(methods) > 0 {
			corsConfig.AllowMethods = methods
		}
		if headers := config.SplitList(s.config.CORS.AllowHeaders); len(headers) > 0 {
			corsConfig.AllowHeaders = headers
		}
		corsConfig.AllowCredentials = true
		router.Use(cors.New(corsConfig))
	}

	// Inicializar servicios
	pollService := services.NewPollService(s.repos.Polls(), s.repos.Votes(), archiver, services.PollServiceConfig{
		DefaultPageSize: s.config.Polls.DefaultPageSize,
		MaxPageSize:     s.config.Polls.MaxPageSize,
		EnforceExpiry:   s.config.Polls.EnforceExpiry,
	})
	authService := services.NewAuthService(s.repos.Users(), auth.NewPasswordHasher(0), sessions)

	// Inicializar handlers
	resolver := identity.NewResolver(s.config, sessions)
	pollHandler := handlers.NewPollHandler(pollService, resolver)
	authHandler := handlers.NewAuthHandler(authService, s.config)

	// Health check
	router.GET("/ping", s.ping)

	s.setupAuthRoutes(router, authHandler)
	s.setupPollRoutes(router, pollHandler)

	router.NoRoute(func(c *gin.Context) {
		response.NotFoundError(c, "Route not found")
	})

	return router
}

func (s *Server) ping(c *gin.Context) {
	if err := s.repos.Health(c.Request.Context()); err != nil {
		logger.HTTP().Error("Health check failed", "error", err)
		response.ErrorResponseWithMessage(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Polls API is running",
		"status":  "healthy",
	})
}

func (s *Server) setupAuthRoutes(router *gin.Engine, authHandler *handlers.AuthHandler) {
	loginLimiter := ratelimit.NewKeyedLimiter(s.config.Auth.LoginRatePerMinute, s.config.Auth.LoginBurst)

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", ratelimit.PerClient(loginLimiter), authHandler.Login)
		authRoutes.POST("/logout", authHandler.Logout)
	}
}

func (s *Server) setupPollRoutes(router *gin.Engine, pollHandler *handlers.PollHandler) {
	polls := router.Group("/polls")
	{
		polls.GET("", pollHandler.ListPolls)
		polls.POST("", pollHandler.CreatePoll)
		polls.GET("/:id", pollHandler.GetPoll)
		polls.GET("/:id/results", pollHandler.GetResults)
		polls.POST("/:id/vote", pollHandler.Vote)
		polls.POST("/:id/delete", pollHandler.DeletePoll)
	}

	router.GET("/dashboard", pollHandler.Dashboard)
}
