// Package api exposes the pattern engine over HTTP: matching, screening,
// validation runs and their results.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stock-pattern-engine/config"
	"stock-pattern-engine/internal/auth"
	"stock-pattern-engine/internal/backtest"
	"stock-pattern-engine/internal/cache"
	"stock-pattern-engine/internal/database"
	"stock-pattern-engine/internal/screener"
	"stock-pattern-engine/internal/tasks"
)

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	repo       *database.Repository
	screener   *screener.Screener
	sampler    *backtest.Sampler
	cache      *cache.CacheService // Nil when Redis is disabled
	tracker    *tasks.Tracker
	authSvc    *auth.Service // Nil when auth is disabled
	logger     zerolog.Logger
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	repo *database.Repository,
	scr *screener.Screener,
	sampler *backtest.Sampler,
	cacheSvc *cache.CacheService,
	authSvc *auth.Service,
	logger zerolog.Logger,
) *Server {
	if cfg.ServerConfig.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.ServerConfig.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.ServerConfig.AllowedOrigins, ",")
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		cfg:      cfg,
		repo:     repo,
		screener: scr,
		sampler:  sampler,
		cache:    cacheSvc,
		tracker:  tasks.NewTracker(),
		authSvc:  authSvc,
		logger:   logger,
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/api/auth/token", s.handleTokenExchange)

	api := s.router.Group("/api", auth.Middleware(s.authSvc))
	{
		api.POST("/match", s.handleMatch)
		api.POST("/prescreen", s.handlePrescreen)
		api.POST("/validate", s.handleValidate)
		api.GET("/training/task-status/:name", s.handleTaskStatus)
		api.GET("/results/validation", s.handleValidationResults)
		api.GET("/patterns", s.handleListPatterns)
		api.POST("/patterns", s.handleSavePatterns)
	}
}

// Start runs the HTTP server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ServerConfig.Host, s.cfg.ServerConfig.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.ServerConfig.WriteTimeout) * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
