package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/assesshub/codexec/config"
	"github.com/assesshub/codexec/engine"
)

// Service is the engine surface the HTTP layer depends on.
type Service interface {
	ExecuteCode(ctx context.Context, req *engine.ExecutionRequest) (*engine.ExecutionResult, error)
	ValidateSyntax(ctx context.Context, req *engine.ValidationRequest) (*engine.ValidationResult, error)
	GetSupportedLanguages() []engine.LanguageInfo
	BuildImages(ctx context.Context) error
	CleanupOrphanedContainers(ctx context.Context) (int, error)
}

// Server wraps the HTTP listener and its routes.
type Server struct {
	logger *zap.Logger
	svc    Service
	http   *http.Server
}

// New creates the HTTP server. It does not start listening; use Start.
func New(logger *zap.Logger, cfg *config.Config, svc Service) *Server {
	if cfg.Logging.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{logger: logger, svc: svc}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes(router)

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.http.Addr))
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped unexpectedly", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	v1.POST("/execute", s.handleExecute)
	v1.POST("/validate", s.handleValidate)
	v1.GET("/languages", s.handleLanguages)

	admin := v1.Group("/admin")
	admin.POST("/images/build", s.handleBuildImages)
	admin.POST("/containers/cleanup", s.handleCleanupContainers)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleExecute(c *gin.Context) {
	var req engine.ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	result, err := s.svc.ExecuteCode(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleValidate(c *gin.Context) {
	var req engine.ValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	result, err := s.svc.ValidateSyntax(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": s.svc.GetSupportedLanguages()})
}

func (s *Server) handleBuildImages(c *gin.Context) {
	if err := s.svc.BuildImages(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCleanupContainers(c *gin.Context) {
	removed, err := s.svc.CleanupOrphanedContainers(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// writeError maps engine errors to HTTP responses. Validation failures are
// the client's fault; everything else is a 500 with the detail kept server
// side.
func (s *Server) writeError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("request failed",
		zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
