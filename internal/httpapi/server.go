// Package httpapi provides the HTTP API for landmarkd.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/landmarkd/internal/memory"
	"github.com/fyrsmithlabs/landmarkd/internal/research"
)

// ResearchService is the orchestration dependency of the HTTP surface.
type ResearchService interface {
	GenerateReport(ctx context.Context, req research.Request) (*research.Response, error)
	History(ctx context.Context, conversationID string) ([]research.Response, error)
	DeleteConversation(ctx context.Context, conversationID string) error
}

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	ServiceName string
	Version     string
}

// Server provides the HTTP endpoints for landmarkd.
type Server struct {
	echo    *echo.Echo
	svc     ResearchService
	logger  *zap.Logger
	metrics *HTTPMetrics
	config  *Config
}

// NewServer creates a new HTTP server.
func NewServer(svc ResearchService, logger *zap.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("research service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Port: 8080}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "landmarkd"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	m := NewHTTPMetrics(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(m.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		svc:     svc,
		logger:  logger,
		metrics: m,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api/research")
	api.POST("/generate", s.handleGenerate)
	api.GET("/conversations/:id", s.handleHistory)
	api.DELETE("/conversations/:id", s.handleDelete)
}

// RootResponse is the body for GET /.
type RootResponse struct {
	Application string `json:"application"`
	Version     string `json:"version"`
	Status      string `json:"status"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// DeleteResponse is the body for DELETE /api/research/conversations/:id.
type DeleteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, RootResponse{
		Application: s.config.ServiceName,
		Version:     s.config.Version,
		Status:      "running",
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleGenerate(c echo.Context) error {
	var req research.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid generate request", zap.Error(err))
		return errorJSON(c, http.StatusBadRequest, KindValidation, "invalid request body")
	}
	if req.Query == "" {
		return errorJSON(c, http.StatusBadRequest, KindValidation, "query field is required")
	}

	resp, err := s.svc.GenerateReport(c.Request().Context(), req)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c echo.Context) error {
	id := c.Param("id")
	history, err := s.svc.History(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, memory.ErrConversationNotFound) {
			return errorJSON(c, http.StatusNotFound, KindNotFound,
				fmt.Sprintf("conversation %s not found", id))
		}
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

func (s *Server) handleDelete(c echo.Context) error {
	id := c.Param("id")
	if err := s.svc.DeleteConversation(c.Request().Context(), id); err != nil {
		return s.mapError(c, err)
	}
	// Deleting an absent conversation still succeeds.
	return c.JSON(http.StatusOK, DeleteResponse{
		Status:  "success",
		Message: fmt.Sprintf("conversation %s deleted", id),
	})
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down http server")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance for registering additional
// routes (metrics, debug).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
