// Package api provides the HTTP API server for Tagscope.
// It uses the Echo framework to accept containers for analysis, serve the
// cached reports, and push re-analysis results over WebSocket.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"evalgo.org/tagscope/internal/analysis"
	"evalgo.org/tagscope/internal/audit"
	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/internal/version"
)

// Server represents the Tagscope API server.
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	engine  *analysis.Engine
	wsHub   *Hub
	reports *lru.Cache[string, *analysis.Report]
	audit   *audit.Logger
	logger  *slog.Logger
	started time.Time

	// requestLog receives the echo request log lines
	requestLog io.Writer
}

// Option customizes a Server.
type Option func(*Server)

// WithRequestLog redirects the request log, which defaults to stdout.
func WithRequestLog(w io.Writer) Option {
	return func(s *Server) { s.requestLog = w }
}

// New creates a new API server instance. auditLog may be nil.
func New(cfg *config.Config, engine *analysis.Engine, auditLog *audit.Logger, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Server.Debug
	e.HTTPErrorHandler = HTTPErrorHandler

	server := &Server{
		echo:    e,
		config:  cfg,
		engine:  engine,
		wsHub:   NewHub(logger),
		audit:   auditLog,
		logger:  logger,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(server)
	}

	if cfg.Cache.Enabled && cfg.Cache.Size > 0 {
		cache, err := lru.New[string, *analysis.Report](cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to create report cache: %w", err)
		}
		server.reports = cache
	}

	go server.wsHub.Run()

	server.setupMiddleware()
	server.setupRoutes()

	return server, nil
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
		Output: s.requestLog,
	}))

	s.echo.Use(middleware.Recover())

	s.echo.Use(SecurityHeaders)

	if len(s.config.Security.AllowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.config.Security.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	s.echo.Use(middleware.RequestID())

	if s.config.Server.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(s.config.Server.BodyLimit))
	}

	if s.config.Security.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(s.config.Security.RateLimit),
		)))
	}

	s.echo.Use(ValidateContentType)
	s.echo.Use(ValidateAcceptHeader)
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	v1 := s.echo.Group("/api/v1")

	v1.POST("/analyze", s.analyze)

	reports := v1.Group("/reports")
	reports.GET("/:id", s.getReport, ValidateReportID)
	reports.GET("/:id/issues", s.listIssues, ValidateReportID, ValidateIssueQuery)

	v1.GET("/audit", s.listAudit)

	ws := v1.Group("/ws")
	ws.GET("/reports", s.HandleWebSocket)
	ws.GET("/stats", s.GetWebSocketStats)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.logger.Info("starting tagscope api server",
		"address", "http://"+addr,
		"cache", s.reports != nil,
		"audit", s.audit.Enabled(),
		"debug", s.config.Server.Debug)

	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout

	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down tagscope api server")

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	s.wsHub.Stop()

	if err := s.audit.Close(); err != nil {
		return fmt.Errorf("error closing audit log: %w", err)
	}
	return nil
}

// Publish caches r and pushes its summary to the WebSocket clients.
func (s *Server) Publish(eventType ReportEventType, source string, r *analysis.Report) {
	if s.reports != nil {
		s.reports.Add(r.ID, r)
	}
	if err := s.wsHub.BroadcastEvent(ReportEvent{Type: eventType, Data: Summarize(source, r)}); err != nil {
		s.logger.Error("failed to broadcast report event", "report", r.ID, "error", err)
	}
}

// Report returns a cached report.
func (s *Server) Report(id string) (*analysis.Report, bool) {
	if s.reports == nil {
		return nil, false
	}
	return s.reports.Get(id)
}

// healthCheck handles health check requests.
func (s *Server) healthCheck(c echo.Context) error {
	cached := 0
	if s.reports != nil {
		cached = s.reports.Len()
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:           "healthy",
		Service:          "tagscope",
		Version:          version.Get().Version,
		Uptime:           time.Since(s.started).Round(time.Second).String(),
		CachedReports:    cached,
		WebSocketClients: s.wsHub.ClientCount(),
	})
}

// ServeHTTP allows Server to implement http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
