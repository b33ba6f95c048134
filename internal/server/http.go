package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBodySizeLimit applies when Config.BodySizeLimit is empty.
const DefaultBodySizeLimit = "1M"

const defaultMetricsPath = "/metrics"

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MasterKey       string // Optional: Master key for authentication
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   string // Max request body size, e.g. "1M" (default: 1M)
	Logger          *slog.Logger
}

// New creates a new HTTP server
func New(resolver Resolver, guard QuotaReporter, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := NewHandler(resolver, guard)

	authSkipPaths := []string{"/health"}
	metricsRoute := metricsPath(cfg.MetricsEndpoint)
	if cfg.MetricsEnabled {
		authSkipPaths = append(authSkipPaths, metricsRoute)
	}

	// Global middleware stack (order matters)
	e.Use(RequestIDMiddleware())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", c.Response().Header().Get(requestIDHeader),
			}
			if src := c.Response().Header().Get(HeaderAdviceSource); src != "" {
				attrs = append(attrs, "source", src)
			}
			if v.Error != nil {
				logger.Error("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	bodySizeLimit := DefaultBodySizeLimit
	if cfg.BodySizeLimit != "" {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(bodySizeLimit))

	if cfg.MasterKey != "" {
		e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		e.GET(metricsRoute, echo.WrapHandler(promhttp.Handler()))
	}

	// API routes
	v1 := e.Group("/v1")
	v1.GET("/location", handler.Location)
	v1.GET("/price-suggestion", handler.PriceSuggestion)
	v1.GET("/weather-advice", handler.WeatherAdvice)
	v1.GET("/quota", handler.Quota)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// metricsPath normalizes the configured endpoint. Paths that would shadow
// API routes fall back to /metrics.
func metricsPath(endpoint string) string {
	if endpoint == "" {
		return defaultMetricsPath
	}
	p := path.Clean("/" + endpoint)
	if p == "/" || p == "/health" || p == "/v1" || strings.HasPrefix(p, "/v1/") {
		return defaultMetricsPath
	}
	return p
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
