// Package api exposes the Guard's inbound HTTP surface: the signed
// webhook endpoint and a liveness/health check.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/sadguard/sadguard/pkg/database"
	"github.com/sadguard/sadguard/pkg/orchestrator"
	"github.com/sadguard/sadguard/pkg/version"
)

// maxWebhookBodyBytes caps inbound webhook payloads well above a typical
// pull_request event (file diffs included) while rejecting abuse.
const maxWebhookBodyBytes = 5 * 1024 * 1024

// Server is the Guard's HTTP API server.
type Server struct {
	echo          *echo.Echo
	httpServer    *http.Server
	dbClient      *database.Client
	orchestrator  *orchestrator.Orchestrator
	webhookSecret []byte
}

// NewServer creates a Server wired to orch and ready to verify webhooks
// signed with webhookSecret.
func NewServer(dbClient *database.Client, orch *orchestrator.Orchestrator, webhookSecret []byte) *Server {
	e := echo.New()

	s := &Server{
		echo:          e,
		dbClient:      dbClient,
		orchestrator:  orch,
		webhookSecret: webhookSecret,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(maxWebhookBodyBytes))

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/webhook/test", s.webhookTestHandler)
	s.echo.POST("/webhook/", s.webhookHandler)
}

// Start serves HTTP on addr and blocks until the server stops; callers
// that need to keep working run it in its own goroutine.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener,
// used by tests binding to an OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version"`
	Database *database.HealthStatus `json:"database,omitempty"`
}

func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(reqCtx, s.dbClient.DB())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, &HealthResponse{
			Status:   "unhealthy",
			Database: dbHealth,
		})
	}

	return c.JSON(http.StatusOK, &HealthResponse{
		Status:   "healthy",
		Version:  version.Full(),
		Database: dbHealth,
	})
}
