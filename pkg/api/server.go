// Package api provides the HTTP and websocket surface for the CKD
// question-answering core: session lifecycle, chat/history queries, and
// streaming chat delivery, following the teacher's echo/v5 server shape
// (pkg/api/server.go) generalized from SRE-alert routes to chat routes.
package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/ckdqa/pkg/config"
	"github.com/codeready-toolchain/ckdqa/pkg/database"
	"github.com/codeready-toolchain/ckdqa/pkg/registry"
	"github.com/codeready-toolchain/ckdqa/pkg/remoteagent"
	"github.com/codeready-toolchain/ckdqa/pkg/router"
	"github.com/codeready-toolchain/ckdqa/pkg/sessionpolicy"
	"github.com/codeready-toolchain/ckdqa/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg      *config.Config
	dbClient *database.Client
	store    *database.Store
	sessions *sessionpolicy.Manager
	reg      *registry.Registry
	router   *router.Router

	dashboardDir string
	remoteHealth *remoteagent.HealthMonitor
}

// SetRemoteHealthMonitor attaches a background remote-agent health monitor
// (spec.md §4.3) whose cached statuses are surfaced on GET /health.
func (s *Server) SetRemoteHealthMonitor(m *remoteagent.HealthMonitor) {
	s.remoteHealth = m
}

// NewServer wires an echo/v5 server over the router, session manager, and
// durable store, then registers routes immediately (SetDashboardDir, if
// called, registers the SPA fallback afterward so API routes win).
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	store *database.Store,
	sessions *sessionpolicy.Manager,
	reg *registry.Registry,
	rt *router.Router,
) *Server {
	e := echo.New()
	s := &Server{
		echo:     e,
		cfg:      cfg,
		dbClient: dbClient,
		store:    store,
		sessions: sessions,
		reg:      reg,
		router:   rt,
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")

	v1.GET("/agents", s.listAgentsHandler)

	v1.POST("/sessions", s.createSessionHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)
	v1.POST("/sessions/:id/reset", s.resetSessionHandler)
	v1.POST("/sessions/:id/cancel", s.cancelSessionHandler)
	v1.POST("/sessions/:id/messages", s.sendMessageHandler)
	v1.GET("/sessions/:id/history", s.sessionHistoryHandler)

	v1.GET("/rooms", s.listRoomsHandler)
	v1.GET("/rooms/:room_id/history", s.roomHistoryHandler)
	v1.GET("/history/:agent_type", s.historyByAgentHandler)

	v1.GET("/ws", s.wsHandler)
}

// SetDashboardDir registers static file serving for a pre-built SPA
// dashboard, same caching strategy as the teacher's setupDashboardRoutes.
func (s *Server) SetDashboardDir(dir string) {
	s.dashboardDir = dir
	s.setupDashboardRoutes()
}

func (s *Server) setupDashboardRoutes() {
	if s.dashboardDir == "" {
		return
	}
	indexPath := filepath.Join(s.dashboardDir, "index.html")
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		slog.Warn("dashboard directory set but index.html not found, skipping static serving", "dir", s.dashboardDir)
		return
	}

	dashFS := os.DirFS(s.dashboardDir)
	if assetsFS, err := fs.Sub(dashFS, "assets"); err == nil {
		s.echo.GET("/assets/*", func(c *echo.Context) error {
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			return c.FileFS(c.Param("*"), assetsFS)
		})
	}

	s.echo.GET("/*", func(c *echo.Context) error {
		path := c.Request().URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/health" {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		c.Response().Header().Set("Cache-Control", "no-cache")
		relPath := strings.TrimPrefix(path, "/")
		if relPath != "" {
			if info, statErr := fs.Stat(dashFS, relPath); statErr == nil && !info.IsDir() {
				return c.FileFS(relPath, dashFS)
			}
		}
		return c.FileFS("index.html", dashFS)
	})
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener,
// used by tests to serve on a random OS-assigned port.
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

func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(reqCtx, s.dbClient.DB())
	status := "healthy"
	httpStatus := http.StatusOK
	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	stats := s.cfg.Stats()
	resp := &HealthResponse{
		Status:   status,
		Version:  version.Full(),
		Database: dbHealth,
		Configuration: ConfigurationStats{
			Agents:       stats.Agents,
			LLMProviders: stats.LLMProviders,
		},
	}
	if s.remoteHealth != nil {
		resp.RemoteAgents = s.remoteHealth.Statuses()
	}
	return c.JSON(httpStatus, resp)
}

func (s *Server) listAgentsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.reg.AgentsInfo())
}
