package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"swapStreamApp/internal/domain/model"
)

// Feed is what the server exposes for one bridge.
type Feed interface {
	Handler() http.HandlerFunc
	Stats() *model.BridgeStats
}

// Server represents an HTTP server with all routes configured
type Server struct {
	feed   Feed
	engine *gin.Engine
	server *http.Server
	log    *slog.Logger
}

// NewServer creates a new HTTP server with configured routes. Subscribers
// connect on "/" or "/ws".
func NewServer(addr string, feed Feed, log *slog.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		feed:   feed,
		engine: engine,
		log:    log,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}

	s.registerRoutes()

	return s
}

// registerRoutes configures all HTTP routes
func (s *Server) registerRoutes() {
	ws := gin.WrapF(s.feed.Handler())
	s.engine.GET("/", ws)
	s.engine.GET("/ws", ws)

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/stats", s.handleStats)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.feed.Stats())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.log.Info("http server listening", slog.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
