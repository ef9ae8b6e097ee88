// Package api exposes the HTTP surface of the daemon: job submission and
// inspection, scan triggering, catalog reads, and the live event stream.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"songscout/internal/config"
	"songscout/internal/fetch"
	"songscout/internal/logging"
	"songscout/internal/notify"
	"songscout/internal/store"
)

// Scanner triggers a playlist fetch batch. Satisfied by fetch.Orchestrator.
type Scanner interface {
	FetchAll(ctx context.Context, playlists []*store.Playlist) (*fetch.BatchResult, error)
}

// Server is the daemon's HTTP API.
type Server struct {
	engine  *gin.Engine
	store   *store.Store
	scanner Scanner
	hub     *notify.Hub
	bind    string
	token   string
	logger  *slog.Logger
}

// New builds the API server and registers its routes.
func New(cfg *config.Config, st *store.Store, scanner Scanner, hub *notify.Hub, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	server := &Server{
		engine:  engine,
		store:   st,
		scanner: scanner,
		hub:     hub,
		bind:    cfg.Paths.APIBind,
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		logger:  logging.NewComponentLogger(logger, "api"),
	}
	server.registerRoutes()
	return server
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.bind,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.logger.Info("api listening", logging.String("bind", s.bind))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) registerRoutes() {
	group := s.engine.Group("/api", s.authMiddleware())
	group.POST("/jobs", s.createJob)
	group.GET("/jobs", s.listJobs)
	group.GET("/jobs/:id", s.getJob)
	group.POST("/scans", s.triggerScan)
	group.GET("/tracks", s.listTracks)
	group.GET("/playlists", s.listPlaylists)
	group.POST("/playlists", s.addPlaylist)
	group.GET("/songwriters", s.listSongwriters)
	group.PUT("/songwriters/:id/stage", s.setSongwriterStage)
	group.GET("/events", s.streamEvents)

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// authMiddleware enforces the bearer token when one is configured.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header != "Bearer "+s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		c.Next()
	}
}
