package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sellerpulse/internal/api"
	"sellerpulse/internal/config"
	"sellerpulse/internal/exporter"
	"sellerpulse/internal/importer"
	"sellerpulse/internal/logging"
	"sellerpulse/internal/store"
)

const shutdownTimeout = 30 * time.Second

// Server HTTP server.
type Server struct {
	router *gin.Engine
	store  *store.Store
	api    *api.Handler
	log    *zap.Logger

	httpServer *http.Server
}

// NewServer opens the database in the configured data directory and wires
// the API. The caller closes the server.
func NewServer(cfg *config.AppConfig, log *zap.Logger) (*Server, error) {
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	st, err := store.New(config.DBPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return New(st, cfg, log, filepath.Join(dataDir, "exports")), nil
}

// New wires a server around an open store.
func New(st *store.Store, cfg *config.AppConfig, log *zap.Logger, exportDir string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := api.NewHandler(
		st,
		importer.NewCoordinator(st, log),
		exporter.NewExporter(st, cfg.Export.TemplatePath),
		log,
		api.Options{MaxUploadBytes: cfg.MaxUploadBytes(), ExportDir: exportDir},
	)

	s := &Server{
		router: gin.New(),
		store:  st,
		api:    handler,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), logging.RequestLogger(s.log.Named("http")))

	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.router.GET("/healthz", func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := s.router.Group("/api")
	{
		s.api.RegisterRoutes(group)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found: " + c.Request.URL.Path})
	})
}

// Handler the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Close releases the database.
func (s *Server) Close() error {
	return s.store.Close()
}

// GetStore returns the store (used by tests).
func (s *Server) GetStore() *store.Store {
	return s.store
}
