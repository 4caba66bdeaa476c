// Package server exposes the interaction controller over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentkernel/society/internal/editor"
	"github.com/agentkernel/society/internal/graph"
	"github.com/agentkernel/society/internal/logging"
)

// Options configures a Server.
type Options struct {
	Controller *editor.Controller
	Logger     *slog.Logger
	// Registry receives the metrics; nil creates a private one.
	Registry *prometheus.Registry
	// CORSOrigin is the allowed browser origin; "" or "*" allows all.
	CORSOrigin string
	// Persist runs after every successful mutating request.
	Persist func() error
	Version string
}

// Server serves the editor API.
type Server struct {
	ctl      *editor.Controller
	store    *graph.Store
	log      *slog.Logger
	persist  func() error
	version  string
	engine   *gin.Engine
	registry *prometheus.Registry
	metrics  *Metrics
	hub      *hub
	upgrader websocket.Upgrader
	unsub    func()

	// mu serializes mutating requests so multi-step gestures such as
	// delete-selection observe a stable selection.
	mu sync.Mutex
}

// New builds the gin engine and subscribes to the store.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		ctl:      opts.Controller,
		store:    opts.Controller.Store(),
		log:      opts.Logger,
		persist:  opts.Persist,
		version:  opts.Version,
		registry: opts.Registry,
		metrics:  MustNewMetrics(opts.Registry),
		hub:      newHub(),
		upgrader: newUpgrader(opts.CORSOrigin),
	}
	s.metrics.setDirty(s.store.IsDirty())
	s.unsub = s.store.Subscribe(func(c graph.Change) {
		s.metrics.mutations.WithLabelValues(string(c.Kind)).Inc()
		s.metrics.setDirty(c.Dirty)
		s.hub.broadcast(c)
	})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(corsConfig(opts.CORSOrigin)))
	engine.Use(s.requestContext(), s.instrument(), s.serializeWrites())
	s.engine = engine
	s.routes()
	return s
}

func corsConfig(origin string) cors.Config {
	cfg := cors.DefaultConfig()
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{origin}
	}
	cfg.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	cfg.AllowWebSockets = true
	return cfg
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	api.GET("/graph", s.handleGraph)
	api.GET("/stats", s.handleStats)
	api.GET("/events", s.handleEvents)

	agents := api.Group("/agents")
	{
		agents.POST("", s.handleAddAgent)
		agents.GET("/:id", s.handleShowAgent)
		agents.PATCH("/:id", s.handleUpdateAgent)
		agents.PUT("/:id/position", s.handleMoveAgent)
		agents.DELETE("/:id", s.handleRemoveAgent)
	}

	relations := api.Group("/relations")
	{
		relations.POST("", s.handleConnect)
		relations.PATCH("/:id", s.handleUpdateRelation)
		relations.DELETE("/:id", s.handleRemoveRelation)
	}

	api.POST("/selection", s.handleSelect)
	api.DELETE("/selection", s.handleClearSelection)
	api.POST("/delete", s.handleDelete)
	api.POST("/clear", s.handleClear)

	api.GET("/export", s.handleExport)
	api.POST("/save", s.handleSave)
	api.POST("/import", s.handleImport)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Close detaches from the store and ends every change stream.
func (s *Server) Close() {
	if s.unsub != nil {
		s.unsub()
	}
	s.hub.close()
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("editor api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen %s: %w", addr, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("editor api stopped")
	return nil
}

// ─── Middleware ───

func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		s.metrics.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		s.metrics.latency.WithLabelValues(route).Observe(elapsed.Seconds())

		logging.FromContext(c.Request.Context(), s.log).Debug("request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"elapsed", elapsed)
	}
}

// serializeWrites holds the write lock for mutating requests and persists
// the workspace after the ones that succeeded. Export is a GET but clears
// the dirty flag, so it counts as a write.
func (s *Server) serializeWrites() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if c.FullPath() != "/api/export" {
				c.Next()
				return
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		c.Next()

		if s.persist == nil || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		if err := s.persist(); err != nil {
			logging.FromContext(c.Request.Context(), s.log).Warn("persist workspace", "err", err)
		}
	}
}
