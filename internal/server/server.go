// Package server exposes the rewinder over HTTP for test drivers that are
// not written in Go, such as browser suites spawned by the root process.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dbsmedya/gorewinder/internal/logger"
	"github.com/dbsmedya/gorewinder/internal/tracker"
	"github.com/dbsmedya/gorewinder/internal/types"
)

// Backend is the rewinder surface the server drives.
type Backend interface {
	Clean(ctx context.Context) error
	CleanAll(ctx context.Context) error
	RecordInsertedTable(sql string)
	TrackedTables() (*types.TableSet, error)
}

// Server wraps gin.Engine with graceful shutdown support.
type Server struct {
	Engine      *gin.Engine
	httpServer  *http.Server
	listener    net.Listener
	addr        string
	shutdownDur time.Duration
	backend     Backend
	logger      *logger.Logger
}

// Option configures a Server.
type Option func(*Server)

func WithAddress(addr string) Option             { return func(s *Server) { s.addr = addr } }
func WithShutdownTimeout(d time.Duration) Option { return func(s *Server) { s.shutdownDur = d } }
func WithLogger(l *logger.Logger) Option         { return func(s *Server) { s.logger = l } }

// New creates a server for backend with its routes registered.
func New(backend Backend, opts ...Option) *Server {
	s := &Server{
		addr:        "127.0.0.1:7357",
		shutdownDur: 5 * time.Second,
		backend:     backend,
		logger:      logger.NewDefault(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !s.logger.DebugEnabled() {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logWriter{s.logger}
	gin.DefaultErrorWriter = logWriter{s.logger}

	g := gin.New()
	g.Use(gin.RecoveryWithWriter(logWriter{s.logger}))
	g.Use(RequestLogger(s.logger))
	s.Engine = g
	s.registerRoutes()

	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Engine}
	return s
}

// logWriter adapts gin's writer to the zap logger.
type logWriter struct {
	logger *logger.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.logger.Info(msg)
	}
	return len(p), nil
}

// RequestLogger logs basic request info at debug level.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugw("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"latency", time.Since(start),
		)
	}
}

func (s *Server) registerRoutes() {
	s.Engine.POST("/clean", s.handleClean)
	s.Engine.POST("/clean_all", s.handleCleanAll)
	s.Engine.POST("/record", s.handleRecord)
	s.Engine.GET("/tracked", s.handleTracked)
	s.Engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
}

func (s *Server) handleClean(c *gin.Context) {
	if err := s.backend.Clean(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCleanAll(c *gin.Context) {
	if err := s.backend.CleanAll(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRecord(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty statement"})
		return
	}
	s.backend.RecordInsertedTable(string(body))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTracked(c *gin.Context) {
	tables, err := s.backend.TrackedTables()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables.Names()})
}

// fail maps root-process violations to 409 and everything else to 500.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, tracker.ErrNotRootProcess) {
		status = http.StatusConflict
	}
	s.logger.Errorw("request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(status, gin.H{"error": err.Error()})
}

// Start binds the address and serves in the background. Bind errors are
// returned directly.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("server error", "error", err)
		}
	}()
	s.logger.Infow("Control API started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, s.shutdownDur)
	defer cancel()
	return s.httpServer.Shutdown(ctxTimeout)
}
