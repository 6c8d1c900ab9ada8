package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ginjaninja78/transmittal-log/internal/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine serving api.
func NewRouter(api API, cfg config.ServerConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(Recovery(logger))
	r.Use(RequestID())
	r.Use(AccessLog(logger))

	h := NewHandler(api, NewIdempotencyCache(cfg.IdempotencyTTL))

	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/sources", h.ListSources)

		search := []gin.HandlerFunc{h.Search}
		if cfg.SearchRate > 0 {
			search = append([]gin.HandlerFunc{RateLimit(NewClientLimiter(cfg.SearchRate, cfg.SearchBurst, DefaultClientIdle))}, search...)
		}
		v1.GET("/search", search...)

		transmittals := v1.Group("/transmittals")
		{
			transmittals.POST("", h.Append)
			transmittals.POST("/allocate", h.Allocate)
			transmittals.POST("/preview", h.Preview)
			transmittals.GET("/pending", h.Pending)
			transmittals.POST("/:no/render", h.Rerender)
		}
	}

	return r
}

// Server runs the HTTP API until its context is cancelled.
type Server struct {
	srv    *http.Server
	cfg    config.ServerConfig
	logger *zap.Logger
}

// NewServer wraps handler in an http.Server configured from cfg.
func NewServer(handler http.Handler, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
