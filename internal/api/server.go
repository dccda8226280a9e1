// Package api serves the asynchronous analysis contract over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/busfactor/core/jobs"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/huangsam/busfactor/internal/metrics"
)

// Options tunes the router.
type Options struct {
	RateLimit float64 // Submissions per second per client IP, 0 disables the limiter
	Burst     int
}

// NewRouter wires routes and middleware. collector may be nil.
func NewRouter(svc jobs.Service, collector *metrics.Collector, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(collector), CORS())

	h := &jobHandler{svc: svc}
	r.GET("/healthz", h.health)
	if collector != nil {
		r.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	v1 := r.Group("/api/v1")
	submit := []gin.HandlerFunc{h.submit}
	if opts.RateLimit > 0 {
		submit = append([]gin.HandlerFunc{NewRateLimiter(opts.RateLimit, opts.Burst).Middleware()}, submit...)
	}
	v1.POST("/workspaces/:workspace/analysis", submit...)
	v1.GET("/workspaces/:workspace/analysis", h.latest)
	v1.GET("/jobs/:id", h.status)
	v1.GET("/jobs/:id/result", h.result)
	v1.DELETE("/jobs/:id", h.cancel)
	v1.GET("/stats", h.stats)

	r.NoRoute(func(c *gin.Context) {
		abortWith(c, http.StatusNotFound, "route not found")
	})
	return r
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info().Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
