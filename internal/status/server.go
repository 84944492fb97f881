// Package status serves local health, status and metrics endpoints.
package status

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Opts holds configuration for the status server.
type Opts struct {
	Port    int
	Version string
	Logger  zerolog.Logger
}

// Start launches the status HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	if opts.Port <= 0 {
		opts.Port = 8090
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts.Version)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	opts.Logger.Info().Str("addr", addr).Msg("status server listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status: %w", err)
	}
	return nil
}

// registerRoutes wires the status endpoints onto the gin router.
func registerRoutes(router *gin.Engine, version string) {
	started := time.Now()

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/statusz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    version,
			"started_at": started.UTC().Format(time.RFC3339),
			"uptime_sec": int(time.Since(started).Seconds()),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
