// Package server exposes run status, health and metrics while an ingestion runs.
package server

import (
	"context"
	"net/http"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/config"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/ingest"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/logger"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// RunStatus is the view of a run the status routes need.
type RunStatus interface {
	Ready(ctx context.Context) error
	Progress() ingest.RunReport
}

// Dependencies groups what the status router serves.
type Dependencies struct {
	Config   config.Config
	Run      RunStatus
	Gatherer prometheus.Gatherer
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())

	router.GET("/health/live", live)
	router.GET("/health/ready", ready(deps.Run))
	if deps.Gatherer != nil {
		metrics.Register(router, deps.Config.Metrics.PrometheusPath, deps.Gatherer)
	}

	api := router.Group("/v1")
	api.GET("/progress", progress(deps.Run))

	return router
}

func progress(run RunStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := run.Progress()
		c.JSON(http.StatusOK, gin.H{
			"run_id":           report.RunID,
			"total":            report.Total,
			"processed":        report.Processed,
			"failed":           report.Failed,
			"deleted":          report.Deleted,
			"dry_run":          report.DryRun,
			"started":          report.Started,
			"elapsed_seconds":  report.Elapsed.Seconds(),
			"items_per_second": report.Throughput(),
			"eta_seconds":      report.ETA().Seconds(),
		})
	}
}

// New wraps the router in an http.Server configured from cfg.
func New(cfg config.StatusConfig, router http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
