package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/config"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/derivative"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/ingest"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/metadata"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/metrics"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/remote"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/scanner"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/server"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/storage"
	"go.uber.org/zap"
)

// app holds the wired runner and everything that must be released afterwards.
type app struct {
	runner  *ingest.Runner
	scanner *scanner.Scanner
	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	a := &app{scanner: scanner.New(cfg.Scan.Extensions, cfg.Scan.MarkerSuffix, cfg.Scan.MaxDepth)}

	var syncer remote.Syncer
	if cfg.Mode == config.ModeProduction && !cfg.DryRun {
		s, err := newSyncer(ctx)
		if err != nil {
			return nil, err
		}
		syncer = s
	}

	pool := metadata.OpenPool(cfg.Metadata.ExifToolPath, cfg.Metadata.Workers, log)
	extractor := metadata.NewExtractor(pool, log)
	a.closers = append(a.closers, func() {
		if err := extractor.Close(); err != nil {
			log.Warn("close metadata readers", zap.Error(err))
		}
	})

	var confirmer ingest.Confirmer = ingest.PromptConfirmer{In: os.Stdin, Out: os.Stdout}
	if cfg.AssumeYes {
		confirmer = ingest.AutoConfirm{}
	}

	m := metrics.NewRun()
	a.runner = ingest.NewRunner(ingest.Dependencies{
		Config:   cfg,
		RunID:    runID,
		Scanner:  a.scanner,
		Metadata: extractor,
		Derivatives: derivative.NewGenerator(derivative.Options{
			ThumbnailDir:   cfg.ThumbnailsDir(),
			ThumbnailWidth: cfg.Derivative.ThumbnailWidth,
			Quality:        cfg.Derivative.Quality,
			ComponentsX:    cfg.Derivative.ComponentsX,
			ComponentsY:    cfg.Derivative.ComponentsY,
		}),
		Syncer:    syncer,
		Confirmer: confirmer,
		Metrics:   m,
		Out:       os.Stdout,
		Log:       log,
	})

	if cfg.Status.Enabled() {
		a.startStatusServer(m)
	}
	return a, nil
}

func newSyncer(ctx context.Context) (remote.Syncer, error) {
	switch cfg.Remote.Backend {
	case config.SyncS3:
		client, err := storage.OpenObjectStore(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("connect object store: %w", err)
		}
		return remote.NewObjectStoreSyncer(client, cfg.MinIO.Bucket, cfg.MinIO.Prefix), nil
	default:
		return remote.NewSSHSyncer(cfg.Remote.Host, remote.ExecRunner{})
	}
}

func (a *app) startStatusServer(m *metrics.Run) {
	router := server.NewRouter(server.Dependencies{Config: cfg, Run: a.runner, Gatherer: m.Gatherer()})
	srv := server.New(cfg.Status, router)

	go func() {
		log.Info("status server listening", zap.String("addr", cfg.Status.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server", zap.Error(err))
		}
	}()

	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Status.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("status server shutdown", zap.Error(err))
		}
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
