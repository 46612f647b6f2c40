package main

import (
	"context"
	"fmt"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/config"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/ingest"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan, confirm and ingest the source directory (default)",
	RunE:  runIngest,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the files a run would ingest without writing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.DryRun = true
		return runIngest(cmd, args)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Remove catalog rows whose original is gone from the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Mode != config.ModeLocal {
			return fmt.Errorf("reconcile: %w", ingest.ErrLocalModeOnly)
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.runner.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "kept %d, deleted %d\n", res.Kept, len(res.Deleted))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run once, then ingest new exports as they appear",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Mode != config.ModeLocal {
			return fmt.Errorf("watch: %w", ingest.ErrLocalModeOnly)
		}
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.runner.Run(ctx); err != nil {
			return err
		}
		if cfg.DryRun {
			return nil
		}

		w, err := watch.New(cfg.SourceDir, watch.Options{
			Accept:   a.scanner.Accepts,
			Settle:   cfg.Watch.Settle,
			Interval: cfg.Watch.Interval,
		}, log)
		if err != nil {
			return err
		}
		log.Info("watching for new exports", zap.String("source", cfg.SourceDir))
		return w.Run(ctx, func(ctx context.Context, paths []string) error {
			report, err := a.runner.IngestPaths(ctx, paths)
			if err != nil {
				return err
			}
			log.Info("ingested new exports", zap.Int("processed", report.Processed), zap.Int("failed", report.Failed))
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "ingest", version)
	},
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.runner.Run(cmd.Context())
	return err
}
