// Command ingest imports exported photos into the gallery catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/config"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/ingest"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/logger"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// cfg is resolved from the environment and flags before any subcommand runs.
	cfg config.Config
	log *zap.Logger

	// runID tags every log line and metric of this invocation.
	runID string

	flags struct {
		mode, source, output, catalog, transfer, syncBackend, statusAddr string
		dryRun, yes, tagKeywords                                         bool
		batchSize, workers                                               int
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if log != nil {
		_ = log.Sync()
	}
	switch {
	case err == nil:
	case errors.Is(err, ingest.ErrAborted):
		fmt.Fprintln(os.Stderr, "aborted, nothing was written")
	default:
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Import exported photos into the gallery",
	Long: `ingest scans a source tree for exported images, extracts their metadata,
places originals and thumbnails under the output directory and records each
image in the gallery catalog. In production mode the outputs are synced to
the gallery host afterwards.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runIngest,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.mode, "mode", "", "run mode: local or production (INGEST_MODE)")
	pf.StringVar(&flags.source, "source", "", "source directory to scan (SOURCE_DIR)")
	pf.StringVar(&flags.output, "output", "", "output or staging directory (OUTPUT_DIR)")
	pf.StringVar(&flags.catalog, "catalog", "", "catalog connection string for local mode (CATALOG_URL)")
	pf.StringVar(&flags.transfer, "transfer", "", "copy or move originals (TRANSFER_MODE)")
	pf.StringVar(&flags.syncBackend, "sync-backend", "", "production sync backend: ssh or s3 (SYNC_BACKEND)")
	pf.StringVar(&flags.statusAddr, "status-addr", "", "serve health, progress and metrics on this address (STATUS_ADDR)")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "list what would be ingested and exit (DRY_RUN)")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "skip the confirmation prompt (ASSUME_YES)")
	pf.BoolVar(&flags.tagKeywords, "tag-keywords", false, "merge embedded keywords into folder keywords (TAG_KEYWORDS)")
	pf.IntVar(&flags.batchSize, "batch-size", 0, "images processed concurrently per batch (BATCH_SIZE)")
	pf.IntVar(&flags.workers, "workers", 0, "metadata reader processes (METADATA_WORKERS)")

	rootCmd.AddCommand(runCmd, scanCmd, reconcileCmd, watchCmd, versionCmd)
}

// setup loads configuration and the logger. Flags win over the environment.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	var err error
	log, err = logger.Init()
	if err != nil {
		return err
	}

	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	runID = id.String()
	log = log.With(zap.String("run_id", runID))
	return nil
}

func applyFlags(cmd *cobra.Command) {
	changed := cmd.Flags().Changed
	if changed("mode") {
		cfg.Mode = config.Mode(flags.mode)
	}
	if changed("source") {
		cfg.SourceDir = flags.source
	}
	if changed("output") {
		cfg.OutputDir = flags.output
	}
	if changed("catalog") {
		cfg.CatalogURL = flags.catalog
	}
	if changed("transfer") {
		cfg.TransferMode = config.TransferMode(flags.transfer)
	}
	if changed("sync-backend") {
		cfg.Remote.Backend = config.SyncBackend(flags.syncBackend)
	}
	if changed("status-addr") {
		cfg.Status.Addr = flags.statusAddr
	}
	if changed("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if changed("yes") {
		cfg.AssumeYes = flags.yes
	}
	if changed("tag-keywords") {
		cfg.Metadata.TagKeywords = flags.tagKeywords
	}
	if changed("batch-size") {
		cfg.Batch.Size = flags.batchSize
	}
	if changed("workers") {
		cfg.Metadata.Workers = flags.workers
	}
}
