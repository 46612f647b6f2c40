package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/catalog"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/config"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/derivative"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/identity"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/metrics"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/remote"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/scanner"
	"go.uber.org/zap"
)

// CatalogSession is an open catalog for the duration of a run.
type CatalogSession interface {
	Upsert(ctx context.Context, rec catalog.Record) (catalog.Record, error)
	Reconcile(ctx context.Context, dirs ...string) (catalog.ReconcileResult, error)
	ReconcileIdentities(ctx context.Context, keep map[string]struct{}) (catalog.ReconcileResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// postRunTimeout bounds reconciliation and publishing once scheduling has stopped,
// including after the run context was cancelled.
const postRunTimeout = 10 * time.Minute

// CatalogOpener opens the catalog named by a connection string.
type CatalogOpener func(ctx context.Context, url string) (CatalogSession, error)

type candidateScanner interface {
	Scan(ctx context.Context, root string) ([]scanner.Candidate, error)
}

// Dependencies groups the collaborators of a Runner.
type Dependencies struct {
	Config      config.Config
	RunID       string
	Scanner     candidateScanner
	Metadata    metadataReader
	Derivatives derivativeMaker
	OpenCatalog CatalogOpener
	// Syncer is required in production mode only.
	Syncer    remote.Syncer
	Confirmer Confirmer
	Metrics   *metrics.Run
	Out       io.Writer
	Log       *zap.Logger
}

// Runner drives a whole ingestion run.
type Runner struct {
	deps      Dependencies
	scheduler *Scheduler

	mu       sync.Mutex
	progress *Progress
	session  CatalogSession
}

// NewRunner validates nothing beyond wiring; Config.Validate runs at startup.
func NewRunner(deps Dependencies) *Runner {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.Confirmer == nil {
		deps.Confirmer = AutoConfirm{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRun()
	}
	if deps.OpenCatalog == nil {
		deps.OpenCatalog = OpenCatalog(deps.Log)
	}
	return &Runner{
		deps:      deps,
		scheduler: NewScheduler(deps.Config.Batch.Size, deps.Log, deps.Metrics),
		progress:  NewProgress(deps.RunID, 0),
	}
}

// OpenCatalog adapts catalog.Open to a CatalogOpener.
func OpenCatalog(log *zap.Logger) CatalogOpener {
	return func(ctx context.Context, url string) (CatalogSession, error) {
		return catalog.Open(ctx, url, log)
	}
}

// Progress returns a snapshot of the current run.
func (r *Runner) Progress() RunReport {
	r.mu.Lock()
	p := r.progress
	r.mu.Unlock()
	return p.Snapshot()
}

// Ready reports whether the catalog is open and reachable.
func (r *Runner) Ready(ctx context.Context) error {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		return ErrNotStarted
	}
	return s.Ping(ctx)
}

// Run scans the source, asks for confirmation and ingests every candidate. In
// production mode the catalog is pulled first and outputs are pushed afterwards.
func (r *Runner) Run(ctx context.Context) (RunReport, error) {
	cfg := r.deps.Config
	log := r.deps.Log

	candidates, err := r.deps.Scanner.Scan(ctx, cfg.SourceDir)
	if err != nil {
		return RunReport{}, fmt.Errorf("scan source: %w", err)
	}

	progress := NewProgress(r.deps.RunID, len(candidates))
	r.mu.Lock()
	r.progress = progress
	r.mu.Unlock()

	if cfg.DryRun {
		r.printCandidates(candidates)
		report := progress.Snapshot()
		report.DryRun = true
		return report, nil
	}

	ok, err := r.deps.Confirmer.Confirm(ctx, r.summary(len(candidates)))
	if err != nil {
		return RunReport{}, fmt.Errorf("confirm run: %w", err)
	}
	if !ok {
		return RunReport{}, ErrAborted
	}

	production := cfg.Mode == config.ModeProduction
	pushCatalog := true
	if production {
		pushCatalog = r.pullCatalog(ctx)
	}

	session, err := r.openSession(ctx)
	if err != nil {
		return RunReport{}, err
	}

	pipeline := r.pipeline(session)
	r.scheduler.Run(ctx, candidates, progress, pipeline.Process)

	// Items already placed must still be reconciled and published after a cancel.
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postRunTimeout)
	defer cancel()

	r.reconcile(postCtx, session, progress, production)
	r.closeSession()

	if production {
		r.push(postCtx, pushCatalog)
	}

	report := progress.Snapshot()
	r.publishMetrics(report)
	log.Info("run complete",
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Int("total", report.Total),
		zap.Duration("elapsed", report.Elapsed),
		zap.Float64("items_per_second", report.Throughput()),
	)
	fmt.Fprintln(r.deps.Out, report.String())
	return report, nil
}

// IngestPaths ingests individual files without confirmation or reconciliation.
// Watch mode uses it for files that appear after the initial run.
func (r *Runner) IngestPaths(ctx context.Context, paths []string) (RunReport, error) {
	cfg := r.deps.Config
	candidates := make([]scanner.Candidate, 0, len(paths))
	for _, p := range paths {
		c, err := scanner.CandidateFor(cfg.SourceDir, p)
		if err != nil {
			r.deps.Log.Warn("skipping path", zap.String("path", p), zap.Error(err))
			continue
		}
		candidates = append(candidates, c)
	}

	progress := NewProgress(r.deps.RunID, len(candidates))
	r.mu.Lock()
	r.progress = progress
	r.mu.Unlock()

	session, err := r.openSession(ctx)
	if err != nil {
		return RunReport{}, err
	}
	defer r.closeSession()

	report := r.scheduler.Run(ctx, candidates, progress, r.pipeline(session).Process)
	r.publishMetrics(report)
	return report, nil
}

// reconcile drops catalog rows without a backing original. In production the
// originals published by earlier runs count too, since staging only holds this run's.
func (r *Runner) reconcile(ctx context.Context, session CatalogSession, progress *Progress, production bool) {
	cfg := r.deps.Config
	log := r.deps.Log

	var (
		res catalog.ReconcileResult
		err error
	)
	if production {
		var keep map[string]struct{}
		keep, err = r.publishedIdentities(ctx)
		if err != nil {
			log.Error("list published originals, skipping reconcile", zap.Error(err))
			return
		}
		res, err = session.ReconcileIdentities(ctx, keep)
	} else {
		res, err = session.Reconcile(ctx, cfg.ImagesDir())
	}
	if err != nil {
		log.Error("reconcile catalog", zap.Error(err))
		return
	}
	progress.SetDeleted(len(res.Deleted))
	r.deps.Metrics.ObserveReconcile(len(res.Deleted))
	log.Info("catalog reconciled", zap.Int("kept", res.Kept), zap.Int("deleted", len(res.Deleted)))
}

// publishedIdentities is the set of originals that will exist remotely once this
// run is pushed: the staged ones plus those already in the remote images dir.
func (r *Runner) publishedIdentities(ctx context.Context) (map[string]struct{}, error) {
	cfg := r.deps.Config
	keep, err := catalog.IdentitiesOnDisk(cfg.ImagesDir())
	if err != nil {
		return nil, err
	}
	names, err := r.deps.Syncer.ListDirectory(ctx, r.remoteImagesDir())
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if id, ok := identity.FromFilename(name); ok {
			keep[id] = struct{}{}
		}
	}
	return keep, nil
}

func (r *Runner) remoteImagesDir() string {
	return path.Join(r.deps.Config.Remote.OutputDir, "images")
}

// Reconcile runs only the reconciliation pass against the local catalog. Production
// catalogs are reconciled as part of Run, against the published originals.
func (r *Runner) Reconcile(ctx context.Context) (catalog.ReconcileResult, error) {
	cfg := r.deps.Config
	if cfg.Mode == config.ModeProduction {
		return catalog.ReconcileResult{}, ErrLocalModeOnly
	}
	ok, err := r.deps.Confirmer.Confirm(ctx, r.summary(0))
	if err != nil {
		return catalog.ReconcileResult{}, fmt.Errorf("confirm reconcile: %w", err)
	}
	if !ok {
		return catalog.ReconcileResult{}, ErrAborted
	}

	session, err := r.openSession(ctx)
	if err != nil {
		return catalog.ReconcileResult{}, err
	}
	defer r.closeSession()

	res, err := session.Reconcile(ctx, cfg.ImagesDir())
	if err != nil {
		return catalog.ReconcileResult{}, err
	}
	r.deps.Metrics.ObserveReconcile(len(res.Deleted))
	return res, nil
}

func (r *Runner) openSession(ctx context.Context) (CatalogSession, error) {
	session, err := r.deps.OpenCatalog(ctx, r.deps.Config.ResolvedCatalogURL())
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.session = session
	r.mu.Unlock()
	return session, nil
}

func (r *Runner) closeSession() {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		r.deps.Log.Warn("close catalog", zap.Error(err))
	}
}

func (r *Runner) pipeline(session CatalogSession) *Pipeline {
	cfg := r.deps.Config
	return NewPipeline(r.deps.Metadata, r.deps.Derivatives, session, PipelineOptions{
		ImagesDir:   cfg.ImagesDir(),
		Transfer:    cfg.TransferMode,
		TagKeywords: cfg.Metadata.TagKeywords,
	}, r.deps.Log)
}

// pullCatalog fetches the remote catalog into staging. It returns false when the
// local copy cannot be trusted to replace the remote one afterwards.
func (r *Runner) pullCatalog(ctx context.Context) bool {
	cfg := r.deps.Config
	log := r.deps.Log

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Error("create staging dir", zap.Error(err))
	}
	err := r.deps.Syncer.PullCatalog(ctx, cfg.Remote.CatalogPath, cfg.StagedCatalogPath())
	switch {
	case err == nil:
		log.Info("pulled remote catalog", zap.String("remote", cfg.Remote.CatalogPath))
		return true
	case errors.Is(err, remote.ErrRemoteCatalogMissing):
		log.Info("no remote catalog yet, starting a fresh one")
		return true
	default:
		log.Error("pull remote catalog failed, catalog will not be pushed", zap.Error(err))
		return false
	}
}

func (r *Runner) push(ctx context.Context, pushCatalog bool) {
	cfg := r.deps.Config
	log := r.deps.Log
	clean := true

	for _, dir := range []struct{ local, remote string }{
		{cfg.ImagesDir(), r.remoteImagesDir()},
		{cfg.ThumbnailsDir(), path.Join(cfg.Remote.OutputDir, "thumbnails")},
	} {
		if err := r.deps.Syncer.PushDirectory(ctx, dir.local, dir.remote); err != nil {
			log.Error("push directory failed", zap.String("dir", dir.local), zap.Error(err))
			clean = false
		}
	}

	if pushCatalog {
		if err := r.deps.Syncer.PushCatalog(ctx, cfg.StagedCatalogPath(), cfg.Remote.CatalogPath); err != nil {
			log.Error("push catalog failed", zap.Error(err))
			clean = false
		}
	} else {
		clean = false
	}

	if !clean {
		log.Warn("staging directory kept after incomplete push", zap.String("dir", cfg.OutputDir))
		return
	}
	if err := os.RemoveAll(cfg.OutputDir); err != nil {
		log.Warn("remove staging directory", zap.Error(err))
		return
	}
	log.Info("staging directory removed", zap.String("dir", cfg.OutputDir))
}

func (r *Runner) publishMetrics(report RunReport) {
	cfg := r.deps.Config
	m := r.deps.Metrics
	m.SetThroughput(report.Throughput())
	m.Finish(time.Now())

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			r.deps.Log.Warn("write metrics", zap.Error(err))
		}
	}
	if cfg.Metrics.PushgatewayURL != "" {
		if err := m.Push(cfg.Metrics.PushgatewayURL, "photo_ingest"); err != nil {
			r.deps.Log.Warn("push metrics", zap.Error(err))
		}
	}
}

func (r *Runner) printCandidates(candidates []scanner.Candidate) {
	for _, c := range candidates {
		fmt.Fprintln(r.deps.Out, c.Path)
	}
	fmt.Fprintf(r.deps.Out, "%d files would be ingested (dry run)\n", len(candidates))
}

func (r *Runner) summary(n int) Summary {
	cfg := r.deps.Config
	s := Summary{
		Mode:       string(cfg.Mode),
		DryRun:     cfg.DryRun,
		SourceDir:  cfg.SourceDir,
		OutputDir:  cfg.OutputDir,
		Catalog:    cfg.ResolvedCatalogURL(),
		Transfer:   string(cfg.TransferMode),
		Candidates: n,
	}
	if cfg.Mode == config.ModeProduction {
		switch cfg.Remote.Backend {
		case config.SyncS3:
			s.SyncTarget = "s3://" + path.Join(cfg.MinIO.Bucket, cfg.MinIO.Prefix)
		default:
			s.SyncTarget = cfg.Remote.Host + ":" + cfg.Remote.OutputDir
		}
	}
	return s
}

var _ derivativeMaker = (*derivative.Generator)(nil)
