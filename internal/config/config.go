package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Mode selects where the run's outputs end up.
type Mode string

const (
	// ModeLocal writes outputs and the catalog directly on this machine.
	ModeLocal Mode = "local"
	// ModeProduction stages outputs locally and syncs them to a remote host.
	ModeProduction Mode = "production"
)

// TransferMode decides what happens to the source original.
type TransferMode string

const (
	TransferCopy TransferMode = "copy"
	TransferMove TransferMode = "move"
)

// SyncBackend names the remote sync implementation.
type SyncBackend string

const (
	SyncSSH SyncBackend = "ssh"
	SyncS3  SyncBackend = "s3"
)

// Config aggregates runtime configuration for an ingestion run.
// It is resolved once at startup and passed by value afterwards.
type Config struct {
	Mode         Mode
	DryRun       bool
	AssumeYes    bool
	SourceDir    string
	OutputDir    string
	CatalogURL   string
	TransferMode TransferMode

	Scan       ScanConfig
	Batch      BatchConfig
	Metadata   MetadataConfig
	Derivative DerivativeConfig
	Remote     RemoteConfig
	MinIO      MinIOConfig
	Metrics    MetricsConfig
	Status     StatusConfig
	Watch      WatchConfig
}

// ScanConfig parameterizes the directory scanner.
type ScanConfig struct {
	Extensions   []string
	MarkerSuffix string
	MaxDepth     int
}

// BatchConfig controls the batch scheduler.
type BatchConfig struct {
	Size int
}

// MetadataConfig controls the metadata worker pool.
type MetadataConfig struct {
	Workers      int
	ExifToolPath string
	TagKeywords  bool
}

// DerivativeConfig controls thumbnail and placeholder generation.
type DerivativeConfig struct {
	ThumbnailWidth int
	Quality        int
	ComponentsX    int
	ComponentsY    int
}

// RemoteConfig describes the production sync target.
type RemoteConfig struct {
	Backend     SyncBackend
	Host        string
	OutputDir   string
	CatalogPath string
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
	Textfile       string
	PushgatewayURL string
}

// StatusConfig parameterizes the optional run status server.
type StatusConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Enabled reports whether the status server should be started.
func (s StatusConfig) Enabled() bool {
	return strings.TrimSpace(s.Addr) != ""
}

// WatchConfig controls watch mode debouncing.
type WatchConfig struct {
	Settle   time.Duration
	Interval time.Duration
}

// ImagesDir is where originals are placed.
func (c Config) ImagesDir() string {
	return filepath.Join(c.OutputDir, "images")
}

// ThumbnailsDir is where thumbnails are placed.
func (c Config) ThumbnailsDir() string {
	return filepath.Join(c.OutputDir, "thumbnails")
}

// StagedCatalogPath is the local copy of the remote catalog in production mode.
func (c Config) StagedCatalogPath() string {
	return filepath.Join(c.OutputDir, "catalog.db")
}

// ResolvedCatalogURL returns the catalog connection string for the active mode.
func (c Config) ResolvedCatalogURL() string {
	if c.Mode == ModeProduction {
		return c.StagedCatalogPath()
	}
	return c.CatalogURL
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Mode:         Mode(strings.ToLower(getString("INGEST_MODE", string(ModeLocal)))),
		DryRun:       getBool("DRY_RUN", false),
		AssumeYes:    getBool("ASSUME_YES", false),
		SourceDir:    getString("SOURCE_DIR", ""),
		OutputDir:    getString("OUTPUT_DIR", "./output"),
		CatalogURL:   getString("CATALOG_URL", ""),
		TransferMode: TransferMode(strings.ToLower(getString("TRANSFER_MODE", string(TransferCopy)))),
		Scan: ScanConfig{
			Extensions:   getList("ALLOWED_EXTENSIONS", []string{".jpg", ".jpeg", ".png", ".webp", ".tif", ".tiff"}),
			MarkerSuffix: getString("MARKER_SUFFIX", "_exported_for_viewing_locally"),
			MaxDepth:     getInt("SCAN_MAX_DEPTH", 64),
		},
		Batch: BatchConfig{
			Size: getInt("BATCH_SIZE", 20),
		},
		Metadata: MetadataConfig{
			Workers:      getInt("METADATA_WORKERS", 10),
			ExifToolPath: getString("EXIFTOOL_PATH", "exiftool"),
			TagKeywords:  getBool("TAG_KEYWORDS", false),
		},
		Derivative: DerivativeConfig{
			ThumbnailWidth: getInt("THUMBNAIL_WIDTH", 800),
			Quality:        getInt("THUMBNAIL_QUALITY", 80),
			ComponentsX:    getInt("PLACEHOLDER_X", 4),
			ComponentsY:    getInt("PLACEHOLDER_Y", 3),
		},
		Remote: RemoteConfig{
			Backend:     SyncBackend(strings.ToLower(getString("SYNC_BACKEND", string(SyncSSH)))),
			Host:        getString("REMOTE_HOST", ""),
			OutputDir:   getString("REMOTE_OUTPUT_DIR", "/srv/photo-gallery"),
			CatalogPath: getString("REMOTE_CATALOG_PATH", "/srv/photo-gallery/catalog.db"),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "gallery"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "photo-gallery"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
			Prefix:          getString("MINIO_PREFIX", ""),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("METRICS_PATH", "/metrics"),
			Textfile:       getString("METRICS_TEXTFILE", ""),
			PushgatewayURL: getString("METRICS_PUSHGATEWAY_URL", ""),
		},
		Status: StatusConfig{
			Addr:            getString("STATUS_ADDR", ""),
			ReadTimeout:     getDuration("STATUS_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDuration("STATUS_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getDuration("STATUS_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Watch: WatchConfig{
			Settle:   getDuration("WATCH_SETTLE", 2*time.Second),
			Interval: getDuration("WATCH_INTERVAL", 250*time.Millisecond),
		},
	}

	return cfg, nil
}

// Validate checks mode-specific requirements. It must pass before any side effect.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeLocal, ModeProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}

	if strings.TrimSpace(c.SourceDir) == "" {
		return ErrMissingSourceDir
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrMissingOutputDir
	}

	switch c.TransferMode {
	case TransferCopy, TransferMove:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTransferMode, c.TransferMode)
	}

	if c.Batch.Size < 1 {
		return fmt.Errorf("%w: batch size %d", ErrInvalidConcurrency, c.Batch.Size)
	}
	if c.Metadata.Workers < 1 {
		return fmt.Errorf("%w: metadata workers %d", ErrInvalidConcurrency, c.Metadata.Workers)
	}

	if c.Mode == ModeLocal {
		if strings.TrimSpace(c.CatalogURL) == "" {
			return ErrMissingCatalogURL
		}
		return nil
	}

	switch c.Remote.Backend {
	case SyncSSH:
		if strings.TrimSpace(c.Remote.Host) == "" {
			return ErrMissingRemoteHost
		}
	case SyncS3:
		if strings.TrimSpace(c.MinIO.Bucket) == "" {
			return ErrMissingBucket
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSyncBackend, c.Remote.Backend)
	}
	return nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
