package config

import "errors"

var (
	// ErrInvalidMode signals an INGEST_MODE other than local or production.
	ErrInvalidMode = errors.New("invalid ingest mode")
	// ErrMissingSourceDir signals that no source directory was configured.
	ErrMissingSourceDir = errors.New("source directory is required")
	// ErrMissingOutputDir signals an empty output directory.
	ErrMissingOutputDir = errors.New("output directory is required")
	// ErrMissingCatalogURL signals a local run without a catalog location.
	ErrMissingCatalogURL = errors.New("catalog url is required in local mode")
	// ErrMissingRemoteHost signals a production run without a remote host.
	ErrMissingRemoteHost = errors.New("remote host is required in production mode")
	// ErrMissingBucket signals an object store sync without a bucket.
	ErrMissingBucket = errors.New("bucket is required for s3 sync")
	// ErrInvalidTransferMode signals a TRANSFER_MODE other than copy or move.
	ErrInvalidTransferMode = errors.New("invalid transfer mode")
	// ErrInvalidSyncBackend signals an unknown SYNC_BACKEND.
	ErrInvalidSyncBackend = errors.New("invalid sync backend")
	// ErrInvalidConcurrency signals a batch size or worker count below one.
	ErrInvalidConcurrency = errors.New("invalid concurrency setting")
)
