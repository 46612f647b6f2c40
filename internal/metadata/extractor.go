package metadata

import (
	"context"
	"os/exec"

	"go.uber.org/zap"
)

// Extractor turns files into Metadata. Failures degrade to empty metadata.
type Extractor struct {
	pool *Pool
	log  *zap.Logger
}

// NewExtractor wraps a pool.
func NewExtractor(pool *Pool, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{pool: pool, log: log}
}

// OpenPool starts a pool backed by exiftool, or by the in-process EXIF reader when
// the binary cannot be found.
func OpenPool(binary string, size int, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		log.Warn("exiftool not found, falling back to embedded exif reader",
			zap.String("binary", binary), zap.Error(err))
		return NewPool(size, func() (TagReader, error) { return GoExif{}, nil })
	}
	return NewPool(size, func() (TagReader, error) { return StartExifTool(resolved) })
}

// Extract reads and normalises metadata for path. It never fails: a read error is
// logged and yields all-nil metadata.
func (e *Extractor) Extract(ctx context.Context, path string) Metadata {
	tags, err := e.pool.Read(ctx, path)
	if err != nil {
		e.log.Warn("metadata extraction failed", zap.String("path", path), zap.Error(err))
		return Metadata{}
	}
	return FromTags(tags)
}

// Close shuts the pool down.
func (e *Extractor) Close() error {
	return e.pool.Close()
}
