package ingest

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/catalog"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/metadata"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// writeJPEG renders a solid w x h image at path, creating parent directories.
func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := imaging.New(w, h, color.NRGBA{R: 180, G: 90, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

type fakeMetadata struct {
	md metadata.Metadata
}

func (f fakeMetadata) Extract(ctx context.Context, path string) metadata.Metadata {
	return f.md
}

type fakeWriter struct {
	mu      sync.Mutex
	records []catalog.Record
	err     error
}

func (f *fakeWriter) Upsert(ctx context.Context, rec catalog.Record) (catalog.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return catalog.Record{}, f.err
	}
	f.records = append(f.records, rec)
	return rec, nil
}
