package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/config"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/derivative"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/identity"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/metadata"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	source string
	out    string
	writer *fakeWriter
}

func newPipeline(t *testing.T, md metadata.Metadata, opts PipelineOptions) (*Pipeline, pipelineFixture) {
	t.Helper()
	root := t.TempDir()
	fx := pipelineFixture{
		source: filepath.Join(root, "src"),
		out:    filepath.Join(root, "out"),
		writer: &fakeWriter{},
	}
	opts.ImagesDir = filepath.Join(fx.out, "images")
	gen := derivative.NewGenerator(derivative.Options{ThumbnailDir: filepath.Join(fx.out, "thumbnails"), ThumbnailWidth: 40})
	return NewPipeline(fakeMetadata{md: md}, gen, fx.writer, opts, nil), fx
}

func TestPipelineIngestsNestedImage(t *testing.T) {
	p, fx := newPipeline(t, metadata.Metadata{}, PipelineOptions{})
	src := filepath.Join(fx.source, "trips", "japan", "a_web.jpg")
	writeJPEG(t, src, 120, 80)

	c, err := scanner.CandidateFor(fx.source, src)
	require.NoError(t, err)
	require.NoError(t, p.Process(context.Background(), c))

	require.Len(t, fx.writer.records, 1)
	rec := fx.writer.records[0]
	id := identity.Of("a_web.jpg", nil)

	assert.Equal(t, id, rec.Identity)
	assert.Equal(t, "a_web.jpg", rec.OriginalFilename)
	assert.Equal(t, id+".jpg", rec.Filename)
	assert.Equal(t, "thumb_"+id+".jpg", rec.ThumbnailFilename)
	assert.Equal(t, []string{"trips", "japan"}, rec.Keywords)
	assert.NotEmpty(t, rec.Placeholder)
	assert.Equal(t, 120, rec.Width)
	assert.Equal(t, 80, rec.Height)
	assert.InDelta(t, 1.5, rec.AspectRatio, 1e-9)
	assert.Equal(t, "image/jpeg", rec.MimeType)
	assert.Nil(t, rec.CapturedAt)

	assert.FileExists(t, filepath.Join(fx.out, "images", id+".jpg"))
	assert.FileExists(t, filepath.Join(fx.out, "thumbnails", "thumb_"+id+".jpg"))
	assert.FileExists(t, src, "copy mode keeps the source")
}

func TestPipelineUsesCaptureTimeForIdentity(t *testing.T) {
	captured := time.Date(2023, 4, 2, 9, 30, 0, 0, time.UTC)
	camera := "X-T5"
	p, fx := newPipeline(t, metadata.Metadata{CapturedAt: &captured, Camera: &camera}, PipelineOptions{})
	src := filepath.Join(fx.source, "b_web.jpg")
	writeJPEG(t, src, 30, 30)

	require.NoError(t, p.Process(context.Background(), scanner.Candidate{Path: src}))

	rec := fx.writer.records[0]
	assert.Equal(t, identity.Of("b_web.jpg", &captured), rec.Identity)
	assert.Equal(t, []string{}, rec.Keywords)
	require.NotNil(t, rec.Camera)
	assert.Equal(t, "X-T5", *rec.Camera)
}

func TestPipelineMoveRemovesSourceAfterUpsert(t *testing.T) {
	p, fx := newPipeline(t, metadata.Metadata{}, PipelineOptions{Transfer: config.TransferMove})
	src := filepath.Join(fx.source, "c_web.jpg")
	writeJPEG(t, src, 20, 10)

	require.NoError(t, p.Process(context.Background(), scanner.Candidate{Path: src}))

	assert.NoFileExists(t, src)
	assert.FileExists(t, filepath.Join(fx.out, "images", identity.Of("c_web.jpg", nil)+".jpg"))
}

func TestPipelineMoveKeepsSourceWhenUpsertFails(t *testing.T) {
	p, fx := newPipeline(t, metadata.Metadata{}, PipelineOptions{Transfer: config.TransferMove})
	fx.writer.err = errors.New("database is locked")
	src := filepath.Join(fx.source, "d_web.jpg")
	writeJPEG(t, src, 20, 10)

	err := p.Process(context.Background(), scanner.Candidate{Path: src})
	require.Error(t, err)
	assert.FileExists(t, src)
}

func TestPipelineRejectsUndecodableFile(t *testing.T) {
	p, fx := newPipeline(t, metadata.Metadata{}, PipelineOptions{})
	src := filepath.Join(fx.source, "broken_web.jpg")
	require.NoError(t, os.MkdirAll(fx.source, 0o755))
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o644))

	err := p.Process(context.Background(), scanner.Candidate{Path: src})
	require.Error(t, err)
	assert.Empty(t, fx.writer.records)

	id := identity.Of("broken_web.jpg", nil)
	assert.NoFileExists(t, filepath.Join(fx.out, "images", id+".jpg"), "a failed item must not leave an original behind")
	assert.NoFileExists(t, filepath.Join(fx.out, "thumbnails", "thumb_"+id+".jpg"))
	entries, _ := os.ReadDir(filepath.Join(fx.out, "images"))
	assert.Empty(t, entries)
}

func TestPipelineRemovesThumbnailWhenOriginalCannotBePlaced(t *testing.T) {
	p, fx := newPipeline(t, metadata.Metadata{}, PipelineOptions{})
	src := filepath.Join(fx.source, "f_web.jpg")
	writeJPEG(t, src, 16, 16)
	require.NoError(t, os.MkdirAll(fx.out, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fx.out, "images"), []byte("not a dir"), 0o644))

	c, err := scanner.CandidateFor(fx.source, src)
	require.NoError(t, err)
	require.Error(t, p.Process(context.Background(), c))

	assert.Empty(t, fx.writer.records)
	id := identity.Of("f_web.jpg", nil)
	assert.NoFileExists(t, filepath.Join(fx.out, "thumbnails", "thumb_"+id+".jpg"))
	assert.FileExists(t, src)
}

func TestPipelineMergesTagKeywords(t *testing.T) {
	md := metadata.Metadata{Keywords: []string{"japan", "temple"}}
	p, fx := newPipeline(t, md, PipelineOptions{TagKeywords: true})
	src := filepath.Join(fx.source, "trips", "japan", "e_web.jpg")
	writeJPEG(t, src, 10, 10)

	c, err := scanner.CandidateFor(fx.source, src)
	require.NoError(t, err)
	require.NoError(t, p.Process(context.Background(), c))

	assert.Equal(t, []string{"trips", "japan", "temple"}, fx.writer.records[0].Keywords)
}

func TestPipelineReingestOverwritesOutputs(t *testing.T) {
	p, fx := newPipeline(t, metadata.Metadata{}, PipelineOptions{})
	src := filepath.Join(fx.source, "f_web.jpg")
	writeJPEG(t, src, 50, 50)
	c := scanner.Candidate{Path: src}

	require.NoError(t, p.Process(context.Background(), c))
	require.NoError(t, p.Process(context.Background(), c))

	require.Len(t, fx.writer.records, 2)
	assert.Equal(t, fx.writer.records[0].Identity, fx.writer.records[1].Identity)

	entries, err := os.ReadDir(filepath.Join(fx.out, "images"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
