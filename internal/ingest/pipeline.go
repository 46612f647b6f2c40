package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/catalog"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/config"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/derivative"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/identity"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/metadata"
	"github.com/TravisBumgarner/photo-gallery-sub000/internal/scanner"
	"go.uber.org/zap"
)

type metadataReader interface {
	Extract(ctx context.Context, path string) metadata.Metadata
}

type derivativeMaker interface {
	Generate(path, id string) (derivative.Result, error)
}

type recordWriter interface {
	Upsert(ctx context.Context, rec catalog.Record) (catalog.Record, error)
}

// Pipeline ingests a single candidate: metadata, identity, original placement,
// derivatives and the catalog upsert.
type Pipeline struct {
	meta        metadataReader
	derivatives derivativeMaker
	writer      recordWriter
	imagesDir   string
	transfer    config.TransferMode
	tagKeywords bool
	log         *zap.Logger

	seen sync.Map
}

// PipelineOptions parameterizes a Pipeline.
type PipelineOptions struct {
	ImagesDir   string
	Transfer    config.TransferMode
	TagKeywords bool
}

// NewPipeline wires the per-item stages.
func NewPipeline(meta metadataReader, derivatives derivativeMaker, writer recordWriter, opts PipelineOptions, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Transfer == "" {
		opts.Transfer = config.TransferCopy
	}
	return &Pipeline{
		meta:        meta,
		derivatives: derivatives,
		writer:      writer,
		imagesDir:   opts.ImagesDir,
		transfer:    opts.Transfer,
		tagKeywords: opts.TagKeywords,
		log:         log,
	}
}

// Process ingests c. Metadata failures degrade to empty fields; every other failure
// is returned and nothing is written to the catalog for c.
func (p *Pipeline) Process(ctx context.Context, c scanner.Candidate) error {
	md := p.meta.Extract(ctx, c.Path)
	id := identity.Of(c.Name(), md.CapturedAt)
	log := p.log.With(zap.String("path", c.Path), zap.String("identity", id))

	if prev, loaded := p.seen.LoadOrStore(id, c.Path); loaded && prev.(string) != c.Path {
		log.Warn("identity collision within run, later file overwrites earlier one",
			zap.String("other_path", prev.(string)))
	}

	size, mime, err := derivative.Probe(c.Path)
	if err != nil {
		return err
	}

	// Derivatives first: an original placed in images/ is what reconciliation and
	// publishing treat as ingested.
	res, err := p.derivatives.Generate(c.Path, id)
	if err != nil {
		return fmt.Errorf("generate derivatives: %w", err)
	}
	if res.Existed {
		log.Info("thumbnail already present, regenerated")
	}

	filename := identity.Original(id, c.Ext())
	if err := placeOriginal(c.Path, filepath.Join(p.imagesDir, filename)); err != nil {
		if !res.Existed {
			_ = os.Remove(res.ThumbnailPath)
		}
		return err
	}

	rec := catalog.Record{
		Identity:          id,
		OriginalFilename:  c.Name(),
		Filename:          filename,
		ThumbnailFilename: filepath.Base(res.ThumbnailPath),
		Placeholder:       res.Placeholder,
		Width:             res.Width,
		Height:            res.Height,
		AspectRatio:       res.AspectRatio,
		Camera:            md.Camera,
		Lens:              md.Lens,
		CapturedAt:        md.CapturedAt,
		ISO:               md.ISO,
		ShutterSpeed:      md.ShutterSpeed,
		Aperture:          md.Aperture,
		FocalLength:       md.FocalLength,
		Keywords:          p.keywords(c, md),
		Rating:            md.Rating,
		ColorLabel:        md.ColorLabel,
		SizeBytes:         size,
		MimeType:          mime,
	}
	if _, err := p.writer.Upsert(ctx, rec); err != nil {
		return err
	}

	if p.transfer == config.TransferMove {
		if err := os.Remove(c.Path); err != nil {
			log.Warn("could not remove source after move", zap.Error(err))
		}
	}
	log.Debug("item ingested")
	return nil
}

func (p *Pipeline) keywords(c scanner.Candidate, md metadata.Metadata) []string {
	out := c.Keywords()
	if !p.tagKeywords {
		return out
	}
	seen := make(map[string]struct{}, len(out)+len(md.Keywords))
	for _, k := range out {
		seen[k] = struct{}{}
	}
	for _, k := range md.Keywords {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
