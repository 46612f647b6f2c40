// Package derivative renders thumbnails and placeholders from source images.
package derivative

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/identity"
	"github.com/buckket/go-blurhash"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	_ "github.com/chai2010/webp"
)

const placeholderSample = 32

// Options parameterizes a Generator.
type Options struct {
	ThumbnailDir   string
	ThumbnailWidth int
	Quality        int
	ComponentsX    int
	ComponentsY    int
}

// Generator writes thumbnails and computes placeholders.
type Generator struct {
	opts Options
}

// Result describes everything derived from one source image.
type Result struct {
	ThumbnailPath   string
	ThumbnailWidth  int
	ThumbnailHeight int
	Width           int
	Height          int
	AspectRatio     float64
	Placeholder     string
	// Existed is true when a thumbnail for the identity was already on disk.
	Existed bool
}

// NewGenerator applies defaults to zero-valued options.
func NewGenerator(opts Options) *Generator {
	if opts.ThumbnailWidth <= 0 {
		opts.ThumbnailWidth = 800
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	if opts.ComponentsX <= 0 {
		opts.ComponentsX = 4
	}
	if opts.ComponentsY <= 0 {
		opts.ComponentsY = 3
	}
	return &Generator{opts: opts}
}

// Generate decodes the source once and produces the thumbnail, placeholder and ratio.
func (g *Generator) Generate(path, id string) (Result, error) {
	img, err := Decode(path)
	if err != nil {
		return Result{}, err
	}

	bounds := img.Bounds()
	res := Result{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		AspectRatio: AspectRatio(bounds.Dx(), bounds.Dy()),
	}

	thumbPath, tw, th, existed, err := g.writeThumbnail(img, id)
	if err != nil {
		return Result{}, err
	}
	res.ThumbnailPath, res.ThumbnailWidth, res.ThumbnailHeight, res.Existed = thumbPath, tw, th, existed

	hash, err := g.Placeholder(img)
	if err != nil {
		return Result{}, err
	}
	res.Placeholder = hash
	return res, nil
}

// Thumbnail writes thumb_<id>.jpg for the source at path.
func (g *Generator) Thumbnail(path, id string) (string, error) {
	img, err := Decode(path)
	if err != nil {
		return "", err
	}
	out, _, _, _, err := g.writeThumbnail(img, id)
	return out, err
}

func (g *Generator) writeThumbnail(img image.Image, id string) (string, int, int, bool, error) {
	if err := os.MkdirAll(g.opts.ThumbnailDir, 0o755); err != nil {
		return "", 0, 0, false, fmt.Errorf("create thumbnail dir: %w", err)
	}
	out := filepath.Join(g.opts.ThumbnailDir, identity.Thumbnail(id))

	existed := false
	if _, err := os.Stat(out); err == nil {
		existed = true
	}

	width := g.opts.ThumbnailWidth
	if src := img.Bounds().Dx(); src < width {
		width = src
	}
	thumb := imaging.Resize(img, width, 0, imaging.Lanczos)

	if err := imaging.Save(thumb, out, imaging.JPEGQuality(g.opts.Quality)); err != nil {
		return "", 0, 0, existed, fmt.Errorf("save thumbnail: %w", err)
	}
	b := thumb.Bounds()
	return out, b.Dx(), b.Dy(), existed, nil
}

// Placeholder encodes a compact blurred representation of img.
func (g *Generator) Placeholder(img image.Image) (string, error) {
	small := imaging.Resize(img, placeholderSample, placeholderSample, imaging.Lanczos)
	hash, err := blurhash.Encode(g.opts.ComponentsX, g.opts.ComponentsY, small)
	if err != nil {
		return "", fmt.Errorf("encode placeholder: %w", err)
	}
	return hash, nil
}

// Decode opens an image, applies its EXIF orientation and converts it to NRGBA so
// palette and grayscale sources behave like RGB ones.
func Decode(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	nrgba := imaging.Clone(img)
	if nrgba.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return nrgba, nil
}

// Probe returns the file size and detected MIME type of a source file.
func Probe(path string) (int64, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, "", fmt.Errorf("stat source: %w", err)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return info.Size(), "", fmt.Errorf("detect mime type: %w", err)
	}
	return info.Size(), mt.String(), nil
}
