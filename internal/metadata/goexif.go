package metadata

import (
	"context"
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// GoExif reads EXIF in-process. It covers fewer tags than exiftool (no XMP rating,
// label or keywords) and serves as the fallback when the tool is not installed.
type GoExif struct{}

// ReadTags decodes the EXIF block of path into tags named like exiftool's.
func (GoExif) ReadTags(ctx context.Context, path string) (Tags, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode exif: %w", err)
	}

	tags := Tags{}
	if t, err := x.DateTime(); err == nil {
		tags["DateTimeOriginal"] = t.Format("2006:01:02 15:04:05")
	}
	for name, field := range map[string]exif.FieldName{
		"Make":      exif.Make,
		"Model":     exif.Model,
		"LensModel": exif.LensModel,
	} {
		if tag, err := x.Get(field); err == nil {
			if s, err := tag.StringVal(); err == nil {
				tags[name] = s
			}
		}
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			tags["ISO"] = float64(v)
		}
	}
	for name, field := range map[string]exif.FieldName{
		"ExposureTime": exif.ExposureTime,
		"FNumber":      exif.FNumber,
		"FocalLength":  exif.FocalLength,
	} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		r, err := tag.Rat(0)
		if err != nil {
			continue
		}
		if f, _ := r.Float64(); f > 0 {
			tags[name] = f
		}
	}

	if len(tags) == 0 {
		return nil, ErrNoTags
	}
	return tags, nil
}

// Close is a no-op.
func (GoExif) Close() error {
	return nil
}
