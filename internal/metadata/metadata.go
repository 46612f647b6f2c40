// Package metadata extracts camera metadata through a bounded pool of tag readers.
package metadata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Tags is the raw tag map produced by a reader, keyed by tag name.
type Tags map[string]any

// Metadata holds the normalised fields stored in the catalog. Nil means unknown.
type Metadata struct {
	Camera       *string
	Lens         *string
	CapturedAt   *time.Time
	ISO          *int
	ShutterSpeed *string
	Aperture     *float64
	FocalLength  *float64
	Rating       *int
	ColorLabel   *string
	Keywords     []string
}

var (
	capturedAliases = []string{"DateTimeOriginal", "SubSecDateTimeOriginal", "CreateDate", "FileCreateDate"}
	cameraAliases   = []string{"Model"}
	lensAliases     = []string{"LensModel", "Lens", "LensID"}
	isoAliases      = []string{"ISO", "ISOSpeedRatings", "RecommendedExposureIndex"}
	shutterAliases  = []string{"ExposureTime", "ShutterSpeed", "ShutterSpeedValue"}
	apertureAliases = []string{"FNumber", "Aperture", "ApertureValue"}
	focalAliases    = []string{"FocalLength", "FocalLengthIn35mmFormat"}
	ratingAliases   = []string{"Rating"}
	labelAliases    = []string{"Label", "ColorLabel"}
	keywordAliases  = []string{"Subject", "Keywords"}
)

var colorLabels = map[string]string{
	"red":    "Red",
	"yellow": "Yellow",
	"green":  "Green",
	"blue":   "Blue",
	"purple": "Purple",
}

var dateLayouts = []string{
	"2006:01:02 15:04:05Z07:00",
	"2006:01:02 15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// FromTags resolves every field through its alias list, first non-empty wins.
func FromTags(tags Tags) Metadata {
	var m Metadata
	if len(tags) == 0 {
		return m
	}

	m.CapturedAt = firstTime(tags, capturedAliases)
	m.Camera = firstString(tags, cameraAliases)
	m.Lens = firstString(tags, lensAliases)

	if v, ok := firstNumber(tags, isoAliases); ok && v > 0 {
		iso := int(math.Round(v))
		m.ISO = &iso
	}
	m.ShutterSpeed = shutter(tags)
	if v, ok := firstNumber(tags, apertureAliases); ok && v > 0 {
		m.Aperture = &v
	}
	if v, ok := firstNumber(tags, focalAliases); ok && v > 0 {
		m.FocalLength = &v
	}
	if v, ok := firstNumber(tags, ratingAliases); ok {
		r := int(math.Round(v))
		if r >= 0 && r <= 5 {
			m.Rating = &r
		}
	}
	if s := firstString(tags, labelAliases); s != nil {
		if label, ok := colorLabels[strings.ToLower(*s)]; ok {
			m.ColorLabel = &label
		}
	}
	m.Keywords = firstList(tags, keywordAliases)
	return m
}

// FormatShutter renders an exposure time in seconds as photographers write it.
func FormatShutter(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	if seconds >= 1 {
		return strconv.FormatFloat(seconds, 'f', -1, 64)
	}
	return fmt.Sprintf("1/%d", int(math.Round(1/seconds)))
}

func shutter(tags Tags) *string {
	for _, key := range shutterAliases {
		raw, ok := tags[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				s := FormatShutter(f)
				if s == "" {
					continue
				}
				return &s
			}
			return &v
		default:
			if f, ok := toFloat(raw); ok && f > 0 {
				s := FormatShutter(f)
				return &s
			}
		}
	}
	return nil
}

func firstString(tags Tags, keys []string) *string {
	for _, key := range keys {
		raw, ok := tags[key]
		if !ok || raw == nil {
			continue
		}
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case fmt.Stringer:
			s = v.String()
		default:
			s = fmt.Sprint(v)
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "unknown") {
			continue
		}
		return &s
	}
	return nil
}

func firstNumber(tags Tags, keys []string) (float64, bool) {
	for _, key := range keys {
		raw, ok := tags[key]
		if !ok || raw == nil {
			continue
		}
		if f, ok := toFloat(raw); ok {
			return f, true
		}
	}
	return 0, false
}

func firstTime(tags Tags, keys []string) *time.Time {
	for _, key := range keys {
		raw, ok := tags[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case time.Time:
			if !v.IsZero() {
				return &v
			}
		case string:
			if t, ok := parseDate(v); ok {
				return &t
			}
		}
	}
	return nil
}

func firstList(tags Tags, keys []string) []string {
	for _, key := range keys {
		raw, ok := tags[key]
		if !ok || raw == nil {
			continue
		}
		var out []string
		switch v := raw.(type) {
		case []string:
			out = append(out, v...)
		case []any:
			for _, item := range v {
				out = append(out, fmt.Sprint(item))
			}
		case string:
			out = strings.Split(v, ",")
		default:
			out = []string{fmt.Sprint(v)}
		}
		cleaned := out[:0]
		for _, s := range out {
			if s = strings.TrimSpace(s); s != "" {
				cleaned = append(cleaned, s)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return nil
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "mm"))
		if num, den, ok := strings.Cut(v, "/"); ok {
			n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
			d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
			if err1 != nil || err2 != nil || d == 0 {
				return 0, false
			}
			return n / d, true
		}
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "0000") {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
