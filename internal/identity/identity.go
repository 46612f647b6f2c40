// Package identity derives the stable identifier used to name every output of an image.
package identity

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

const (
	// NoDate stands in for a missing capture time.
	NoDate = "no-date"
	// Length is the number of hex characters kept from the digest.
	Length = 16

	thumbnailPrefix = "thumb_"
	thumbnailExt    = ".jpg"
)

// Of returns the identity for a filename and optional capture time.
// Re-ingesting the same export yields the same identity, so outputs are overwritten in place.
func Of(filename string, captured *time.Time) string {
	stamp := NoDate
	if captured != nil {
		stamp = captured.UTC().Format(time.RFC3339)
	}
	sum := blake2b.Sum256([]byte(filename + "-" + stamp))
	return hex.EncodeToString(sum[:])[:Length]
}

// Original names the placed original for an identity, keeping the source extension.
func Original(id, ext string) string {
	return id + strings.ToLower(ext)
}

// Thumbnail names the thumbnail for an identity.
func Thumbnail(id string) string {
	return thumbnailPrefix + id + thumbnailExt
}

// FromFilename recovers the identity from an output filename, stripping the thumbnail
// prefix and extension. ok is false for names that cannot hold an identity.
func FromFilename(name string) (id string, ok bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimPrefix(stem, thumbnailPrefix)
	if stem == "" {
		return "", false
	}
	return stem, true
}
