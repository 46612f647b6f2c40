package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// placeOriginal copies src to dst through a temporary file so a crash never leaves a
// truncated original behind. The source modification time is preserved.
func placeOriginal(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open original: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat original: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create images dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".ingest-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("copy original: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod original: %w", err)
	}
	_ = os.Chtimes(tmpName, info.ModTime(), info.ModTime())

	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("place original: %w", err)
	}
	return nil
}
