// Package scanner finds exported images under a source tree.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultMaxDepth = 64

// Candidate is an image file selected for ingestion.
type Candidate struct {
	Path   string
	RelDir string
}

// Name is the candidate's base filename.
func (c Candidate) Name() string {
	return filepath.Base(c.Path)
}

// Ext is the lowercased extension including the dot.
func (c Candidate) Ext() string {
	return strings.ToLower(filepath.Ext(c.Path))
}

// Keywords are the folder names between the source root and the file.
func (c Candidate) Keywords() []string {
	if c.RelDir == "" || c.RelDir == "." {
		return []string{}
	}
	parts := strings.Split(filepath.ToSlash(c.RelDir), "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}

// Scanner walks a directory tree and selects candidate files.
type Scanner struct {
	extensions   map[string]struct{}
	markerSuffix string
	maxDepth     int
}

// New builds a scanner. Extensions are matched case-insensitively; an empty marker
// suffix accepts every filename.
func New(extensions []string, markerSuffix string, maxDepth int) *Scanner {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Scanner{extensions: set, markerSuffix: markerSuffix, maxDepth: maxDepth}
}

type pending struct {
	dir       string
	relDir    string
	depth     int
	ancestors []string
}

// Scan returns every candidate under root in path order.
// Filesystem errors abort the scan.
func (s *Scanner) Scan(ctx context.Context, root string) ([]Candidate, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}

	var out []Candidate
	stack := []pending{{dir: root, relDir: "", depth: 0, ancestors: []string{rootReal}}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(cur.dir)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", cur.dir, err)
		}

		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			full := filepath.Join(cur.dir, name)

			isDir := entry.IsDir()
			if entry.Type()&os.ModeSymlink != 0 {
				target, err := os.Stat(full)
				if err != nil {
					return nil, fmt.Errorf("follow symlink %s: %w", full, err)
				}
				isDir = target.IsDir()
			}

			if !isDir {
				if s.Accepts(name) {
					out = append(out, Candidate{Path: full, RelDir: cur.relDir})
				}
				continue
			}

			if cur.depth+1 > s.maxDepth {
				return nil, fmt.Errorf("%w: %s", ErrMaxDepthExceeded, full)
			}

			resolved, err := filepath.EvalSymlinks(full)
			if err != nil {
				return nil, fmt.Errorf("resolve directory %s: %w", full, err)
			}
			for _, seen := range cur.ancestors {
				if seen == resolved {
					return nil, fmt.Errorf("%w: %s -> %s", ErrSymlinkCycle, full, resolved)
				}
			}

			ancestors := make([]string, len(cur.ancestors), len(cur.ancestors)+1)
			copy(ancestors, cur.ancestors)
			stack = append(stack, pending{
				dir:       full,
				relDir:    filepath.Join(cur.relDir, name),
				depth:     cur.depth + 1,
				ancestors: append(ancestors, resolved),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Accepts reports whether a filename passes the extension and naming filters.
func (s *Scanner) Accepts(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := s.extensions[ext]; !ok {
		return false
	}
	if s.markerSuffix == "" {
		return true
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(strings.ToLower(stem), strings.ToLower(s.markerSuffix))
}

// CandidateFor builds the candidate for a single file under root.
func CandidateFor(root, path string) (Candidate, error) {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return Candidate{}, fmt.Errorf("relate %s to %s: %w", path, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Candidate{}, fmt.Errorf("%w: %s is outside %s", ErrOutsideRoot, path, root)
	}
	if rel == "." {
		rel = ""
	}
	return Candidate{Path: path, RelDir: rel}, nil
}
