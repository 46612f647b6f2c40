package scanner

import "errors"

var (
	// ErrSymlinkCycle signals a symlinked directory that points back at one of its ancestors.
	ErrSymlinkCycle = errors.New("symlink cycle")
	// ErrMaxDepthExceeded signals a tree deeper than the configured limit.
	ErrMaxDepthExceeded = errors.New("max directory depth exceeded")
	// ErrNotDirectory signals a source root that is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrOutsideRoot signals a path that is not below the source root.
	ErrOutsideRoot = errors.New("path outside source root")
)
