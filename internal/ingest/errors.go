package ingest

import "errors"

var (
	// ErrAborted is returned when the operator declines the confirmation prompt.
	ErrAborted = errors.New("run aborted by operator")
	// ErrItemPanicked wraps a recovered panic from a single item.
	ErrItemPanicked = errors.New("item panicked")
	// ErrNotStarted signals a readiness check before the catalog is open.
	ErrNotStarted = errors.New("catalog not open")
	// ErrLocalModeOnly rejects operations that would act on a staging copy of a
	// production catalog.
	ErrLocalModeOnly = errors.New("only supported in local mode")
)
