package metadata

import "errors"

var (
	// ErrPoolClosed is returned for work submitted after Close.
	ErrPoolClosed = errors.New("metadata pool closed")
	// ErrWorkerFailed marks errors after which a reader can no longer be trusted.
	ErrWorkerFailed = errors.New("metadata worker failed")
	// ErrNoTags signals that the reader produced nothing for a file.
	ErrNoTags = errors.New("no metadata tags")
	// ErrUnsafePath signals a path that cannot be passed over the argument protocol.
	ErrUnsafePath = errors.New("path contains line breaks")
)
