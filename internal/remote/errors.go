package remote

import "errors"

var (
	// ErrRemoteCatalogMissing signals that the remote side has no catalog yet.
	ErrRemoteCatalogMissing = errors.New("remote catalog does not exist")
	// ErrMissingHost signals an ssh syncer without a host.
	ErrMissingHost = errors.New("remote host is required")
)
