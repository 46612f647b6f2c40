package catalog

import "errors"

var (
	// ErrRecordNotFound signals that no row exists for an identity.
	ErrRecordNotFound = errors.New("record not found")
	// ErrMissingIdentity signals an upsert without an identity.
	ErrMissingIdentity = errors.New("record identity is required")
)
