package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/identity"
	"go.uber.org/zap"
)

type recordStore interface {
	Upsert(ctx context.Context, rec Record) (Record, error)
	DeleteExcept(ctx context.Context, keep map[string]struct{}) ([]string, error)
}

// Writer is the only component that mutates the catalog.
type Writer struct {
	store recordStore
	log   *zap.Logger
}

// NewWriter wraps a record store.
func NewWriter(store recordStore, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{store: store, log: log}
}

// Upsert writes rec, converging on the latest values for its identity.
func (w *Writer) Upsert(ctx context.Context, rec Record) (Record, error) {
	return w.store.Upsert(ctx, rec)
}

// Reconcile deletes every row whose identity has no backing file in dirs.
// Missing or empty directories contribute nothing, so an empty output deletes all rows.
func (w *Writer) Reconcile(ctx context.Context, dirs ...string) (ReconcileResult, error) {
	keep, err := IdentitiesOnDisk(dirs...)
	if err != nil {
		return ReconcileResult{}, err
	}
	return w.ReconcileIdentities(ctx, keep)
}

// ReconcileIdentities deletes every row whose identity is not in keep.
func (w *Writer) ReconcileIdentities(ctx context.Context, keep map[string]struct{}) (ReconcileResult, error) {
	deleted, err := w.store.DeleteExcept(ctx, keep)
	if err != nil {
		return ReconcileResult{}, err
	}

	for _, id := range deleted {
		w.log.Info("removed catalog row without backing file", zap.String("identity", id))
	}
	return ReconcileResult{Kept: len(keep), Deleted: deleted}, nil
}

// IdentitiesOnDisk derives identities from the file names found in dirs.
func IdentitiesOnDisk(dirs ...string) (map[string]struct{}, error) {
	keep := make(map[string]struct{})
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("list output dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if id, ok := identity.FromFilename(entry.Name()); ok {
				keep[id] = struct{}{}
			}
		}
	}
	return keep, nil
}
