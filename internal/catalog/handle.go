package catalog

import (
	"context"
	"fmt"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/storage"
	"go.uber.org/zap"
)

// Handle is an open catalog ready for writing.
type Handle struct {
	*Writer
	Repo *Repository
	db   *storage.Catalog
}

// Open connects to the catalog at url, creates the schema and returns a writer.
func Open(ctx context.Context, url string, log *zap.Logger) (*Handle, error) {
	db, err := storage.OpenCatalog(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	repo := NewRepository(db.DB, db.Dialect)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Handle{Writer: NewWriter(repo, log), Repo: repo, db: db}, nil
}

// Ping checks the underlying connection.
func (h *Handle) Ping(ctx context.Context) error {
	return h.db.Ping(ctx)
}

// Close releases the connection.
func (h *Handle) Close() error {
	return h.db.Close()
}
