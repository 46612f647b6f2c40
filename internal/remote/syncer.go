// Package remote moves the staged outputs and catalog between this machine and the
// gallery host.
package remote

import "context"

// Syncer transfers the catalog and output directories. Implementations never touch
// local state on failure.
type Syncer interface {
	PullCatalog(ctx context.Context, remotePath, localPath string) error
	PushDirectory(ctx context.Context, localDir, remoteDir string) error
	PushCatalog(ctx context.Context, localPath, remotePath string) error
	// ListDirectory names the files already published in remoteDir.
	ListDirectory(ctx context.Context, remoteDir string) ([]string, error)
}
