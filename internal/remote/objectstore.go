package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
)

type objectStore interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// ObjectStoreSyncer publishes outputs to an S3-compatible bucket. Remote paths are
// mapped to object keys under an optional prefix.
type ObjectStoreSyncer struct {
	store  objectStore
	bucket string
	prefix string
}

// NewObjectStoreSyncer builds a syncer over a MinIO client or compatible store.
func NewObjectStoreSyncer(store objectStore, bucket, prefix string) *ObjectStoreSyncer {
	return &ObjectStoreSyncer{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// PullCatalog downloads the catalog object to localPath.
func (s *ObjectStoreSyncer) PullCatalog(ctx context.Context, remotePath, localPath string) error {
	key := s.key(remotePath)
	if err := s.store.FGetObject(ctx, s.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", ErrRemoteCatalogMissing, key)
		}
		return fmt.Errorf("download catalog %s: %w", key, err)
	}
	return nil
}

// PushDirectory uploads every regular file under localDir below remoteDir.
func (s *ObjectStoreSyncer) PushDirectory(ctx context.Context, localDir, remoteDir string) error {
	return filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == localDir {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		key := s.key(path.Join(remoteDir, filepath.ToSlash(rel)))
		if _, err := s.store.FPutObject(ctx, s.bucket, key, p, minio.PutObjectOptions{ContentType: contentType(p)}); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		return nil
	})
}

// PushCatalog uploads the local catalog file.
func (s *ObjectStoreSyncer) PushCatalog(ctx context.Context, localPath, remotePath string) error {
	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("stat catalog: %w", err)
	}
	key := s.key(remotePath)
	if _, err := s.store.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{ContentType: "application/vnd.sqlite3"}); err != nil {
		return fmt.Errorf("upload catalog %s: %w", key, err)
	}
	return nil
}

// ListDirectory returns the base names of the objects stored under remoteDir.
func (s *ObjectStoreSyncer) ListDirectory(ctx context.Context, remoteDir string) ([]string, error) {
	prefix := s.key(remoteDir)
	if prefix != "" {
		prefix += "/"
	}
	var names []string
	for obj := range s.store.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		names = append(names, path.Base(obj.Key))
	}
	return names, nil
}

func (s *ObjectStoreSyncer) key(remotePath string) string {
	clean := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(remotePath)), "/")
	if s.prefix == "" {
		return clean
	}
	return s.prefix + "/" + clean
}

func contentType(p string) string {
	mt, err := mimetype.DetectFile(p)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}
