package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const bucketCheckTimeout = 5 * time.Second

// OpenObjectStore connects to the sync bucket, creating it on first use.
func OpenObjectStore(ctx context.Context, cfg config.MinIOConfig) (*minio.Client, error) {
	endpoint, secure := objectStoreEndpoint(cfg)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, bucketCheckTimeout)
	defer cancel()

	exists, err := client.BucketExists(checkCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}
	return client, nil
}

// objectStoreEndpoint strips any scheme from the endpoint, defaulting the port to 9000.
// An https:// scheme turns TLS on even when UseSSL is false.
func objectStoreEndpoint(cfg config.MinIOConfig) (string, bool) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	secure := cfg.UseSSL
	if rest, ok := strings.CutPrefix(endpoint, "https://"); ok {
		endpoint, secure = rest, true
	}
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.Contains(endpoint, ":") {
		endpoint += ":9000"
	}
	return endpoint, secure
}
