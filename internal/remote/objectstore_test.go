package remote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectStorePushDirectoryUploadsEveryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("\xff\xd8\xff\xe0"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("hello"), 0o644))

	store := newFakeObjectStore()
	s := NewObjectStoreSyncer(store, "photos", "/gallery/")

	require.NoError(t, s.PushDirectory(context.Background(), dir, "/images"))

	keys := make([]string, 0, len(store.puts))
	for k := range store.puts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"gallery/images/a.jpg", "gallery/images/sub/b.txt"}, keys)
	assert.Equal(t, "image/jpeg", store.contentTypes["gallery/images/a.jpg"])
}

func TestObjectStorePushDirectoryToleratesMissingDir(t *testing.T) {
	s := NewObjectStoreSyncer(newFakeObjectStore(), "photos", "")
	require.NoError(t, s.PushDirectory(context.Background(), filepath.Join(t.TempDir(), "none"), "images"))
}

func TestObjectStoreCatalogRoundTrip(t *testing.T) {
	store := newFakeObjectStore()
	s := NewObjectStoreSyncer(store, "photos", "")
	local := filepath.Join(t.TempDir(), "catalog.db")
	require.NoError(t, os.WriteFile(local, []byte("sqlite"), 0o644))

	require.NoError(t, s.PushCatalog(context.Background(), local, "/srv/catalog.db"))
	assert.Contains(t, store.puts, "srv/catalog.db")

	pulled := filepath.Join(t.TempDir(), "pulled.db")
	require.NoError(t, s.PullCatalog(context.Background(), "/srv/catalog.db", pulled))
	assert.Equal(t, []string{"srv/catalog.db"}, store.gets)
}

func TestObjectStorePullMissingCatalog(t *testing.T) {
	store := newFakeObjectStore()
	store.getErr = minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	s := NewObjectStoreSyncer(store, "photos", "")

	err := s.PullCatalog(context.Background(), "catalog.db", filepath.Join(t.TempDir(), "c.db"))
	assert.ErrorIs(t, err, ErrRemoteCatalogMissing)
}

func TestObjectStorePullOtherFailure(t *testing.T) {
	store := newFakeObjectStore()
	store.getErr = errors.New("dial tcp: connection refused")
	s := NewObjectStoreSyncer(store, "photos", "")

	err := s.PullCatalog(context.Background(), "catalog.db", filepath.Join(t.TempDir(), "c.db"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRemoteCatalogMissing))
}

func TestObjectStoreListDirectoryReturnsBaseNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0123456789abcdef.jpg"), []byte("\xff\xd8\xff\xe0"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fedcba9876543210.jpg"), []byte("\xff\xd8\xff\xe0"), 0o644))

	store := newFakeObjectStore()
	s := NewObjectStoreSyncer(store, "photos", "gallery")
	require.NoError(t, s.PushDirectory(context.Background(), dir, "/srv/images"))
	require.NoError(t, s.PushDirectory(context.Background(), dir, "/srv/thumbnails"))

	names, err := s.ListDirectory(context.Background(), "/srv/images")
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"0123456789abcdef.jpg", "fedcba9876543210.jpg"}, names)

	names, err = s.ListDirectory(context.Background(), "/srv/missing")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestObjectStoreListDirectoryReportsErrors(t *testing.T) {
	store := newFakeObjectStore()
	store.listErr = errors.New("access denied")
	s := NewObjectStoreSyncer(store, "photos", "")

	_, err := s.ListDirectory(context.Background(), "images")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

// --- helpers & fakes ---

type fakeObjectStore struct {
	puts         map[string]string
	contentTypes map[string]string
	gets         []string
	getErr       error
	listErr      error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{puts: map[string]string{}, contentTypes: map[string]string{}}
}

func (f *fakeObjectStore) FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.puts[objectName] = filePath
	f.contentTypes[objectName] = opts.ContentType
	return minio.UploadInfo{Bucket: bucketName, Key: objectName}, nil
}

func (f *fakeObjectStore) FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error {
	if f.getErr != nil {
		return f.getErr
	}
	f.gets = append(f.gets, objectName)
	return nil
}

func (f *fakeObjectStore) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	keys := make([]string, 0, len(f.puts))
	for k := range f.puts {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	ch := make(chan minio.ObjectInfo, len(keys)+1)
	if f.listErr != nil {
		ch <- minio.ObjectInfo{Err: f.listErr}
	}
	for _, k := range keys {
		ch <- minio.ObjectInfo{Key: k}
	}
	close(ch)
	return ch
}
