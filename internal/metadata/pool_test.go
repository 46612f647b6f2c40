package metadata

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPoolCapsConcurrency(t *testing.T) {
	var active, peak int32
	factory := func() (TagReader, error) {
		return &fakeReader{read: func(path string) (Tags, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return Tags{"Model": path}, nil
		}}, nil
	}

	pool := NewPool(3, factory)
	ctx := context.Background()

	var tasks []*Task
	for i := 0; i < 12; i++ {
		tasks = append(tasks, pool.Submit(ctx, fmt.Sprintf("img-%d.jpg", i)))
	}
	for i, task := range tasks {
		tags, err := task.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("img-%d.jpg", i), tags["Model"])
	}

	require.NoError(t, pool.Close())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, 3, pool.Size())
}

func TestPoolStartsReadersLazilyAndClosesThem(t *testing.T) {
	var started []*fakeReader
	var mu sync.Mutex
	pool := NewPool(4, func() (TagReader, error) {
		r := &fakeReader{read: func(string) (Tags, error) { return Tags{"ISO": 100.0}, nil }}
		mu.Lock()
		started = append(started, r)
		mu.Unlock()
		return r, nil
	})

	_, err := pool.Read(context.Background(), "a.jpg")
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	require.Len(t, started, 1)
	assert.True(t, started[0].closed)
}

func TestPoolReplacesFailedReader(t *testing.T) {
	var starts int32
	pool := NewPool(1, func() (TagReader, error) {
		n := atomic.AddInt32(&starts, 1)
		return &fakeReader{read: func(string) (Tags, error) {
			if n == 1 {
				return nil, fmt.Errorf("%w: pipe closed", ErrWorkerFailed)
			}
			return Tags{"Model": "ok"}, nil
		}}, nil
	})
	defer pool.Close()

	_, err := pool.Read(context.Background(), "a.jpg")
	require.ErrorIs(t, err, ErrWorkerFailed)

	tags, err := pool.Read(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "ok", tags["Model"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&starts))
}

func TestPoolKeepsReaderOnFileError(t *testing.T) {
	var starts int32
	pool := NewPool(1, func() (TagReader, error) {
		atomic.AddInt32(&starts, 1)
		return &fakeReader{read: func(string) (Tags, error) { return nil, ErrNoTags }}, nil
	})
	defer pool.Close()

	for i := 0; i < 3; i++ {
		_, err := pool.Read(context.Background(), "a.jpg")
		require.ErrorIs(t, err, ErrNoTags)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&starts))
}

func TestPoolSurfacesFactoryErrors(t *testing.T) {
	pool := NewPool(1, func() (TagReader, error) { return nil, errors.New("exec: not found") })
	defer pool.Close()

	_, err := pool.Read(context.Background(), "a.jpg")
	require.ErrorIs(t, err, ErrWorkerFailed)
}

func TestPoolRejectsAfterClose(t *testing.T) {
	pool := NewPool(2, func() (TagReader, error) { return &fakeReader{}, nil })
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	_, err := pool.Read(context.Background(), "a.jpg")
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestExtractorDegradesToEmptyMetadata(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	pool := NewPool(1, func() (TagReader, error) {
		return &fakeReader{read: func(string) (Tags, error) { return nil, errors.New("corrupt file") }}, nil
	})
	ex := NewExtractor(pool, zap.New(core))
	defer ex.Close()

	m := ex.Extract(context.Background(), "broken.jpg")

	assert.Equal(t, Metadata{}, m)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "broken.jpg", logs.All()[0].ContextMap()["path"])
}

func TestExtractorNormalisesTags(t *testing.T) {
	pool := NewPool(2, func() (TagReader, error) {
		return &fakeReader{read: func(string) (Tags, error) {
			return Tags{"DateTimeOriginal": "2023:05:01 10:00:00", "FNumber": 5.6}, nil
		}}, nil
	})
	ex := NewExtractor(pool, nil)
	defer ex.Close()

	m := ex.Extract(context.Background(), "a.jpg")
	require.NotNil(t, m.CapturedAt)
	require.NotNil(t, m.Aperture)
	assert.InDelta(t, 5.6, *m.Aperture, 1e-9)
}

func TestGoExifRejectsFileWithoutExif(t *testing.T) {
	_, err := GoExif{}.ReadTags(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
}

func TestExifToolProcessRoundTrip(t *testing.T) {
	binary, err := exec.LookPath("exiftool")
	if err != nil {
		t.Skip("exiftool not installed")
	}

	et, err := StartExifTool(binary)
	require.NoError(t, err)

	_, err = et.ReadTags(context.Background(), "bad\npath.jpg")
	require.ErrorIs(t, err, ErrUnsafePath)

	_, err = et.ReadTags(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrWorkerFailed))

	require.NoError(t, et.Close())
}

// --- helpers & fakes ---

type fakeReader struct {
	read   func(path string) (Tags, error)
	closed bool
}

func (f *fakeReader) ReadTags(ctx context.Context, path string) (Tags, error) {
	if f.read == nil {
		return Tags{}, nil
	}
	return f.read(path)
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}
