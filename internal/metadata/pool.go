package metadata

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// TagReader reads raw tags for one file at a time.
type TagReader interface {
	ReadTags(ctx context.Context, path string) (Tags, error)
	Close() error
}

// Factory starts a new TagReader.
type Factory func() (TagReader, error)

// Pool caps the number of concurrently running readers. Readers start lazily and a
// reader that reports ErrWorkerFailed is closed and replaced on next use.
type Pool struct {
	factory Factory
	slots   chan TagReader
	size    int

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// Task is a pending tag read.
type Task struct {
	done chan struct{}
	tags Tags
	err  error
}

// NewPool builds a pool of at most size readers.
func NewPool(size int, factory Factory) *Pool {
	if size < 1 {
		size = 1
	}
	slots := make(chan TagReader, size)
	for i := 0; i < size; i++ {
		slots <- nil
	}
	return &Pool{factory: factory, slots: slots, size: size}
}

// Size is the maximum number of concurrent readers.
func (p *Pool) Size() int {
	return p.size
}

// Submit queues a read. The returned task completes once a reader has handled the path.
func (p *Pool) Submit(ctx context.Context, path string) *Task {
	task := &Task{done: make(chan struct{})}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		task.err = ErrPoolClosed
		close(task.done)
		return task
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.inflight.Done()
		defer close(task.done)
		task.tags, task.err = p.run(ctx, path)
	}()
	return task
}

// Await blocks until the task finishes or ctx ends.
func (t *Task) Await(ctx context.Context) (Tags, error) {
	select {
	case <-t.done:
		return t.tags, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Read submits a path and waits for it.
func (p *Pool) Read(ctx context.Context, path string) (Tags, error) {
	return p.Submit(ctx, path).Await(ctx)
}

func (p *Pool) run(ctx context.Context, path string) (Tags, error) {
	var reader TagReader
	select {
	case reader = <-p.slots:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if reader == nil {
		started, err := p.factory()
		if err != nil {
			p.slots <- nil
			return nil, fmt.Errorf("%w: start reader: %v", ErrWorkerFailed, err)
		}
		reader = started
	}

	tags, err := reader.ReadTags(ctx, path)
	if err != nil && errors.Is(err, ErrWorkerFailed) {
		_ = reader.Close()
		reader = nil
	}
	p.slots <- reader
	return tags, err
}

// Close waits for submitted reads and stops every started reader.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()

	var errs []error
	for i := 0; i < p.size; i++ {
		reader := <-p.slots
		if reader == nil {
			continue
		}
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
