package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cesargomez89/mediacache/internal/metrics"
)

// ErrQueueClosed is returned when submitting to a closed queue.
var ErrQueueClosed = errors.New("queue closed")

// Queue runs submitted tasks one at a time, in submission order, on a
// single goroutine. Tasks must not submit to the queue they run on.
type Queue struct {
	tasks   chan *task
	done    chan struct{}
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

type task struct {
	ctx    context.Context
	fn     func(ctx context.Context) error
	result chan error
}

// NewQueue starts a queue accepting up to size pending tasks without blocking.
func NewQueue(size int, m *metrics.Metrics) *Queue {
	if size < 0 {
		size = 0
	}
	q := &Queue{
		tasks:   make(chan *task, size),
		done:    make(chan struct{}),
		metrics: m,
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for t := range q.tasks {
		q.metrics.QueueDepth(-1)
		t.result <- q.exec(t)
	}
}

func (q *Queue) exec(t *task) (err error) {
	if err := t.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queued task panicked: %v", r)
		}
	}()
	return t.fn(t.ctx)
}

// Submit enqueues fn and waits for it to finish. A task whose context is
// cancelled before it starts is skipped.
func (q *Queue) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	t := &task{ctx: ctx, fn: fn, result: make(chan error, 1)}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	select {
	case q.tasks <- t:
		q.metrics.QueueDepth(1)
	case <-ctx.Done():
		q.mu.RUnlock()
		return ctx.Err()
	}
	q.mu.RUnlock()

	return <-t.result
}

// Close stops accepting tasks, runs the ones already queued and waits for
// the worker goroutine to exit.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()
	})
	<-q.done
}
