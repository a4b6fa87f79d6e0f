package dashx

import (
	"context"
	"fmt"
	"sync"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// runner executes background calls with at most limit running at once.
// Go never blocks the caller; calls over the limit wait inside their own
// goroutine.
type runner struct {
	logger logging.Logger
	sem    *semaphore.Weighted

	mu     sync.RWMutex
	group  *errgroup.Group
	closed bool
}

func newRunner(limit int, logger logging.Logger) *runner {
	if limit <= 0 {
		limit = 1
	}
	return &runner{
		logger: logger,
		sem:    semaphore.NewWeighted(int64(limit)),
		group:  &errgroup.Group{},
	}
}

// Go schedules fn and reports whether it was accepted. A panic in fn is
// logged and swallowed.
func (r *runner) Go(ctx context.Context, name string, fn func(context.Context) error) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn(ctx, "client closed, dropping call", "op", name)
		return false
	}

	r.group.Go(func() error {
		// fn must run exactly once, so waiting for a slot ignores ctx.
		if err := r.sem.Acquire(context.WithoutCancel(ctx), 1); err != nil {
			return nil
		}
		defer r.sem.Release(1)

		if err := runSafe(ctx, r.logger, name, fn); err != nil {
			r.logger.Debug(ctx, "background call failed", "op", name, "err", err)
		}
		return nil
	})
	return true
}

// Flush waits for every call scheduled before it.
func (r *runner) Flush() {
	r.mu.Lock()
	g := r.group
	r.group = &errgroup.Group{}
	r.mu.Unlock()

	_ = g.Wait()
}

// Close rejects new calls and waits for running ones.
func (r *runner) Close() {
	r.mu.Lock()
	r.closed = true
	g := r.group
	r.mu.Unlock()

	_ = g.Wait()
}

type task struct {
	ctx  context.Context
	name string
	fn   func(context.Context) error
	done chan error
}

// serial runs calls one at a time in the order they were scheduled. A
// worker goroutine is started on demand and exits when the queue drains.
type serial struct {
	logger logging.Logger

	mu      sync.Mutex
	idle    *sync.Cond
	tasks   []task
	running bool
	closed  bool
}

func newSerial(logger logging.Logger) *serial {
	q := &serial{logger: logger}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Go queues fn and reports whether it was accepted.
func (q *serial) Go(ctx context.Context, name string, fn func(context.Context) error) bool {
	return q.push(task{ctx: ctx, name: name, fn: fn})
}

// Do queues fn behind everything already scheduled and waits for its
// result. It returns common.ErrClosed when the queue is closed.
func (q *serial) Do(ctx context.Context, name string, fn func(context.Context) error) error {
	done := make(chan error, 1)
	if !q.push(task{ctx: ctx, name: name, fn: fn, done: done}) {
		return common.ErrClosed
	}
	return <-done
}

func (q *serial) push(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn(t.ctx, "client closed, dropping call", "op", t.name)
		return false
	}
	q.tasks = append(q.tasks, t)
	if !q.running {
		q.running = true
		go q.loop()
	}
	return true
}

func (q *serial) loop() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		t := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		err := runSafe(t.ctx, q.logger, t.name, t.fn)
		if t.done != nil {
			t.done <- err
			continue
		}
		if err != nil {
			q.logger.Debug(t.ctx, "background call failed", "op", t.name, "err", err)
		}
	}
}

// Flush waits until the queue is empty.
func (q *serial) Flush() {
	q.mu.Lock()
	for q.running {
		q.idle.Wait()
	}
	q.mu.Unlock()
}

// Close rejects new calls and waits for queued ones.
func (q *serial) Close() {
	q.mu.Lock()
	q.closed = true
	for q.running {
		q.idle.Wait()
	}
	q.mu.Unlock()
}

func runSafe(ctx context.Context, logger logging.Logger, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, "background call panicked", "op", name, "panic", p)
			err = fmt.Errorf("%s: panic: %v", name, p)
		}
	}()
	return fn(ctx)
}
