// Package async provides a bounded executor for detached post-commit work.
// The mutation pipeline hands side effects here without awaiting them; the
// work runs on a background context so client disconnects cannot cancel
// cache invalidation or event enqueue for an already-committed write.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Executor struct {
	logger  *slog.Logger
	jobs    chan func(context.Context)
	wg      sync.WaitGroup
	pending sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewExecutor starts workers goroutines consuming submitted work. queueSize
// bounds how much detached work may pile up before Submit starts dropping.
func NewExecutor(workers, queueSize int, logger *slog.Logger) *Executor {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	e := &Executor{
		logger: logger,
		jobs:   make(chan func(context.Context), queueSize),
	}

	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker()
	}

	return e
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for job := range e.jobs {
		func() {
			defer func() {
				if p := recover(); p != nil {
					e.logger.Error("detached job panicked", slog.Any("panic", p))
				}
				e.pending.Done()
			}()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			job(ctx)
		}()
	}
}

// Submit queues fn for detached execution. If the executor is shut down or
// the queue is full the work is dropped with a log line; detached side
// effects are best-effort and never block or fail the caller.
func (e *Executor) Submit(fn func(context.Context)) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn("detached executor closed, dropping job")
		return
	}
	e.pending.Add(1)
	e.mu.Unlock()

	select {
	case e.jobs <- fn:
	default:
		e.pending.Done()
		e.logger.Warn("detached executor queue full, dropping job")
	}
}

// Flush blocks until every job submitted so far has finished. Test harnesses
// use this instead of wall-clock sleeps.
func (e *Executor) Flush() {
	e.pending.Wait()
}

// Shutdown drains outstanding work and stops the workers.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.pending.Wait()
	close(e.jobs)
	e.wg.Wait()
}
