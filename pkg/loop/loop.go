// Package loop provides a single-threaded event loop. Every overlay mutation
// (inbound feed messages, pointer gestures, rendering) runs on it, so the
// scene graph needs no locking.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ErrStopped is returned when work is submitted after the loop has exited.
var ErrStopped = errors.New("loop: stopped")

// Loop executes submitted functions one at a time, in submission order.
type Loop struct {
	tasks   chan func()
	stopped chan struct{}
	logger  *slog.Logger
	running atomic.Bool

	processed atomic.Int64
	panics    atomic.Int64
}

// New creates a loop whose queue holds up to queueSize pending tasks.
func New(queueSize int, logger *slog.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		tasks:   make(chan func(), queueSize),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Run executes tasks until ctx is done. It must be called exactly once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("loop: already running")
	}
	defer close(l.stopped)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-l.tasks:
			l.exec(task)
		}
	}
}

func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.Error("loop task panicked", "panic", r)
		}
	}()
	task()
	l.processed.Add(1)
}

// Post queues f and returns immediately. It blocks only while the queue is
// full, and drops f once the loop has stopped.
func (l *Loop) Post(f func()) {
	select {
	case l.tasks <- f:
	case <-l.stopped:
		l.logger.Debug("loop stopped, dropping task")
	}
}

// Do runs f on the loop and waits for it to return. Calling Do from inside a
// loop task deadlocks.
func (l *Loop) Do(ctx context.Context, f func() error) error {
	errCh := make(chan error, 1)
	task := func() { errCh <- f() }

	select {
	case l.tasks <- task:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errCh:
		return err
	case <-l.stopped:
		// The task may have finished right before the loop exited
		select {
		case err := <-errCh:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns loop statistics.
func (l *Loop) Stats() Stats {
	return Stats{
		Queued:    len(l.tasks),
		Processed: l.processed.Load(),
		Panics:    l.panics.Load(),
	}
}

// Stats contains loop statistics.
type Stats struct {
	Queued    int   `json:"queued"`
	Processed int64 `json:"processed"`
	Panics    int64 `json:"panics"`
}
