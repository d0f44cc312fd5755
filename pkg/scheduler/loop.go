// Package scheduler serializes the console core onto one goroutine and
// provides cancellable timers whose callbacks run on that goroutine.
package scheduler

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopStopped is returned when work is submitted to a loop that has exited.
var ErrLoopStopped = errors.New("event loop is stopped")

// Executor runs callbacks on the single logical thread that owns the core.
type Executor interface {
	// Post queues fn and returns without waiting. It reports false if fn will never run.
	Post(fn func()) bool
	// Do queues fn and waits until it has run.
	Do(fn func()) error
}

// Loop is an Executor backed by a goroutine draining a task queue.
// Do must not be called from inside a task.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop with the given queue capacity.
func NewLoop(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Loop{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Post implements Executor.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.tasks <- fn:
		return true
	}
}

// Do implements Executor.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Run drains the queue until ctx is cancelled. Queued tasks left behind are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Inline runs every callback immediately on the caller's goroutine.
type Inline struct{}

// Post implements Executor.
func (Inline) Post(fn func()) bool {
	fn()
	return true
}

// Do implements Executor.
func (Inline) Do(fn func()) error {
	fn()
	return nil
}
