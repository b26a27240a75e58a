// Package eventloop provides the single-threaded cooperative scheduler that
// owns all dashboard state. Work from other goroutines (network fetches,
// timers) reaches that state only by posting a task.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrClosed = errors.New("event loop closed")

type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
	logger *slog.Logger
}

func New(logger *slog.Logger) *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Post enqueues fn. It never blocks and reports false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// AfterFunc posts fn once d has elapsed. Stopping the returned timer before it
// fires prevents the post.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled. Only one goroutine may run the
// loop at a time.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			l.close()
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunPending executes queued tasks, including tasks they enqueue, until the
// queue is empty. It returns the number of tasks executed.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.runTask(fn)
			n++
		}
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if err := recover(); err != nil && l.logger != nil {
			l.logger.Error("event loop task panicked", "error", err)
		}
	}()
	fn()
}

func (l *Loop) close() {
	l.mu.Lock()
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
}
