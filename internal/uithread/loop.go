// Package uithread provides the single goroutine that owns every backend
// call, with a non-blocking Post and a waiting Do.
package uithread

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/yamui/internal/apperr"
)

// DefaultTimeout bounds Do when the loop is created with a zero timeout.
const DefaultTimeout = 2 * time.Second

// Loop runs posted closures one at a time in FIFO order.
type Loop struct {
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
}

// New returns a loop. Closures run once Run is called.
func New(timeout time.Duration, logger *slog.Logger) *Loop {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{timeout: timeout, logger: logger, wake: make(chan struct{}, 1)}
}

// Post queues fn without blocking. It reports false once the loop is closed.
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

// Do runs fn on the loop and waits for it to finish, for ctx to end, or for
// the loop timeout. A closure that times out may still run later. Do must
// not be called from the loop itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return fmt.Errorf("uithread: do: %w", apperr.ErrClosed)
	}
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("uithread: closure did not finish within %s: %w", l.timeout, apperr.ErrTimeout)
	}
}

// Run executes closures until ctx ends or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("uithread: started")
	defer l.logger.Info("uithread: stopped")
	for {
		l.RunPending()
		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
	}
}

// RunPending runs every queued closure, including closures queued while it
// runs, on the calling goroutine. It returns how many ran.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.queue = nil
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		l.run(fn)
		n++
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("uithread: closure panicked",
				slog.String("category", "runtime"),
				slog.Any("panic", r))
		}
	}()
	fn()
}

// Pending returns the number of queued closures.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops accepting closures and wakes Run, which returns after
// draining what is already queued.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
