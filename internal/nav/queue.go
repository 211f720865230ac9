// Package nav implements the screen and modal stacks and the deferred
// request queue that keeps navigation from re-entering a render.
//
// Nothing in this package is safe for concurrent use. It is driven from the
// UI loop only.
package nav

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/yamui/internal/apperr"
)

// RequestType is the kind of a navigation request.
type RequestType int

const (
	RequestGoto RequestType = iota + 1
	RequestPush
	RequestReplace
	RequestPop
	RequestShowModal
	RequestCloseModal
)

func (t RequestType) String() string {
	switch t {
	case RequestGoto:
		return "goto"
	case RequestPush:
		return "push"
	case RequestReplace:
		return "replace"
	case RequestPop:
		return "pop"
	case RequestShowModal:
		return "modal"
	case RequestCloseModal:
		return "close_modal"
	}
	return fmt.Sprintf("request(%d)", int(t))
}

// Request is one navigation command.
type Request struct {
	Type RequestType
	Arg  string
}

func (r Request) String() string {
	if r.Arg == "" {
		return r.Type.String()
	}
	return r.Type.String() + "(" + r.Arg + ")"
}

// Goto replaces the top screen.
func Goto(screen string) Request { return Request{Type: RequestGoto, Arg: screen} }

// Push adds a screen.
func Push(screen string) Request { return Request{Type: RequestPush, Arg: screen} }

// Replace replaces the top screen, pushing onto an empty stack.
func Replace(screen string) Request { return Request{Type: RequestReplace, Arg: screen} }

// Pop removes the top screen.
func Pop() Request { return Request{Type: RequestPop} }

// ShowModal opens a modal built from a component.
func ShowModal(component string) Request {
	return Request{Type: RequestShowModal, Arg: component}
}

// CloseModal closes the top modal.
func CloseModal() Request { return Request{Type: RequestCloseModal} }

// Executor carries out a request.
type Executor func(Request) error

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithMaxDepth bounds the number of pending requests. Zero means unbounded.
func WithMaxDepth(n int) QueueOption {
	return func(q *Queue) { q.maxDepth = n }
}

// WithLogger sets the logger used for failed drained requests.
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// Queue is the Idle/Rendering state machine with its FIFO of deferred
// requests.
type Queue struct {
	exec      Executor
	maxDepth  int
	logger    *slog.Logger
	rendering bool
	pending   []Request
}

// NewQueue returns an idle queue that runs requests with exec.
func NewQueue(exec Executor, opts ...QueueOption) *Queue {
	q := &Queue{exec: exec, logger: slog.Default()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit runs r immediately when idle with nothing pending. During a render
// it queues r and returns nil without running it. Requests left pending by a
// failed render run ahead of r on the next idle Submit.
func (q *Queue) Submit(r Request) error {
	if !q.rendering && len(q.pending) == 0 {
		return q.exec(r)
	}
	if q.maxDepth > 0 && len(q.pending) >= q.maxDepth {
		return fmt.Errorf("nav: %s: %d requests pending: %w", r, len(q.pending), apperr.ErrQueueFull)
	}
	q.pending = append(q.pending, r)
	if q.rendering {
		return nil
	}
	return q.drain()
}

// BeginRender enters the Rendering state.
func (q *Queue) BeginRender() error {
	if q.rendering {
		return apperr.ErrAlreadyRendering
	}
	q.rendering = true
	return nil
}

// EndRender returns to Idle. On success it drains pending requests in order
// until the queue is empty or a drained request starts another render, whose
// own EndRender then continues the drain. A failing request does not stop
// the drain; all failures are returned joined. After a failed render the
// requests stay pending.
func (q *Queue) EndRender(success bool) error {
	if !q.rendering {
		return nil
	}
	q.rendering = false
	if !success {
		return nil
	}
	return q.drain()
}

func (q *Queue) drain() error {
	var errs []error
	for len(q.pending) > 0 && !q.rendering {
		r := q.pending[0]
		q.pending = q.pending[1:]
		if err := q.exec(r); err != nil {
			q.logger.Warn("nav: queued request failed",
				slog.String("category", "nav"),
				slog.String("request", r.String()),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if len(q.pending) == 0 {
		q.pending = nil
	}
	return errors.Join(errs...)
}

// Depth returns the number of pending requests.
func (q *Queue) Depth() int { return len(q.pending) }

// Rendering reports whether a render is in progress.
func (q *Queue) Rendering() bool { return q.rendering }

// Reset drops pending requests and returns to Idle.
func (q *Queue) Reset() {
	q.pending = nil
	q.rendering = false
}
