package engine

import (
	"log/slog"

	"github.com/starford/yamui/internal/natives"
	"github.com/starford/yamui/internal/render"
	"github.com/starford/yamui/internal/state"
	"github.com/starford/yamui/internal/telemetry"
	"github.com/starford/yamui/internal/yamlcore"
)

// DefaultMaxComponentDepth bounds component nesting during render.
const DefaultMaxComponentDepth = 16

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStore shares an existing state store.
func WithStore(s *state.Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

// WithBackend sets the widget backend. The default is a render.Memory.
func WithBackend(b render.Backend) Option {
	return func(e *Engine) {
		if b != nil {
			e.backend = b
		}
	}
}

// WithSink sets the telemetry sink.
func WithSink(s telemetry.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithPoster makes state-driven widget refreshes run through post, which
// must schedule them on the UI loop. Without a poster refreshes run on the
// goroutine that changed the state.
func WithPoster(post func(func())) Option {
	return func(e *Engine) { e.post = post }
}

// WithMaxComponentDepth bounds component nesting during render.
func WithMaxComponentDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithNavQueueMaxDepth bounds the deferred navigation queue. Zero means
// unbounded.
func WithNavQueueMaxDepth(n int) Option {
	return func(e *Engine) { e.navMaxDepth = n }
}

// WithNatives shares a native function registry.
func WithNatives(r *natives.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.natives = r
		}
	}
}

// WithLimits sets the document parse limits.
func WithLimits(l yamlcore.Limits) Option {
	return func(e *Engine) { e.limits = l }
}
