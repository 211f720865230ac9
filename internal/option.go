package internal

import (
	"io"

	"github.com/starford/yamui/internal/natives"
	"github.com/starford/yamui/internal/render"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	backend render.Backend
	natives *natives.Registry
	logOut  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithBackend sets the renderer backend. The default is the headless
// in-memory backend.
func WithBackend(b render.Backend) Option {
	return func(a *application) {
		a.backend = b
	}
}

// WithNatives sets the native function registry exposed to documents.
func WithNatives(r *natives.Registry) Option {
	return func(a *application) {
		a.natives = r
	}
}

// WithLogOutput redirects the JSON log stream. The MCP command logs to
// stderr because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
