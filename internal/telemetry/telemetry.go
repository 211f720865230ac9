// Package telemetry carries structured runtime events from the engine to
// logs, the trace journal and live subscribers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Type classifies an event.
type Type string

const (
	TypeScreenLoad   Type = "screen_load"
	TypeEvent        Type = "event"
	TypeAction       Type = "action"
	TypeStateChange  Type = "state_change"
	TypeError        Type = "error"
	TypePerf         Type = "perf"
	TypeModal        Type = "modal"
	TypeDocumentLoad Type = "document_load"
)

// Event is one telemetry record.
type Event struct {
	Type    Type      `json:"type"`
	Subject string    `json:"subject"`
	Detail  string    `json:"detail,omitempty"`
	Arg0    string    `json:"arg0,omitempty"`
	Arg1    string    `json:"arg1,omitempty"`
	Value   float64   `json:"value,omitempty"`
	At      time.Time `json:"at"`
}

// Sink receives events. Emit must not block.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// LogSink writes events at debug level, errors at warn level.
func LogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return SinkFunc(func(e Event) {
		level := slog.LevelDebug
		if e.Type == TypeError {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "telemetry: "+string(e.Type),
			slog.String("category", "runtime"),
			slog.String("subject", e.Subject),
			slog.String("detail", e.Detail),
			slog.String("arg0", e.Arg0),
			slog.String("arg1", e.Arg1),
			slog.Float64("value", e.Value))
	})
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
