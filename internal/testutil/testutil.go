// Package testutil provides shared test helpers for documents on disk and
// headless engines.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/yamui/internal/docstore"
	"github.com/starford/yamui/internal/engine"
	"github.com/starford/yamui/internal/render"
	"github.com/starford/yamui/internal/telemetry"
)

// CounterDoc is a small document with state, a component, two screens and a
// modal.
const CounterDoc = `
app:
  initial_screen: home
state:
  count: "0"
components:
  badge:
    props:
      - caption
    widgets:
      - type: label
        id: badge_text
        text: "{{caption}}"
  confirm:
    widgets:
      - type: button
        id: confirm_ok
        text: OK
        on_click: close_modal()
screens:
  home:
    title: Counter
    widgets:
      - type: label
        id: count_label
        text: "Count: {{count}}"
      - type: button
        id: inc
        text: Add
        on_click: set(count, {{count}} + 1)
      - type: badge
        caption: "{{count}} clicks"
  settings:
    title: Settings
    widgets:
      - type: label
        text: Settings
`

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Inline is a Dispatcher that runs closures on the calling goroutine.
type Inline struct{}

// Do runs fn unless ctx is already done.
func (Inline) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

// Engine returns an engine over a memory backend and a telemetry recorder.
func Engine(t *testing.T, opts ...engine.Option) (*engine.Engine, *render.Memory, *telemetry.Recorder) {
	t.Helper()
	mem := render.NewMemory()
	rec := &telemetry.Recorder{}
	opts = append([]engine.Option{engine.WithBackend(mem), engine.WithSink(rec), engine.WithLogger(Discard())}, opts...)
	e := engine.New(opts...)
	t.Cleanup(e.Close)
	return e, mem, rec
}

// WriteDoc writes a document file into dir.
func WriteDoc(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// DocStore creates a temporary document directory holding docs, keyed by
// file name.
func DocStore(t *testing.T, docs map[string]string) (string, *docstore.Store) {
	t.Helper()
	dir := t.TempDir()
	for file, content := range docs {
		WriteDoc(t, dir, file, content)
	}
	s, err := docstore.New(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	return dir, s
}
