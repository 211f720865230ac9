package trace

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/yamui/internal/telemetry"
)

// DefaultBuffer is the writer queue size.
const DefaultBuffer = 1024

const (
	maxBatch      = 128
	flushInterval = 250 * time.Millisecond
)

// Writer is a telemetry.Sink that journals events in batches. Emit never
// blocks: when the queue is full the event is dropped and counted.
type Writer struct {
	j       *Journal
	logger  *slog.Logger
	ch      chan telemetry.Event
	dropped atomic.Int64
	written atomic.Int64
}

// NewWriter returns a writer over j. Run must be started for events to
// reach the journal.
func NewWriter(j *Journal, buffer int, logger *slog.Logger) *Writer {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{j: j, logger: logger, ch: make(chan telemetry.Event, buffer)}
}

// Emit queues e.
func (w *Writer) Emit(e telemetry.Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case w.ch <- e:
	default:
		w.dropped.Add(1)
	}
}

// Dropped returns the number of events lost to a full queue.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Written returns the number of events committed to the journal.
func (w *Writer) Written() int64 { return w.written.Load() }

// Run writes queued events until ctx is cancelled, then flushes what is
// left.
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	w.logger.Info("trace: writer started", slog.String("session", w.j.Session()))
	batch := make([]telemetry.Event, 0, maxBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.j.Append(batch...); err != nil {
			w.logger.Warn("trace: append failed",
				slog.Int("events", len(batch)),
				slog.String("error", err.Error()))
		} else {
			w.written.Add(int64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-w.ch:
					batch = append(batch, e)
					if len(batch) == maxBatch {
						flush()
					}
				default:
					flush()
					w.logger.Info("trace: writer stopped",
						slog.Int64("written", w.written.Load()),
						slog.Int64("dropped", w.dropped.Load()))
					return nil
				}
			}
		case e := <-w.ch:
			batch = append(batch, e)
			if len(batch) == maxBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
