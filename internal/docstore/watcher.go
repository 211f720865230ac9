package docstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/yamui/internal/checksum"
)

// DebounceInterval coalesces bursts of file events for one document.
const DebounceInterval = 200 * time.Millisecond

// ChangeFunc is called with a document whose content changed on disk.
type ChangeFunc func(doc Doc, data []byte)

// Watch watches the store directory until ctx is cancelled and calls cb for
// each document whose checksum changed since the watch started or since
// the previous call. Removed documents are logged and otherwise ignored.
func Watch(ctx context.Context, s *Store, logger *slog.Logger, cb ChangeFunc) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(s.root); err != nil {
		return err
	}

	known := make(map[string]string)
	if docs, err := s.List(); err == nil {
		for _, d := range docs {
			known[d.Path] = d.Checksum
		}
	}
	logger.Info("watcher: started", slog.String("root", s.root), slog.Int("documents", len(known)))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(DebounceInterval)
			fire = timer.C
		} else {
			timer.Reset(DebounceInterval)
		}
	}

	flush := func() {
		for path := range pending {
			delete(pending, path)
			d, err := s.stat(path)
			if err != nil {
				logger.Debug("watcher: stat failed", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			if known[path] == d.Checksum {
				continue
			}
			data, err := s.Read(d.Name)
			if err != nil {
				logger.Warn("watcher: read failed", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			// Re-hash what was read; the file may have changed since stat.
			d.Checksum = checksum.Sum(data)
			known[path] = d.Checksum
			logger.Debug("watcher: document changed", slog.String("document", d.Name), slog.String("checksum", d.Checksum))
			if cb != nil {
				cb(d, data)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !IsDocument(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[ev.Name] = struct{}{}
				schedule()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(known, ev.Name)
				delete(pending, ev.Name)
				logger.Info("watcher: document removed", slog.String("document", NameOf(ev.Name)))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
