package docstore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/checksum"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, dir
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWriteAndRead(t *testing.T) {
	s, dir := tempStore(t)
	content := []byte("screens:\n  home: {}\n")
	d, err := s.Write("main", content)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if d.Path != filepath.Join(dir, "main.yaml") || d.Checksum != checksum.Sum(content) {
		t.Errorf("doc = %+v", d)
	}
	got, err := s.Read("MAIN")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content = %q", got)
	}
}

func TestWriteKeepsExistingExtension(t *testing.T) {
	s, dir := tempStore(t)
	if err := os.WriteFile(filepath.Join(dir, "Panel.yml"), []byte("a: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := s.Write("panel.yml", []byte("a: 2\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(d.Path) != "Panel.yml" {
		t.Errorf("path = %s", d.Path)
	}
	docs, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("docs = %+v", docs)
	}
}

func TestWriteIf(t *testing.T) {
	s, _ := tempStore(t)
	v1 := []byte("a: 1\n")
	if _, err := s.WriteIf("doc", v1, "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("missing doc with If-Match: err = %v, want ErrConflict", err)
	}
	if _, err := s.WriteIf("doc", v1, ""); err != nil {
		t.Fatalf("unconditional WriteIf: %v", err)
	}
	if _, err := s.WriteIf("doc", []byte("a: 2\n"), "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale checksum: err = %v, want ErrConflict", err)
	}
	if _, err := s.WriteIf("doc", []byte("a: 2\n"), checksum.Sum(v1)); err != nil {
		t.Fatalf("matching checksum: %v", err)
	}
}

func TestWriteIfConcurrentWritersOneWins(t *testing.T) {
	s, _ := tempStore(t)
	base := []byte("a: 0\n")
	if _, err := s.Write("doc", base); err != nil {
		t.Fatal(err)
	}
	sum := checksum.Sum(base)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.WriteIf("doc", []byte{'a', ':', ' ', byte('1' + i), '\n'}, sum)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case !errors.Is(err, apperr.ErrConflict):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("%d writers succeeded, want 1", won)
	}
}

func TestList(t *testing.T) {
	s, dir := tempStore(t)
	for name, body := range map[string]string{"b.yaml": "x: 1\n", "a.yml": "y: 2\n", "notes.txt": "skip"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	docs, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, d := range docs {
		names = append(names, d.Name)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestErrors(t *testing.T) {
	s, _ := tempStore(t)
	if _, err := s.Read("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	for _, bad := range []string{"../escape", "a/b", "", ".hidden"} {
		if _, err := s.Write(bad, []byte("x")); !errors.Is(err, apperr.ErrInvalidShape) {
			t.Errorf("Write(%q) err = %v", bad, err)
		}
	}
	if _, err := s.Write("big", make([]byte, 65)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized err = %v", err)
	}
	if err := s.Delete("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete err = %v", err)
	}
}

func TestWatchReportsChangedContent(t *testing.T) {
	s, dir := tempStore(t)
	path := filepath.Join(dir, "main.yaml")
	if err := os.WriteFile(path, []byte("v: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	go Watch(ctx, s, logger, func(d Doc, data []byte) {
		mu.Lock()
		got = append(got, d.Name+":"+string(data))
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	// Same bytes: no callback.
	_ = os.WriteFile(path, []byte("v: 1\n"), 0o644)
	_ = os.WriteFile(path, []byte("v: 2\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, "change not reported")

	time.Sleep(2 * DebounceInterval)
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"main:v: 2\n"}, got); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
}
