package internal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/yamui/internal/render"
	"github.com/starford/yamui/internal/testutil"
)

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Fatal(msg)
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Documents.Dir = t.TempDir()
	cfg.Documents.Default = "counter"
	cfg.Trace.Enabled = true
	cfg.Trace.Path = filepath.Join(t.TempDir(), "trace.db")
	return cfg
}

func startInstance(t *testing.T, cfg *Config) (*instance, *render.Memory) {
	t.Helper()
	mem := render.NewMemory()
	app, err := newApplication([]Option{WithConfig(cfg), WithBackend(mem), WithLogOutput(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}
	in, err := app.build(app.newLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gCtx := errgroup.WithContext(ctx)
	in.start(gCtx, g)
	t.Cleanup(func() {
		cancel()
		if err := g.Wait(); err != nil {
			t.Errorf("group: %v", err)
		}
		in.close()
	})
	return in, mem
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestInstanceLoadsDefaultDocument(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteDoc(t, cfg.Documents.Dir, "counter.yaml", testutil.CounterDoc)
	in, _ := startInstance(t, cfg)

	info, err := in.svc.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Document != "counter" || info.Screen != "home" {
		t.Errorf("info = %+v", info)
	}

	ctx := context.Background()
	if _, err := in.svc.SetState(ctx, "count", "4"); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		n, err := in.journal.Count()
		return err == nil && n > 0
	}, "trace journal never received events")
}

func TestInstanceWithoutDefaultDocument(t *testing.T) {
	cfg := testConfig(t)
	cfg.Documents.Watch = false
	in, _ := startInstance(t, cfg)
	if in.engine.Schema() != nil {
		t.Error("no document should be loaded")
	}
}

func TestInstanceHotReload(t *testing.T) {
	cfg := testConfig(t)
	path := testutil.WriteDoc(t, cfg.Documents.Dir, "counter.yaml", testutil.CounterDoc)
	in, mem := startInstance(t, cfg)

	// Let the watcher register before touching the file.
	time.Sleep(100 * time.Millisecond)
	updated := strings.Replace(testutil.CounterDoc, `"Count: {{count}}"`, `"Reloaded {{count}}"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, 25*time.Millisecond, func() bool {
		var found bool
		_ = in.loop.Do(context.Background(), func() {
			tree := mem.Tree(mem.Root())
			found = tree.Find(func(n *render.TreeNode) bool { return n.Text == "Reloaded 0" }) != nil
		})
		return found
	}, "document was not hot reloaded")
}
