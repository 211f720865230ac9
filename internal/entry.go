// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/yamui/internal/api"
	"github.com/starford/yamui/internal/control"
	"github.com/starford/yamui/internal/docstore"
	"github.com/starford/yamui/internal/engine"
	"github.com/starford/yamui/internal/mcpserver"
	"github.com/starford/yamui/internal/sse"
	"github.com/starford/yamui/internal/telemetry"
	"github.com/starford/yamui/internal/trace"
	"github.com/starford/yamui/internal/uithread"
)

// instance is one wired runtime: UI loop, engine, documents and trace.
type instance struct {
	cfg     *Config
	logger  *slog.Logger
	loop    *uithread.Loop
	engine  *engine.Engine
	docs    *docstore.Store
	journal *trace.Journal
	writer  *trace.Writer
	svc     *control.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// build wires an instance. extra sinks receive engine telemetry alongside
// the log and trace sinks.
func (a *application) build(logger *slog.Logger, extra ...telemetry.Sink) (*instance, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Documents.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	docs, err := docstore.New(cfg.Documents.Dir, cfg.Documents.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("init documents: %w", err)
	}

	in := &instance{cfg: cfg, logger: logger, docs: docs}
	sinks := append([]telemetry.Sink{telemetry.LogSink(logger)}, extra...)
	if cfg.Trace.Enabled {
		in.journal, err = trace.Open(cfg.Trace.Path)
		if err != nil {
			return nil, fmt.Errorf("init trace: %w", err)
		}
		in.writer = trace.NewWriter(in.journal, cfg.Trace.Buffer, logger)
		sinks = append(sinks, in.writer)
	}

	in.loop = uithread.New(cfg.Runtime.DispatchTimeout, logger)
	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithSink(telemetry.Multi(sinks...)),
		engine.WithPoster(func(fn func()) { in.loop.Post(fn) }),
		engine.WithMaxComponentDepth(cfg.Runtime.MaxComponentDepth),
		engine.WithNavQueueMaxDepth(cfg.Runtime.NavQueueMaxDepth),
	}
	if a.backend != nil {
		engOpts = append(engOpts, engine.WithBackend(a.backend))
	}
	if a.natives != nil {
		engOpts = append(engOpts, engine.WithNatives(a.natives))
	}
	in.engine = engine.New(engOpts...)
	in.svc = control.NewService(in.engine, in.loop, docs, in.journal)
	return in, nil
}

// start runs the UI loop, the trace writer and the document watcher in g,
// then loads the default document.
func (in *instance) start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return in.loop.Run(ctx) })
	if in.writer != nil {
		g.Go(func() error { return in.writer.Run(ctx) })
	}
	if in.cfg.Documents.Watch {
		g.Go(func() error {
			return docstore.Watch(ctx, in.docs, in.logger, func(d docstore.Doc, data []byte) {
				reloaded, err := in.svc.Reload(ctx, d, data)
				if err != nil {
					in.logger.Warn("watcher: reload failed",
						slog.String("document", d.Name),
						slog.String("error", err.Error()))
					return
				}
				if reloaded {
					in.logger.Info("watcher: document reloaded", slog.String("document", d.Name))
				}
			})
		})
	}

	// A missing or broken default document leaves the runtime empty; the
	// API can still load another one.
	if _, err := in.svc.LoadDocument(ctx, in.cfg.Documents.Default); err != nil {
		in.logger.Warn("default document not loaded",
			slog.String("document", in.cfg.Documents.Default),
			slog.String("error", err.Error()))
	}
}

func (in *instance) close() {
	in.loop.Close()
	in.engine.Close()
	if in.journal != nil {
		if err := in.journal.Close(); err != nil {
			in.logger.Error("trace close failed", slog.String("error", err.Error()))
		}
	}
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("documents_dir", cfg.Documents.Dir),
		slog.String("default_document", cfg.Documents.Default),
		slog.Bool("trace_enabled", cfg.Trace.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	in, err := app.build(logger, broker)
	if err != nil {
		return err
	}
	defer in.close()

	apiRouter := api.NewRouter(in.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if in.engine.Schema() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"no document"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)
	in.start(gCtx, g)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the HTTP server is down so the loop,
// writer and watcher stop too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdio over a headless instance until
// stdin closes or ctx ends.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	in, err := app.build(logger)
	if err != nil {
		return err
	}
	defer in.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	in.start(gCtx, g)

	g.Go(func() error {
		defer cancel()
		logger.Info("MCP server starting on stdio")
		return mcpserver.New(in.svc).ServeStdio()
	})

	return g.Wait()
}
