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

	"github.com/starford/inkwell/internal/ai"
	"github.com/starford/inkwell/internal/api"
	"github.com/starford/inkwell/internal/chat"
	"github.com/starford/inkwell/internal/mcpserver"
	"github.com/starford/inkwell/internal/notes"
	"github.com/starford/inkwell/internal/selection"
	"github.com/starford/inkwell/internal/settings"
	"github.com/starford/inkwell/internal/sse"
	"github.com/starford/inkwell/internal/storage"
	"github.com/starford/inkwell/internal/transform"
	"github.com/starford/inkwell/internal/trash"
	"github.com/starford/inkwell/internal/watch"
)

// EventTransformChanged is published for every transform workflow step.
const EventTransformChanged = "transform.changed"

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errors.New("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// core is the state shared by the HTTP server and the MCP server.
type core struct {
	bin   *trash.Bin
	store *storage.FS
	notes *notes.Controller
}

func openCore(ctx context.Context, cfg *Config, logger *slog.Logger) (*core, error) {
	record, err := settings.Open(cfg.Storage.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("init settings: %w", err)
	}

	bin, err := trash.Open(cfg.Trash.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("init trash: %w", err)
	}

	store, err := storage.NewFS(record, bin, cfg.Storage.DefaultNotesDir, logger)
	if err != nil {
		bin.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	controller := notes.New(store, notes.WithLogger(logger))
	if err := controller.Refresh(ctx); err != nil {
		logger.Warn("initial load failed", slog.String("error", err.Error()))
	}

	return &core{bin: bin, store: store, notes: controller}, nil
}

func (c *core) Close() error {
	return c.bin.Close()
}

// server is everything Run serves over HTTP.
type server struct {
	handler    http.Handler
	broker     *sse.Broker
	watcher    *watch.Watcher
	transforms *transform.Manager
	tracker    *selection.Tracker
}

func newServer(c *core, cfg *Config, logger *slog.Logger) *server {
	aiSettings := cfg.AI.Settings()
	creds := ai.OpenCredentials(cfg.AI.CredentialsDir, ai.TrialValidator(aiSettings, logger))
	gate := ai.NewGate(creds, aiSettings, logger)

	transforms := transform.NewManager(gate, c.notes, logger)
	panel := chat.NewPanel(gate, c.notes)
	broker := sse.NewBroker(2 * time.Second)
	watcher := watch.New(c.store, c.notes, watch.WithLogger(logger))
	tracker := &selection.Tracker{}

	c.notes.OnChange(func(ev notes.Event) {
		switch ev.Kind {
		case notes.EventNoteCreated, notes.EventNoteUpdated, notes.EventNoteDeleted:
			broker.PublishNote(string(ev.Kind), ev.NoteID)
			return
		case notes.EventSelection:
			tracker.Reset()
		case notes.EventStorageRootMove:
			tracker.Reset()
			watcher.Retarget()
			transforms.CancelAll()
		}
		broker.Publish(sse.Event{Type: string(ev.Kind), Data: ev})
	})
	transforms.OnChange(func(st transform.State) {
		broker.Publish(sse.Event{Type: EventTransformChanged, Data: st})
	})

	apiRouter := api.NewRouter(api.Deps{
		Notes:      c.notes,
		Selection:  tracker,
		Transforms: transforms,
		Chat:       panel,
		Credential: gate,
		Events:     broker,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := os.Stat(c.notes.StorageRoot()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	r.Mount("/api/v1", apiRouter)

	return &server{handler: r, broker: broker, watcher: watcher, transforms: transforms, tracker: tracker}
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, msg)
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.String("default_notes_dir", cfg.Storage.DefaultNotesDir),
		slog.String("trash_ledger", cfg.Trash.LedgerPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := openCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	srv := newServer(c, cfg, logger)
	defer srv.broker.Close()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: srv.handler,
	}

	logger.Info("Server starting...",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_root", c.notes.StorageRoot()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Watch the storage root for edits made outside the application.
	g.Go(func() error {
		return srv.watcher.Run(gCtx)
	})

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
		srv.transforms.CancelAll()
		srv.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the notes over MCP on stdin/stdout. Logs go to stderr
// unless WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()
	slog.SetDefault(logger)

	c, err := openCore(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("MCP server starting", slog.String("storage_root", c.notes.StorageRoot()))
	return mcpserver.New(c.notes, app.version).ServeStdio()
}
