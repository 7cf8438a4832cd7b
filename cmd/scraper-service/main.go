package main

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

	"github.com/bcajales/scraper-service/api"
	"github.com/bcajales/scraper-service/config"
	"github.com/bcajales/scraper-service/extractor"
	"github.com/bcajales/scraper-service/pipeline"
	"github.com/bcajales/scraper-service/renderer"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("scraper-service starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Admission.MaxSessions,
		"platform", cfg.Platform.BaseURL,
	)

	// ── 3. Renderer (no browser runs until a request arrives) ───────
	rd := renderer.New(cfg.Browser, cfg.Render)

	// The closure adapts *renderer.Session to the pipeline's interface so
	// pipeline/ never imports rod.
	opener := pipeline.OpenerFunc(func(ctx context.Context) (pipeline.Session, error) {
		s, err := rd.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	// ── 4. Pipeline ─────────────────────────────────────────────────
	p := pipeline.New(opener, extractor.New(cfg.Platform.BaseURL), cfg.Admission.MaxSessions)

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(cfg, p, rd.Active, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("server ready", "addr", addr, "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// In-flight requests own their browsers; draining them closes every
	// session through the pipeline's deferred Close.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err, "activeSessions", rd.Active())
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("scraper-service stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
