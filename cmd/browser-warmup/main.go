// Command browser-warmup makes sure a Chromium build is available before the
// service takes traffic. It downloads the browser when none is configured or
// found, then runs one launch and close cycle with the service's settings.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/bcajales/scraper-service/config"
	"github.com/bcajales/scraper-service/renderer"
	"github.com/go-rod/rod/lib/launcher"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if cfg.Browser.BrowserBin == "" {
		if bin, found := launcher.LookPath(); found {
			cfg.Browser.BrowserBin = bin
		} else {
			slog.Info("no local browser found, downloading")
			bin, err := launcher.NewBrowser().Get()
			if err != nil {
				slog.Error("browser download failed", "error", err)
				os.Exit(1)
			}
			cfg.Browser.BrowserBin = bin
		}
	}
	slog.Info("using browser", "bin", cfg.Browser.BrowserBin)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s, err := renderer.New(cfg.Browser, cfg.Render).Open(ctx)
	if err != nil {
		slog.Error("browser launch failed", "error", err)
		os.Exit(1)
	}
	if err := s.Close(); err != nil {
		slog.Warn("browser close reported an error", "error", err)
	}
	slog.Info("browser warmup complete")
}
