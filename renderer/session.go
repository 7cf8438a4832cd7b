package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bcajales/scraper-service/config"
	"github.com/bcajales/scraper-service/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Session is one browser process with a single page. Navigations on a
// Session are sequential; it is not safe for concurrent Render calls.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	hijack   *rod.HijackRouter
	render   config.RenderConfig
	pid      int

	onClose   func()
	closeOnce sync.Once
	closeErr  error
}

// PID returns the process id of the browser owned by this session.
func (s *Session) PID() int {
	return s.pid
}

// Render navigates to pageURL, waits for the network to go idle and returns
// the serialized DOM.
//
// Lifecycle:
//
//  1. Hard ceiling      – NavigationTimeout bounds steps 2-6
//  2. Idle listener     – MUST be registered before Navigate to capture all requests
//  3. Navigate          – fails fast on DNS / connection errors
//  4. Load event        – document and its synchronous resources are done
//  5. Network idle      – ≤ IdleMaxInflight open requests for IdleWindow
//  6. Extract           – page.HTML()
func (s *Session) Render(ctx context.Context, pageURL string) (string, error) {
	// ── 1. Hard ceiling ───────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, s.render.NavigationTimeout)
	defer cancel()

	p := s.page.Context(ctx)

	// ── 2. Idle listener ──────────────────────────────────────────────
	// The event loop ends when ctx is cancelled by the deferred cancel.
	tracker := newIdleTracker(s.render.IdleMaxInflight, s.render.IdleWindow)
	listen := p.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) { tracker.started(string(e.RequestID)) },
		func(e *proto.NetworkLoadingFinished) { tracker.finished(string(e.RequestID)) },
		func(e *proto.NetworkLoadingFailed) { tracker.finished(string(e.RequestID)) },
	)
	go listen()

	// ── 3. Navigate ───────────────────────────────────────────────────
	if err := p.Navigate(pageURL); err != nil {
		return "", categorizeError(err, "navigation to target URL failed")
	}

	// ── 4. Load event ─────────────────────────────────────────────────
	if err := p.WaitLoad(); err != nil {
		return "", categorizeError(err, "page did not finish loading")
	}

	// ── 5. Network idle ───────────────────────────────────────────────
	tracker.arm()
	if err := tracker.wait(ctx); err != nil {
		return "", categorizeError(err, "network did not go idle")
	}

	// ── 6. Extract rendered HTML ──────────────────────────────────────
	markup, err := p.HTML()
	if err != nil {
		return "", categorizeError(err, "failed to extract page HTML")
	}
	return markup, nil
}

// Close terminates the browser process and removes its profile directory.
// It is safe to call more than once; only the first call does work.
// The returned error is informational: the process is killed regardless.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.teardown()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}

func (s *Session) teardown() error {
	var errs []error
	if s.hijack != nil {
		if err := s.hijack.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop request interception: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
	slog.Debug("browser terminated", "pid", s.pid)
	return errors.Join(errs...)
}

// categorizeError wraps raw errors into typed ScrapeErrors so the pipeline
// can recognise render failures.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
