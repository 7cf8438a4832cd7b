// Package renderer drives headless Chromium to produce fully rendered markup.
//
// Every Session owns its own browser process. Nothing is pooled or shared
// between sessions, so a Session must be closed by whoever opened it.
package renderer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/bcajales/scraper-service/config"
	"github.com/bcajales/scraper-service/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// Renderer launches browser sessions. It is safe for concurrent use.
type Renderer struct {
	browserCfg config.BrowserConfig
	renderCfg  config.RenderConfig
	blockRules blockRules
	active     atomic.Int32
}

// New creates a Renderer. No browser is started until Open is called.
func New(browserCfg config.BrowserConfig, renderCfg config.RenderConfig) *Renderer {
	return &Renderer{
		browserCfg: browserCfg,
		renderCfg:  renderCfg,
		blockRules: newBlockRules(browserCfg.BlockedResources, browserCfg.BlockTrackers),
	}
}

// Active returns the number of sessions opened and not yet closed.
func (r *Renderer) Active() int {
	return int(r.active.Load())
}

// Open launches a dedicated browser process and prepares one page on it.
//
// Steps (numbered to match the inline comments):
//
//  1. Launcher         – headless, sandbox relaxed, bound to ctx
//  2. Connect          – CDP connection to the new process
//  3. Page             – one tab reused for every navigation of the session
//  4. Identity         – user agent and extra headers (before any navigation!)
//  5. Stealth          – optional evasions (before any navigation!)
//  6. Blocking         – optional resource / tracker interception
//
// On any failure the process is torn down before returning.
func (r *Renderer) Open(ctx context.Context) (*Session, error) {
	// ── 1. Launcher ─────────────────────────────────────────────────
	l := launcher.New().
		Context(ctx).
		Headless(r.browserCfg.Headless)

	if r.browserCfg.NoSandbox {
		l = l.NoSandbox(true)
		l.Set(flags.Flag("disable-setuid-sandbox"))
	}
	if r.browserCfg.BrowserBin != "" {
		l = l.Bin(r.browserCfg.BrowserBin)
	}
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Debug("browser launched", "controlURL", controlURL, "pid", l.PID())

	s := &Session{
		launcher: l,
		render:   r.renderCfg,
		pid:      l.PID(),
	}

	// ── 2. Connect ──────────────────────────────────────────────────
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		s.teardown()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}
	s.browser = browser

	// ── 3. Page ─────────────────────────────────────────────────────
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.teardown()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to create page",
			err,
		)
	}
	s.page = page

	// ── 4. Identity ─────────────────────────────────────────────────
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: r.browserCfg.UserAgent,
	}); err != nil {
		s.teardown()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to set user agent",
			err,
		)
	}
	if r.browserCfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Accept-Language": r.browserCfg.AcceptLanguage,
			}),
		}.Call(page)
	}

	// ── 5. Stealth ──────────────────────────────────────────────────
	if r.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── 6. Blocking ─────────────────────────────────────────────────
	s.hijack = setupBlocking(page, r.blockRules)

	r.active.Add(1)
	s.onClose = func() { r.active.Add(-1) }
	return s, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
