// Package pipeline runs the two-stage attachment scrape for one bid page.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/bcajales/scraper-service/extractor"
	"github.com/bcajales/scraper-service/models"
	"golang.org/x/sync/semaphore"
)

// Session renders pages inside one browser process.
type Session interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// Opener starts a new Session.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Session, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }

// Pipeline wires a session opener to the extractor. It is safe for
// concurrent use; every Scrape call gets its own session and Seen set.
type Pipeline struct {
	opener      Opener
	extractor   *extractor.Extractor
	sem         *semaphore.Weighted
	maxSessions int
}

// New creates a Pipeline. maxSessions <= 0 means no admission limit.
func New(opener Opener, ext *extractor.Extractor, maxSessions int) *Pipeline {
	p := &Pipeline{
		opener:    opener,
		extractor: ext,
	}
	if maxSessions > 0 {
		p.sem = semaphore.NewWeighted(int64(maxSessions))
		p.maxSessions = maxSessions
	}
	return p
}

// MaxSessions returns the admission limit, 0 when unlimited.
func (p *Pipeline) MaxSessions() int {
	return p.maxSessions
}

// Scrape returns every attachment listed for the bid at pageURL: the
// embedded grid first, then new entries from the dedicated attachments page.
//
// A render failure is logged and reported as an empty result, not an
// error. Errors are returned only for failures outside rendering.
func (p *Pipeline) Scrape(ctx context.Context, pageURL string) ([]models.Attachment, error) {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeBusy, "no browser session available", err)
		}
		defer p.sem.Release(1)
	}

	records, err := p.run(ctx, pageURL)
	if err != nil {
		if models.IsRenderFailure(err) {
			slog.Error("render failed, returning no attachments", "url", pageURL, "error", err)
			return []models.Attachment{}, nil
		}
		return nil, err
	}
	slog.Info("attachments found", "url", pageURL, "total", len(records))
	return records, nil
}

// run executes the sequential stages. The session is closed on every path.
func (p *Pipeline) run(ctx context.Context, pageURL string) ([]models.Attachment, error) {
	session, err := p.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			slog.Warn("failed to release browser session", "url", pageURL, "error", closeErr)
		}
	}()

	seen := extractor.NewSeen()

	slog.Info("navigating", "url", pageURL)
	markup, err := session.Render(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	records, secondaryURL, err := p.extractor.Primary(markup, pageURL, seen)
	if err != nil {
		return nil, err
	}
	if secondaryURL == "" {
		return records, nil
	}

	slog.Info("navigating to dedicated attachments page", "url", secondaryURL)
	markup, err = session.Render(ctx, secondaryURL)
	if err != nil {
		return nil, err
	}
	more, err := p.extractor.Secondary(markup, secondaryURL, seen)
	if err != nil {
		return nil, err
	}
	return append(records, more...), nil
}
