// Package processor implements the per-URL fetch-render-extract-classify
// loop: bounded retries for transport and render errors, session recovery on
// detected session faults, and noscript-aware iframe extraction.
package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/LordXyTh/sigma-scraper/config"
	"github.com/LordXyTh/sigma-scraper/models"
)

// Renderer fetches a URL and returns its JavaScript-rendered HTML.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// SessionManager hands out the single live render session and replaces it
// on request. Create closes the old handle best-effort before launching a
// new one.
type SessionManager interface {
	Current() Renderer
	Create() (Renderer, error)
}

// Processor turns one page URL into exactly one PageResult.
type Processor struct {
	sessions SessionManager
	cfg      config.CrawlConfig
}

// New returns a Processor backed by the given session manager.
func New(sessions SessionManager, cfg config.CrawlConfig) *Processor {
	return &Processor{sessions: sessions, cfg: cfg}
}

// Process runs sequential attempts 1..MaxRetries against pageURL and always
// returns one of the three outcome variants; no error escapes.
//
// A successful render is terminal on the first clean observation: a page
// with qualifying iframes returns Matched without consuming further budget,
// and a page without any returns NoMatch without being retried. Only
// transport and render errors consume attempts. A session-invalid fault
// additionally recreates the session and waits an extra recovery delay
// before the next attempt.
func (p *Processor) Process(ctx context.Context, pageURL string) models.PageResult {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		attempts = attempt

		sess, err := p.session()
		if err == nil {
			var html string
			html, err = sess.Render(ctx, pageURL)
			if err == nil {
				var records []models.IframeRecord
				records, err = ExtractIframes(html, pageURL, p.cfg.MatchSubstring)
				if err == nil {
					if len(records) > 0 {
						slog.Info("extracted qualifying iframes",
							"url", pageURL,
							"count", len(records),
							"attempt", attempt,
						)
						return models.PageResult{
							PageURL:  pageURL,
							Outcome:  models.OutcomeMatched,
							Records:  records,
							Attempts: attempt,
						}
					}
					slog.Info("no qualifying iframe found", "url", pageURL)
					return models.PageResult{
						PageURL:  pageURL,
						Outcome:  models.OutcomeNoMatch,
						RawHTML:  html,
						Attempts: attempt,
					}
				}
			}
		}

		lastErr = err
		slog.Warn("attempt failed",
			"url", pageURL,
			"attempt", attempt,
			"maxRetries", p.cfg.MaxRetries,
			"error", err,
		)

		if models.IsSessionInvalid(err) {
			if _, createErr := p.sessions.Create(); createErr != nil {
				slog.Error("session recreation failed", "error", createErr)
				lastErr = createErr
			}
			// Extra delay so sustained failure does not turn into a
			// re-creation storm.
			if !sleep(ctx, p.cfg.RecoveryDelay) {
				break
			}
		}

		if attempt < p.cfg.MaxRetries {
			if !sleep(ctx, p.cfg.RetryBackoff) {
				break
			}
		}
	}

	slog.Error("giving up on page",
		"url", pageURL,
		"attempts", attempts,
		"error", lastErr,
	)
	return models.PageResult{
		PageURL:  pageURL,
		Outcome:  models.OutcomeFailed,
		Attempts: attempts,
		Err:      lastErr,
	}
}

// session returns the live render session, creating one lazily when none
// exists yet.
func (p *Processor) session() (Renderer, error) {
	if sess := p.sessions.Current(); sess != nil {
		return sess, nil
	}
	return p.sessions.Create()
}

// sleep waits for d or until ctx is done; it reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
