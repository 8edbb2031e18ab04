// Package session owns the single browser-capable session handle used to
// fetch and render pages. Exactly one live session exists at a time; it is
// replaced wholesale when a fault indicates it is unusable. The package is
// mutated only by the sequential processing loop, so it holds no locks.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/LordXyTh/sigma-scraper/config"
	"github.com/LordXyTh/sigma-scraper/models"
)

// domStablePoll is the quiet window WaitDOMStable requires before it
// considers the DOM settled.
const domStablePoll = 300 * time.Millisecond

// Session is a live handle to a headless browser. It renders one page at a
// time; the caller guarantees no concurrent use.
type Session struct {
	browser    *rod.Browser
	browserCfg config.BrowserConfig
	crawlCfg   config.CrawlConfig
	gen        int
}

// Manager creates, tracks and replaces the single live Session.
type Manager struct {
	browserCfg config.BrowserConfig
	crawlCfg   config.CrawlConfig
	current    *Session
	gen        int
}

// NewManager returns a manager with no live session yet; call Create before
// the first render.
func NewManager(browserCfg config.BrowserConfig, crawlCfg config.CrawlConfig) *Manager {
	return &Manager{browserCfg: browserCfg, crawlCfg: crawlCfg}
}

// Current returns the live session, or nil if none has been created.
func (m *Manager) Current() *Session {
	return m.current
}

// Create launches a fresh browser session, closing any previous handle
// first. Close failures on the old handle are logged and ignored; they never
// block recreation.
func (m *Manager) Create() (*Session, error) {
	if m.current != nil {
		m.current.close()
		m.current = nil
	}

	browser, err := launch(m.browserCfg)
	if err != nil {
		return nil, err
	}

	m.gen++
	m.current = &Session{
		browser:    browser,
		browserCfg: m.browserCfg,
		crawlCfg:   m.crawlCfg,
		gen:        m.gen,
	}
	slog.Info("browser session created", "generation", m.gen)
	return m.current, nil
}

// Close releases the live session, if any. Call this on loop exit to prevent
// zombie Chrome processes.
func (m *Manager) Close() {
	if m.current != nil {
		m.current.close()
		m.current = nil
	}
}

// launch starts a headless browser and connects to it.
func launch(cfg config.BrowserConfig) (*rod.Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserLaunch,
			"failed to launch browser",
			err,
		)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserLaunch,
			"failed to connect to browser",
			err,
		)
	}
	return browser, nil
}

// close kills the browser process, best-effort.
func (s *Session) close() {
	if err := s.browser.Close(); err != nil {
		slog.Warn("closing browser session", "generation", s.gen, "error", err)
	}
}

// Generation identifies this handle; it increases with every recreation.
func (s *Session) Generation() int {
	return s.gen
}

// Render fetches url in a fresh tab, waits for JavaScript-driven DOM
// mutations to settle within the render timeout, and returns the rendered
// HTML. All failures are categorized into typed crawl errors so callers can
// branch on kind rather than on message text.
//
// Lifecycle:
//
//	1. Timeout guard    – hard deadline on the whole pass
//	2. Open tab         – failure here means the session itself is dead
//	3. DEFER: close tab – leak prevention
//	4. Stealth + headers – must be installed before navigation
//	5. Hijack mount     – block images/CSS/fonts/media (before navigation!)
//	6. Navigate + wait  – DOM-stable wait, then a fixed settle delay
//	7. Extract          – page.HTML()
func (s *Session) Render(ctx context.Context, pageURL string) (string, error) {
	// ── 1. Timeout guard ────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, s.crawlCfg.RenderTimeout)
	defer cancel()

	// ── 2. Open a fresh tab ─────────────────────────────────────────
	// A session that cannot even open a tab is unusable; report it as
	// invalid so the processor recreates it.
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", models.NewCrawlError(
			models.ErrCodeSessionInvalid,
			"failed to open page in browser session",
			err,
		)
	}

	// ── 3. Close the tab when done ──────────────────────────────────
	// Uses the original page reference so cleanup succeeds even after
	// the request context has expired.
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Debug("closing page", "error", closeErr)
		}
	}()

	// ── 4. Stealth + request headers ────────────────────────────────
	if s.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}
	if u, parseErr := url.Parse(pageURL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(page)
	}

	// ── 5. Mount hijack router ──────────────────────────────────────
	router := setupHijack(page, s.browserCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 6. Navigate and wait ────────────────────────────────────────
	p := page.Context(ctx)
	if navErr := p.Navigate(pageURL); navErr != nil {
		return "", s.categorize(navErr, "navigation to target URL failed")
	}

	if stableErr := p.WaitDOMStable(domStablePoll, 0.1); stableErr != nil {
		if isDeadline(stableErr) {
			return "", s.categorize(stableErr, "page did not stabilize within render timeout")
		}
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", pageURL, "error", stableErr,
		)
	}

	// Settle delay: give async DOM mutations a chance to land before
	// extraction.
	if s.crawlCfg.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return "", s.categorize(ctx.Err(), "render timed out during settle delay")
		case <-time.After(s.crawlCfg.SettleDelay):
		}
	}

	// ── 7. Extract rendered HTML ────────────────────────────────────
	html, htmlErr := p.HTML()
	if htmlErr != nil {
		return "", s.categorize(htmlErr, "failed to extract page HTML")
	}
	return html, nil
}

// categorize wraps a raw render failure into a typed crawl error. Deadline
// errors become render timeouts; anything else is checked against a browser
// liveness probe so a dead session is reported as invalid rather than as an
// ordinary transport failure.
func (s *Session) categorize(err error, msg string) *models.CrawlError {
	if isDeadline(err) {
		return models.NewCrawlError(models.ErrCodeRenderTimeout, msg, err)
	}
	if _, probeErr := s.browser.Version(); probeErr != nil {
		return models.NewCrawlError(
			models.ErrCodeSessionInvalid,
			"browser session no longer responding",
			err,
		)
	}
	return models.NewCrawlError(models.ErrCodeTransport, msg, err)
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
