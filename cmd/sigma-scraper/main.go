package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/LordXyTh/sigma-scraper/config"
	"github.com/LordXyTh/sigma-scraper/harvest"
	"github.com/LordXyTh/sigma-scraper/output"
	"github.com/LordXyTh/sigma-scraper/processor"
	"github.com/LordXyTh/sigma-scraper/session"
	"github.com/LordXyTh/sigma-scraper/sitemap"
)

// sessionSource adapts the concrete session manager to the processor's
// interfaces. The adapter lives here so processor/ never imports session/.
type sessionSource struct {
	mgr *session.Manager
}

func (s sessionSource) Current() processor.Renderer {
	if sess := s.mgr.Current(); sess != nil {
		return sess
	}
	return nil
}

func (s sessionSource) Create() (processor.Renderer, error) {
	sess, err := s.mgr.Create()
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	_ = godotenv.Load()
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("sigma-scraper starting",
		"sitemap", cfg.Sitemap.URL,
		"match", cfg.Crawl.MatchSubstring,
		"maxRetries", cfg.Crawl.MaxRetries,
	)

	// ── 3. Signal-aware run context ─────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 4. Fetch sitemap URLs ───────────────────────────────────────
	// A sitemap failure is fatal to the input stage only: the run
	// degrades to an empty URL set and still produces (empty) artifacts.
	urls, err := sitemap.NewFetcher(cfg.Sitemap).URLs(ctx)
	if err != nil {
		slog.Error("sitemap fetch failed, continuing with empty URL set", "error", err)
		urls = nil
	}
	slog.Info("sitemap loaded", "urls", len(urls))

	// ── 5. Initialise browser session ───────────────────────────────
	mgr := session.NewManager(cfg.Browser, cfg.Crawl)
	defer mgr.Close()
	if len(urls) > 0 {
		if _, err := mgr.Create(); err != nil {
			slog.Error("failed to create browser session", "error", err)
			os.Exit(1)
		}
	}

	// ── 6. Wire processor, writer and harvester ─────────────────────
	proc := processor.New(sessionSource{mgr: mgr}, cfg.Crawl)
	writer := output.NewWriter(cfg.Output)

	h := harvest.New(proc, cfg.Crawl.RequestDelay)
	h.SetProgressOutput(os.Stderr)
	if cfg.Output.SnapshotDir != "" {
		h.SetSnapshotter(writer)
	}

	// ── 7. Run the crawl ────────────────────────────────────────────
	report := h.Run(ctx, urls)

	// ── 8. Persist results ──────────────────────────────────────────
	if err := writer.WriteMatches(report.Matches); err != nil {
		slog.Error("writing matches", "error", err)
	}
	if err := writer.WriteNoMatches(report.NoMatch); err != nil {
		slog.Error("writing no-match list", "error", err)
	}
	if err := writer.WriteFailed(report.Failed); err != nil {
		slog.Error("writing failed list", "error", err)
	}

	slog.Info("processing complete",
		"iframes", len(report.Matches),
		"noMatch", len(report.NoMatch),
		"failed", len(report.Failed),
	)
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
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
