// Package harvest drives the crawl: it feeds sitemap URLs one at a time to
// the page processor and accumulates outcomes into three ordered buckets.
// Processing is strictly sequential; the single session is never shared
// between in-flight operations, so no locking is needed anywhere.
package harvest

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"golang.org/x/time/rate"

	"github.com/LordXyTh/sigma-scraper/models"
)

// Processor converts one page URL into exactly one PageResult.
type Processor interface {
	Process(ctx context.Context, pageURL string) models.PageResult
}

// Snapshotter persists the rendered HTML of a no-match page for review.
type Snapshotter interface {
	Snapshot(pageURL, rawHTML string) error
}

// Report holds the three outcome buckets. Within each bucket, entries keep
// the relative order of the input URL list.
type Report struct {
	Matches []models.IframeRecord
	NoMatch []string
	Failed  []string
}

// Harvester runs the sequential crawl loop.
type Harvester struct {
	proc        Processor
	limiter     *rate.Limiter
	snapshots   Snapshotter
	progressOut io.Writer
}

// New returns a Harvester that paces page requests by requestDelay.
func New(proc Processor, requestDelay time.Duration) *Harvester {
	h := &Harvester{proc: proc}
	if requestDelay > 0 {
		h.limiter = rate.NewLimiter(rate.Every(requestDelay), 1)
	}
	return h
}

// SetSnapshotter enables raw-page snapshots for no-match pages.
func (h *Harvester) SetSnapshotter(s Snapshotter) {
	h.snapshots = s
}

// SetProgressOutput enables live progress rendering to out.
func (h *Harvester) SetProgressOutput(out io.Writer) {
	h.progressOut = out
}

// Run processes urls in order and returns the filled report. Per-URL
// failures are contained by the processor; the only way Run stops early is
// context cancellation, checked between URLs.
func (h *Harvester) Run(ctx context.Context, urls []string) *Report {
	report := &Report{}

	var (
		pw      progress.Writer
		tracker *progress.Tracker
	)
	if h.progressOut != nil && len(urls) > 0 {
		pw = progress.NewWriter()
		pw.SetOutputWriter(h.progressOut)
		pw.SetUpdateFrequency(250 * time.Millisecond)
		tracker = &progress.Tracker{
			Message: "scraping pages",
			Total:   int64(len(urls)),
			Units:   progress.UnitsDefault,
		}
		pw.AppendTracker(tracker)
		go pw.Render()
	}

	for _, pageURL := range urls {
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				slog.Warn("crawl interrupted", "error", err)
				break
			}
		} else if ctx.Err() != nil {
			slog.Warn("crawl interrupted", "error", ctx.Err())
			break
		}

		res := h.proc.Process(ctx, pageURL)
		switch res.Outcome {
		case models.OutcomeMatched:
			report.Matches = append(report.Matches, res.Records...)
		case models.OutcomeNoMatch:
			report.NoMatch = append(report.NoMatch, res.PageURL)
			if h.snapshots != nil {
				if err := h.snapshots.Snapshot(res.PageURL, res.RawHTML); err != nil {
					slog.Warn("snapshot failed", "url", res.PageURL, "error", err)
				}
			}
		case models.OutcomeFailed:
			report.Failed = append(report.Failed, res.PageURL)
		}

		if tracker != nil {
			tracker.Increment(1)
		}
	}

	if pw != nil {
		tracker.MarkAsDone()
		pw.Stop()
		for pw.IsRenderInProgress() {
			time.Sleep(10 * time.Millisecond)
		}
	}

	return report
}
