// Package output persists the three outcome datasets produced by a run:
// matched iframe records, pages without a match, and pages that failed.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kennygrant/sanitize"

	"github.com/LordXyTh/sigma-scraper/config"
	"github.com/LordXyTh/sigma-scraper/models"
)

// Writer writes run artifacts to the configured files.
type Writer struct {
	cfg config.OutputConfig
}

// NewWriter returns a Writer for the configured output paths.
func NewWriter(cfg config.OutputConfig) *Writer {
	return &Writer{cfg: cfg}
}

// WriteMatches writes the matched records as CSV. The file is always
// produced, header-only when the run found nothing.
func (w *Writer) WriteMatches(records []models.IframeRecord) error {
	f, err := os.Create(w.cfg.MatchesFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", w.cfg.MatchesFile, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"page_url", "src_url", "iframe_html"}); err != nil {
		return fmt.Errorf("write %s: %w", w.cfg.MatchesFile, err)
	}
	for _, r := range records {
		if err := cw.Write([]string{r.PageURL, r.SrcURL, r.IframeHTML}); err != nil {
			return fmt.Errorf("write %s: %w", w.cfg.MatchesFile, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteNoMatches writes the clean-negative page URLs as CSV. Nothing is
// written when the list is empty.
func (w *Writer) WriteNoMatches(pageURLs []string) error {
	if len(pageURLs) == 0 {
		return nil
	}
	f, err := os.Create(w.cfg.NoMatchFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", w.cfg.NoMatchFile, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"page_url"}); err != nil {
		return fmt.Errorf("write %s: %w", w.cfg.NoMatchFile, err)
	}
	for _, u := range pageURLs {
		if err := cw.Write([]string{u}); err != nil {
			return fmt.Errorf("write %s: %w", w.cfg.NoMatchFile, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFailed writes the failed page URLs one per line. Nothing is written
// when the list is empty.
func (w *Writer) WriteFailed(pageURLs []string) error {
	if len(pageURLs) == 0 {
		return nil
	}
	var b strings.Builder
	for _, u := range pageURLs {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(w.cfg.FailedFile, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", w.cfg.FailedFile, err)
	}
	return nil
}

// Snapshot saves the rendered HTML of a no-match page under a
// filesystem-safe name derived from its URL. It is a no-op when no snapshot
// directory is configured.
func (w *Writer) Snapshot(pageURL, rawHTML string) error {
	if w.cfg.SnapshotDir == "" {
		return nil
	}
	if err := os.MkdirAll(w.cfg.SnapshotDir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(w.cfg.SnapshotDir, SnapshotName(pageURL))
	if err := os.WriteFile(path, []byte(rawHTML), 0o644); err != nil {
		return fmt.Errorf("write snapshot for %s: %w", pageURL, err)
	}
	return nil
}

// SnapshotName maps a page URL to a filesystem-safe .html file name.
func SnapshotName(pageURL string) string {
	name := strings.TrimPrefix(pageURL, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.Trim(name, "/")
	if name == "" {
		name = "index"
	}
	return sanitize.BaseName(name) + ".html"
}
