package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LordXyTh/sigma-scraper/config"
	"github.com/LordXyTh/sigma-scraper/models"
)

const matchedHTML = `<html><body><iframe src="https://contact.sigma-rh.com/form"></iframe></body></html>`
const emptyHTML = `<html><body><p>nothing here</p></body></html>`

// renderCall records which session handled which attempt.
type renderCall struct {
	sessionID int
	url       string
}

// fakeSession replays scripted render outcomes, sharing the attempt counter
// with its sibling sessions so a script spans session recreations.
type fakeSession struct {
	id     int
	script *renderScript
}

type renderScript struct {
	outcomes []renderOutcome
	calls    []renderCall
}

type renderOutcome struct {
	html string
	err  error
}

func (s *fakeSession) Render(_ context.Context, url string) (string, error) {
	call := len(s.script.calls)
	s.script.calls = append(s.script.calls, renderCall{sessionID: s.id, url: url})
	if call >= len(s.script.outcomes) {
		return "", errors.New("render script exhausted")
	}
	out := s.script.outcomes[call]
	return out.html, out.err
}

// fakeManager hands out numbered fake sessions; every Create produces a new
// handle, like the real manager replacing a dead browser.
type fakeManager struct {
	script    *renderScript
	current   *fakeSession
	created   int
	createErr error
}

func (m *fakeManager) Current() Renderer {
	if m.current == nil {
		return nil
	}
	return m.current
}

func (m *fakeManager) Create() (Renderer, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created++
	m.current = &fakeSession{id: m.created, script: m.script}
	return m.current, nil
}

func testConfig() config.CrawlConfig {
	return config.CrawlConfig{
		MatchSubstring: "contact.sigma-rh.com",
		MaxRetries:     3,
		RetryBackoff:   time.Millisecond,
		RecoveryDelay:  time.Millisecond,
	}
}

func transportErr() error {
	return models.NewCrawlError(models.ErrCodeTransport, "navigation to target URL failed", errors.New("connection refused"))
}

func sessionInvalidErr() error {
	return models.NewCrawlError(models.ErrCodeSessionInvalid, "browser session no longer responding", errors.New("websocket gone"))
}

func TestProcess_MatchedOnFirstAttempt(t *testing.T) {
	script := &renderScript{outcomes: []renderOutcome{{html: matchedHTML}}}
	mgr := &fakeManager{script: script}

	res := New(mgr, testConfig()).Process(context.Background(), "https://example.com/a")

	if res.Outcome != models.OutcomeMatched {
		t.Fatalf("expected matched, got %s", res.Outcome)
	}
	if len(script.calls) != 1 {
		t.Errorf("success must be terminal: expected 1 attempt, got %d", len(script.calls))
	}
	if res.Attempts != 1 {
		t.Errorf("expected Attempts=1, got %d", res.Attempts)
	}
	if len(res.Records) != 1 || res.Records[0].SrcURL != "https://contact.sigma-rh.com/form" {
		t.Errorf("unexpected records: %+v", res.Records)
	}
}

func TestProcess_CleanNegativeIsNotRetried(t *testing.T) {
	script := &renderScript{outcomes: []renderOutcome{{html: emptyHTML}}}
	mgr := &fakeManager{script: script}

	res := New(mgr, testConfig()).Process(context.Background(), "https://example.com/b")

	if res.Outcome != models.OutcomeNoMatch {
		t.Fatalf("expected no-match, got %s", res.Outcome)
	}
	if len(script.calls) != 1 {
		t.Errorf("clean negative consumed retry budget: %d attempts", len(script.calls))
	}
	if res.RawHTML != emptyHTML {
		t.Error("no-match result should carry the rendered HTML for snapshots")
	}
}

func TestProcess_ExhaustsRetryBudget(t *testing.T) {
	script := &renderScript{outcomes: []renderOutcome{
		{err: transportErr()},
		{err: transportErr()},
		{err: transportErr()},
	}}
	mgr := &fakeManager{script: script}

	res := New(mgr, testConfig()).Process(context.Background(), "https://example.com/c")

	if res.Outcome != models.OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if len(script.calls) != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", len(script.calls))
	}
	if res.Attempts != 3 {
		t.Errorf("expected Attempts=3, got %d", res.Attempts)
	}
	if res.Err == nil {
		t.Error("failed result should carry the last error")
	}
}

func TestProcess_RecoversAfterTransientError(t *testing.T) {
	script := &renderScript{outcomes: []renderOutcome{
		{err: transportErr()},
		{html: matchedHTML},
	}}
	mgr := &fakeManager{script: script}

	res := New(mgr, testConfig()).Process(context.Background(), "https://example.com/d")

	if res.Outcome != models.OutcomeMatched {
		t.Fatalf("expected matched, got %s", res.Outcome)
	}
	if len(script.calls) != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", len(script.calls))
	}
	if res.Attempts != 2 {
		t.Errorf("expected Attempts=2, got %d", res.Attempts)
	}
}

func TestProcess_SessionFaultTriggersRecreation(t *testing.T) {
	script := &renderScript{outcomes: []renderOutcome{
		{err: transportErr()},
		{err: sessionInvalidErr()},
		{html: matchedHTML},
	}}
	mgr := &fakeManager{script: script}

	res := New(mgr, testConfig()).Process(context.Background(), "https://example.com/e")

	if res.Outcome != models.OutcomeMatched {
		t.Fatalf("expected matched, got %s", res.Outcome)
	}
	// One lazy create up front, one recreation after the fault.
	if mgr.created != 2 {
		t.Errorf("expected 2 session creations, got %d", mgr.created)
	}
	if len(script.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(script.calls))
	}
	if script.calls[0].sessionID != script.calls[1].sessionID {
		t.Error("attempts 1 and 2 should share one session handle")
	}
	if script.calls[2].sessionID == script.calls[1].sessionID {
		t.Error("attempt 3 should run on a fresh session handle")
	}
}

func TestProcess_SessionCreationFailureBecomesFailed(t *testing.T) {
	mgr := &fakeManager{
		script:    &renderScript{},
		createErr: models.NewCrawlError(models.ErrCodeBrowserLaunch, "failed to launch browser", errors.New("no chrome")),
	}

	res := New(mgr, testConfig()).Process(context.Background(), "https://example.com/f")

	if res.Outcome != models.OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if res.Err == nil {
		t.Error("failed result should carry the creation error")
	}
}

func TestProcess_ContextCancellationStopsRetries(t *testing.T) {
	script := &renderScript{outcomes: []renderOutcome{
		{err: transportErr()},
		{err: transportErr()},
		{err: transportErr()},
	}}
	mgr := &fakeManager{script: script}

	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig()
	cfg.RetryBackoff = time.Hour // only cancellation can end the backoff

	done := make(chan models.PageResult, 1)
	go func() {
		done <- New(mgr, cfg).Process(ctx, "https://example.com/g")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		if res.Outcome != models.OutcomeFailed {
			t.Errorf("expected failed on cancellation, got %s", res.Outcome)
		}
		if len(script.calls) != 1 {
			t.Errorf("expected 1 attempt before cancellation, got %d", len(script.calls))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not return after context cancellation")
	}
}
