package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Sitemap SitemapConfig
	Browser BrowserConfig
	Crawl   CrawlConfig
	Output  OutputConfig
	Log     LogConfig
}

// SitemapConfig controls the sitemap input stage.
type SitemapConfig struct {
	// URL is the sitemap to crawl.
	URL string // default: "https://www.sigma-rh.com/sitemap.xml"

	// FetchTimeout bounds the sitemap HTTP fetch.
	FetchTimeout time.Duration // default: 10s

	// Proxy is an optional proxy URL for the sitemap fetch.
	Proxy string
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for browser traffic.
	Proxy string

	// Stealth toggles stealth JS injection before navigation.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types blocked during renders.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// CrawlConfig controls per-URL processing behavior.
type CrawlConfig struct {
	// MatchSubstring qualifies an iframe when its src contains it.
	MatchSubstring string // default: "contact.sigma-rh.com"

	// MaxRetries is the per-URL attempt budget for errored renders.
	MaxRetries int // default: 3

	// RenderTimeout bounds a single fetch-and-render pass.
	RenderTimeout time.Duration // default: 30s

	// SettleDelay is waited after navigation so async DOM mutations can
	// complete before extraction.
	SettleDelay time.Duration // default: 2s

	// RequestDelay paces consecutive page requests.
	RequestDelay time.Duration // default: 2s

	// RetryBackoff is waited between errored attempts.
	RetryBackoff time.Duration // default: 5s

	// RecoveryDelay is the extra wait after recreating a dead session,
	// to avoid re-creation storms under sustained failure.
	RecoveryDelay time.Duration // default: 3s
}

// OutputConfig controls the result artifacts.
type OutputConfig struct {
	// MatchesFile is the CSV of extracted iframe records.
	MatchesFile string // default: "sigma_iframes.csv"

	// NoMatchFile is the CSV of pages that rendered without a match.
	NoMatchFile string // default: "no_iframes.csv"

	// FailedFile is the line-delimited list of pages that errored out.
	FailedFile string // default: "failed_urls.txt"

	// SnapshotDir, when set, receives raw HTML snapshots of no-match pages.
	SnapshotDir string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Sitemap: SitemapConfig{
			URL:          envOr("SIGMA_SITEMAP_URL", "https://www.sigma-rh.com/sitemap.xml"),
			FetchTimeout: envDurationOr("SIGMA_SITEMAP_TIMEOUT", 10*time.Second),
			Proxy:        os.Getenv("SIGMA_SITEMAP_PROXY"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("SIGMA_HEADLESS", true),
			NoSandbox:  envBoolOr("SIGMA_NO_SANDBOX", false),
			BrowserBin: os.Getenv("SIGMA_BROWSER_BIN"),
			Proxy:      os.Getenv("SIGMA_PROXY"),
			Stealth:    envBoolOr("SIGMA_STEALTH", false),
			BlockedResourceTypes: envSliceOr("SIGMA_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Crawl: CrawlConfig{
			MatchSubstring: envOr("SIGMA_MATCH_SUBSTRING", "contact.sigma-rh.com"),
			MaxRetries:     envIntOr("SIGMA_MAX_RETRIES", 3),
			RenderTimeout:  envDurationOr("SIGMA_RENDER_TIMEOUT", 30*time.Second),
			SettleDelay:    envDurationOr("SIGMA_SETTLE_DELAY", 2*time.Second),
			RequestDelay:   envDurationOr("SIGMA_REQUEST_DELAY", 2*time.Second),
			RetryBackoff:   envDurationOr("SIGMA_RETRY_BACKOFF", 5*time.Second),
			RecoveryDelay:  envDurationOr("SIGMA_RECOVERY_DELAY", 3*time.Second),
		},
		Output: OutputConfig{
			MatchesFile: envOr("SIGMA_MATCHES_FILE", "sigma_iframes.csv"),
			NoMatchFile: envOr("SIGMA_NO_MATCH_FILE", "no_iframes.csv"),
			FailedFile:  envOr("SIGMA_FAILED_FILE", "failed_urls.txt"),
			SnapshotDir: os.Getenv("SIGMA_SNAPSHOT_DIR"),
		},
		Log: LogConfig{
			Level:  envOr("SIGMA_LOG_LEVEL", "info"),
			Format: envOr("SIGMA_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
