package models

import (
	"errors"
	"fmt"
)

// Error codes used in diagnostics and retry classification.
const (
	ErrCodeTransport      = "TRANSPORT_FAILED"
	ErrCodeRenderTimeout  = "RENDER_TIMEOUT"
	ErrCodeSessionInvalid = "SESSION_INVALID"
	ErrCodeParse          = "HTML_PARSE_FAILED"
	ErrCodeSitemapFetch   = "SITEMAP_FETCH_FAILED"
	ErrCodeBrowserLaunch  = "BROWSER_LAUNCH_FAILED"
)

// CrawlError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type CrawlError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(code, message string, err error) *CrawlError {
	return &CrawlError{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the crawl error code from err, or "" if err carries none.
func ErrorCode(err error) string {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsSessionInvalid reports whether err indicates the browser session itself
// is no longer usable, so the caller should recreate it before retrying.
// Classification is by error type, never by message text.
func IsSessionInvalid(err error) bool {
	return ErrorCode(err) == ErrCodeSessionInvalid
}
