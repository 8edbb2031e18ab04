package models

// Outcome classifies how processing a single page URL ended.
type Outcome int

const (
	// OutcomeMatched means the rendered page contained at least one
	// qualifying iframe.
	OutcomeMatched Outcome = iota

	// OutcomeNoMatch means the page rendered successfully but contained no
	// qualifying iframe (a clean negative, never retried).
	OutcomeNoMatch

	// OutcomeFailed means every attempt ended in a transport or render
	// error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeNoMatch:
		return "no-match"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IframeRecord is one qualifying iframe found on a page. All three fields
// originate from the same render pass.
type IframeRecord struct {
	// PageURL is the page the iframe was found on.
	PageURL string

	// SrcURL is the iframe's src attribute value. It always contains the
	// configured provider substring.
	SrcURL string

	// IframeHTML is the serialized iframe element, attributes and children
	// preserved as they appeared after noscript removal.
	IframeHTML string
}

// PageResult is the single outcome produced for a page URL.
type PageResult struct {
	PageURL string
	Outcome Outcome

	// Records holds the qualifying iframes; only set for OutcomeMatched.
	Records []IframeRecord

	// RawHTML is the rendered page source; only set for OutcomeNoMatch so
	// the caller can persist a snapshot for review.
	RawHTML string

	// Attempts is how many render attempts were made for this URL.
	Attempts int

	// Err is the last attempt's error; only set for OutcomeFailed.
	Err error
}
