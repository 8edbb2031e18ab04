package processor

import (
	"strings"
	"testing"
)

const matchDomain = "contact.sigma-rh.com"

func TestExtractIframes_QualifyingIframe(t *testing.T) {
	html := `<html><body>
		<iframe src="https://contact.sigma-rh.com/form?id=9" width="600"></iframe>
	</body></html>`

	records, err := ExtractIframes(html, "https://example.com/page", matchDomain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.PageURL != "https://example.com/page" {
		t.Errorf("wrong page URL: %s", r.PageURL)
	}
	if r.SrcURL != "https://contact.sigma-rh.com/form?id=9" {
		t.Errorf("src not preserved verbatim: %s", r.SrcURL)
	}
	if !strings.Contains(r.IframeHTML, `src="https://contact.sigma-rh.com/form?id=9"`) {
		t.Errorf("serialized iframe lost the src attribute: %s", r.IframeHTML)
	}
	if !strings.Contains(r.IframeHTML, `width="600"`) {
		t.Errorf("serialized iframe lost other attributes: %s", r.IframeHTML)
	}
}

func TestExtractIframes_NoscriptOnlyIframeIsIgnored(t *testing.T) {
	html := `<html><body>
		<noscript><iframe src="https://contact.sigma-rh.com/x"></iframe></noscript>
	</body></html>`

	records, err := ExtractIframes(html, "https://example.com/", matchDomain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("noscript fallback iframe should not match, got %d records", len(records))
	}
}

func TestExtractIframes_LiveIframeSurvivesNoscriptRemoval(t *testing.T) {
	html := `<html><body>
		<noscript><iframe src="https://contact.sigma-rh.com/fallback"></iframe></noscript>
		<iframe src="https://contact.sigma-rh.com/live"></iframe>
	</body></html>`

	records, err := ExtractIframes(html, "https://example.com/", matchDomain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected only the live iframe, got %d records", len(records))
	}
	if records[0].SrcURL != "https://contact.sigma-rh.com/live" {
		t.Errorf("matched the wrong iframe: %s", records[0].SrcURL)
	}
}

func TestExtractIframes_Filtering(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{
			name: "foreign src is skipped",
			html: `<iframe src="https://www.youtube.com/embed/abc"></iframe>`,
			want: 0,
		},
		{
			name: "iframe without src is skipped",
			html: `<iframe title="no source"></iframe>`,
			want: 0,
		},
		{
			name: "substring match anywhere in src",
			html: `<iframe src="//contact.sigma-rh.com/embedded"></iframe>`,
			want: 1,
		},
		{
			name: "no iframes at all",
			html: `<p>plain page</p>`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ExtractIframes(tt.html, "https://example.com/", matchDomain)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(records) != tt.want {
				t.Errorf("expected %d records, got %d", tt.want, len(records))
			}
		})
	}
}

func TestExtractIframes_DocumentOrder(t *testing.T) {
	html := `<html><body>
		<iframe src="https://contact.sigma-rh.com/one"></iframe>
		<div><iframe src="https://contact.sigma-rh.com/two"></iframe></div>
		<iframe src="https://contact.sigma-rh.com/three"></iframe>
	</body></html>`

	records, err := ExtractIframes(html, "https://example.com/", matchDomain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"https://contact.sigma-rh.com/one",
		"https://contact.sigma-rh.com/two",
		"https://contact.sigma-rh.com/three",
	}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, w := range want {
		if records[i].SrcURL != w {
			t.Errorf("record %d: expected %s, got %s", i, w, records[i].SrcURL)
		}
	}
}

func TestExtractIframes_Idempotent(t *testing.T) {
	html := `<html><body>
		<iframe src="https://contact.sigma-rh.com/form" class="embed"></iframe>
	</body></html>`

	first, err := ExtractIframes(html, "https://example.com/", matchDomain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ExtractIframes(html, "https://example.com/", matchDomain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 record per pass, got %d and %d", len(first), len(second))
	}
	if first[0] != second[0] {
		t.Errorf("re-extraction produced different records:\n%+v\n%+v", first[0], second[0])
	}
}
