// Package relay defines core types shared across subsystems.
package relay

import (
	"time"
)

// ScrapeRequest captures the caller's instructions for a single page fetch.
type ScrapeRequest struct {
	Query      string `json:"query"`
	Autoparse  bool   `json:"autoparse"`
	RenderJS   bool   `json:"render_js"`
	DeepSearch bool   `json:"deepSearch"`
}

// ImageRef is an image found on the page.
type ImageRef struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Result is the normalized structured document returned to the caller.
type Result struct {
	URL         string     `json:"url"`
	RawHTML     string     `json:"raw_html"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Headings    []string   `json:"headings"`
	Paragraphs  []string   `json:"paragraphs"`
	ListItems   []string   `json:"list_items"`
	Images      []ImageRef `json:"images"`
	Tables      []string   `json:"tables"`
	// Overrides holds site-specific fields populated by a domain override,
	// keyed by field name (e.g. "intro", "sections", "price").
	Overrides map[string]any `json:"overrides,omitempty"`
}

// SpiderEntry is a single hit extracted from a search/listing page.
type SpiderEntry struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// SpiderResult is returned by the spider endpoint for listing pages.
type SpiderResult struct {
	Results []SpiderEntry `json:"results"`
	Images  []ImageRef    `json:"images"`
}

// FetchRequest captures everything needed to fetch a URL upstream.
type FetchRequest struct {
	URL         string
	APIKey      string
	RenderJS    bool
	Autoparse   bool
	Premium     bool
	CountryCode string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	// PreParsed is set when the upstream returned a JSON envelope
	// instead of raw HTML.
	PreParsed map[string]any
	Duration  time.Duration
}

// BatchItem is the per-URL outcome of a batch scrape.
type BatchItem struct {
	URL    string  `json:"url"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Event describes a completed scrape for downstream consumers.
type Event struct {
	URL        string    `json:"url"`
	Host       string    `json:"host"`
	Status     string    `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	UsedKey    bool      `json:"used_service_key"`
	At         time.Time `json:"at"`
}
