// Package extract turns raw HTML into a normalized structured document.
//
// The pipeline is deliberately forgiving: pages in the wild are missing
// titles, nest content in arbitrary containers, and bury text under
// boilerplate. Every stage degrades to a sentinel or an empty list; the
// pipeline never returns an error to the request path.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pagerelay/pagerelay/internal/relay"
)

// Sentinels returned when a page has no matching element.
const (
	NoTitle       = "No title"
	NoDescription = "No description"
	DefaultAlt    = "Image"
)

// Config tunes the generic extraction pass.
type Config struct {
	// MinParagraphLen is the minimum trimmed length for a paragraph to be
	// kept by the generic pass (and to qualify as the description).
	MinParagraphLen int
	// LooseParagraphLen is the relaxed threshold used by the autoparse pass.
	LooseParagraphLen int
	// RawExcerptLen bounds the raw markup excerpt carried in the result.
	RawExcerptLen int
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		MinParagraphLen:   50,
		LooseParagraphLen: 20,
		RawExcerptLen:     2000,
	}
}

// Pipeline applies the staged extraction to raw HTML.
type Pipeline struct {
	cfg       Config
	overrides []Override
}

// New builds a Pipeline with the built-in domain overrides installed.
func New(cfg Config) *Pipeline {
	if cfg.MinParagraphLen <= 0 {
		cfg.MinParagraphLen = 50
	}
	if cfg.LooseParagraphLen <= 0 {
		cfg.LooseParagraphLen = 20
	}
	if cfg.RawExcerptLen <= 0 {
		cfg.RawExcerptLen = 2000
	}
	return &Pipeline{cfg: cfg, overrides: defaultOverrides()}
}

// noisySelector matches nodes stripped before any text heuristics run.
const noisySelector = "script, style, noscript, nav, footer, aside, iframe, form"

// adPattern matches id/class tokens that smell like advertising chrome.
var adPattern = regexp.MustCompile(`(?i)(^|[-_ ])(ad|ads|advert|advertisement|banner|sponsor|sponsored|promo|popup)([-_ ]|$)`)

// scopeSelectors are tried in order to narrow extraction to the main
// content region. The encyclopedia containers sit after the semantic
// elements so a well-formed page wins on its own markup.
var scopeSelectors = []string{
	"main",
	"article",
	"#mw-content-text",
	".mw-parser-output",
	"#content",
	"#main-content",
	"#bodyContent",
	".main-content",
	".post-content",
	".article-body",
	".content",
}

// Extract runs the full pipeline over raw HTML. pageURL provides the base
// for resolving relative image sources and selects the domain override;
// autoparse relaxes the paragraph threshold.
func (p *Pipeline) Extract(rawHTML string, pageURL string, autoparse bool) relay.Result {
	result := relay.Result{
		URL:         pageURL,
		RawHTML:     excerpt(rawHTML, p.cfg.RawExcerptLen),
		Title:       NoTitle,
		Description: NoDescription,
		Headings:    []string{},
		Paragraphs:  []string{},
		ListItems:   []string{},
		Images:      []relay.ImageRef{},
		Tables:      []string{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return result
	}

	stripNoise(doc)
	scope := narrowScope(doc)

	p.genericPass(doc, scope, pageURL, &result)
	if autoparse {
		p.loosePass(scope, &result)
	}
	p.applyOverrides(doc, pageURL, &result)

	return result
}

func (p *Pipeline) genericPass(doc *goquery.Document, scope *goquery.Selection, pageURL string, result *relay.Result) {
	if title := firstText(scope.Find("h1")); title != "" {
		result.Title = title
	} else if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		result.Title = title
	}

	scope.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := squash(sel.Text())
		if len(text) <= p.cfg.MinParagraphLen {
			return
		}
		if result.Description == NoDescription {
			result.Description = text
		}
		result.Paragraphs = append(result.Paragraphs, text)
	})
	if result.Description == NoDescription {
		if meta, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && strings.TrimSpace(meta) != "" {
			result.Description = strings.TrimSpace(meta)
		}
	}

	scope.Find("h2, h3").Each(func(_ int, sel *goquery.Selection) {
		if text := squash(sel.Text()); text != "" {
			result.Headings = append(result.Headings, text)
		}
	})

	scope.Find("ul li, ol li").Each(func(_ int, sel *goquery.Selection) {
		if text := squash(sel.Text()); text != "" {
			result.ListItems = append(result.ListItems, text)
		}
	})

	base, baseErr := url.Parse(pageURL)
	scope.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		src = strings.TrimSpace(src)
		if !ok || src == "" {
			return
		}
		if baseErr == nil {
			if abs, err := base.Parse(src); err == nil {
				src = abs.String()
			}
		}
		alt := strings.TrimSpace(sel.AttrOr("alt", ""))
		if alt == "" {
			alt = DefaultAlt
		}
		result.Images = append(result.Images, relay.ImageRef{Src: src, Alt: alt})
	})

	scope.Find("table").Each(func(_ int, table *goquery.Selection) {
		if serialized := serializeTable(table); serialized != "" {
			result.Tables = append(result.Tables, serialized)
		}
	})
}

// loosePass re-collects paragraphs and list items at the relaxed
// threshold, replacing the generic lists wholesale.
func (p *Pipeline) loosePass(scope *goquery.Selection, result *relay.Result) {
	paragraphs := []string{}
	scope.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if text := squash(sel.Text()); len(text) > p.cfg.LooseParagraphLen {
			paragraphs = append(paragraphs, text)
		}
	})
	items := []string{}
	scope.Find("ul li, ol li").Each(func(_ int, sel *goquery.Selection) {
		if text := squash(sel.Text()); text != "" {
			items = append(items, text)
		}
	})
	result.Paragraphs = paragraphs
	result.ListItems = items
}

func stripNoise(doc *goquery.Document) {
	doc.Find(noisySelector).Remove()
	doc.Find("[id], [class]").Each(func(_ int, sel *goquery.Selection) {
		id := sel.AttrOr("id", "")
		class := sel.AttrOr("class", "")
		if adPattern.MatchString(id) || adPattern.MatchString(class) {
			sel.Remove()
		}
	})
}

func narrowScope(doc *goquery.Document) *goquery.Selection {
	for _, selector := range scopeSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

func serializeTable(table *goquery.Selection) string {
	var rows []string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, squash(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	})
	return strings.Join(rows, "\n")
}

// MergeParsed folds an upstream pre-parsed envelope over a result.
// Recognized scalar fields replace the generic values only when non-empty;
// everything else lands in the override bag so nothing is silently lost.
func MergeParsed(result *relay.Result, parsed map[string]any) {
	for key, value := range parsed {
		switch key {
		case "title", "name":
			if s := stringValue(value); s != "" {
				result.Title = s
			}
		case "description", "full_description":
			if s := stringValue(value); s != "" {
				result.Description = s
			}
		case "html":
			// Embedded HTML is extracted by the caller, not merged here.
		default:
			if result.Overrides == nil {
				result.Overrides = map[string]any{}
			}
			result.Overrides[key] = value
		}
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func firstText(sel *goquery.Selection) string {
	return squash(sel.First().Text())
}

var whitespace = regexp.MustCompile(`\s+`)

// squash trims and collapses internal whitespace runs to single spaces.
func squash(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
