package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pagerelay/pagerelay/internal/relay"
)

// Override binds a host pattern to site-specific extraction rules and,
// optionally, adjustments to the upstream fetch parameters. Apply only
// replaces a field when its own lookup succeeds; the generic value
// survives otherwise.
type Override struct {
	Name        string
	HostPattern string
	AdjustFetch func(req *relay.FetchRequest)
	Apply       func(doc *goquery.Document, result *relay.Result)
}

// Matches reports whether the override governs the given host.
func (o Override) Matches(host string) bool {
	return strings.Contains(strings.ToLower(host), o.HostPattern)
}

func defaultOverrides() []Override {
	return []Override{
		{
			Name:        "encyclopedia",
			HostPattern: "wikipedia.org",
			Apply:       applyEncyclopedia,
		},
		{
			Name:        "retail-product",
			HostPattern: "amazon.",
			AdjustFetch: func(req *relay.FetchRequest) {
				// Product pages defeat autoparse; a premium geo-pinned
				// fetch of the raw page works far more reliably.
				req.Autoparse = false
				req.Premium = true
				req.CountryCode = "us"
			},
			Apply: applyRetailProduct,
		},
	}
}

func (p *Pipeline) applyOverrides(doc *goquery.Document, pageURL string, result *relay.Result) {
	host := hostOf(pageURL)
	if host == "" {
		return
	}
	for _, o := range p.overrides {
		if o.Matches(host) && o.Apply != nil {
			o.Apply(doc, result)
			return
		}
	}
}

// AdjustFetch applies any host-specific upstream parameter tweaks for the
// request's URL. Called before the fetch is issued.
func (p *Pipeline) AdjustFetch(req *relay.FetchRequest) {
	host := hostOf(req.URL)
	if host == "" {
		return
	}
	for _, o := range p.overrides {
		if o.Matches(host) && o.AdjustFetch != nil {
			o.AdjustFetch(req)
			return
		}
	}
}

// applyEncyclopedia pulls the lead paragraph and section headings out of
// the MediaWiki content container. Pages served without the container
// (mirrors, stripped copies) keep the generic values.
func applyEncyclopedia(doc *goquery.Document, result *relay.Result) {
	container := doc.Find("#mw-content-text").First()
	if container.Length() == 0 {
		return
	}

	intro := ""
	container.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if text := squash(sel.Text()); text != "" {
			intro = text
			return false
		}
		return true
	})

	var sections []string
	container.Find("h2").Each(func(_ int, sel *goquery.Selection) {
		if text := squash(sel.Text()); text != "" {
			sections = append(sections, text)
		}
	})

	if result.Overrides == nil {
		result.Overrides = map[string]any{}
	}
	if intro != "" {
		result.Overrides["intro"] = intro
		result.Description = intro
	}
	if len(sections) > 0 {
		result.Overrides["sections"] = sections
		result.Headings = sections
	}
}

// applyRetailProduct reads the product title and description blocks by
// their well-known element ids.
func applyRetailProduct(doc *goquery.Document, result *relay.Result) {
	if title := squash(doc.Find("#productTitle").First().Text()); title != "" {
		result.Title = title
		if result.Overrides == nil {
			result.Overrides = map[string]any{}
		}
		result.Overrides["product_title"] = title
	}

	description := squash(doc.Find("#feature-bullets").First().Text())
	if description == "" {
		description = squash(doc.Find("#productDescription").First().Text())
	}
	if description != "" {
		result.Description = description
	}

	if price := squash(doc.Find("#priceblock_ourprice, .a-price .a-offscreen").First().Text()); price != "" {
		if result.Overrides == nil {
			result.Overrides = map[string]any{}
		}
		result.Overrides["price"] = price
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
