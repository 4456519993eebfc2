package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pagerelay/pagerelay/internal/relay"
)

// resultSelectors are tried in order against search/listing pages; the
// first selector producing any entries wins so a page is not double
// counted by overlapping patterns.
var resultSelectors = []string{
	".result a[href]",
	".search-result a[href]",
	".item a[href]",
	".product a[href]",
	"[class*=\"result\"] h3 a[href]",
	"h3 a[href]",
	"h2 a[href]",
}

// Spider extracts result entries and images from a search or listing
// page. Like the main pipeline it never fails: a page with no
// recognizable result blocks yields empty lists.
func (p *Pipeline) Spider(rawHTML string, pageURL string) relay.SpiderResult {
	out := relay.SpiderResult{
		Results: []relay.SpiderEntry{},
		Images:  []relay.ImageRef{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return out
	}
	stripNoise(doc)

	base, baseErr := url.Parse(pageURL)
	resolve := func(href string) string {
		if baseErr != nil {
			return href
		}
		abs, err := base.Parse(href)
		if err != nil {
			return href
		}
		return abs.String()
	}

	seen := map[string]bool{}
	for _, selector := range resultSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href := strings.TrimSpace(sel.AttrOr("href", ""))
			title := squash(sel.Text())
			if href == "" || title == "" || strings.HasPrefix(href, "#") {
				return
			}
			link := resolve(href)
			if seen[link] {
				return
			}
			seen[link] = true
			out.Results = append(out.Results, relay.SpiderEntry{Title: title, Link: link})
		})
		if len(out.Results) > 0 {
			break
		}
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := strings.TrimSpace(sel.AttrOr("src", ""))
		if src == "" {
			return
		}
		alt := strings.TrimSpace(sel.AttrOr("alt", ""))
		if alt == "" {
			alt = DefaultAlt
		}
		out.Images = append(out.Images, relay.ImageRef{Src: resolve(src), Alt: alt})
	})

	return out
}
