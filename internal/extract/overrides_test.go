package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagerelay/pagerelay/internal/relay"
)

func TestEncyclopediaOverride_UsesContentContainer(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h1>Go (programming language)</h1>
		<p>` + longPara + `</p>
		<div id="mw-content-text">
			<p></p>
			<p>Go is a statically typed, compiled language.</p>
			<h2>History</h2>
			<h2>Design</h2>
		</div>
	</body></html>`

	result := newTestPipeline().Extract(html, "https://en.wikipedia.org/wiki/Go", false)

	require.Equal(t, "Go is a statically typed, compiled language.", result.Description)
	require.Equal(t, "Go is a statically typed, compiled language.", result.Overrides["intro"])
	require.Equal(t, []string{"History", "Design"}, result.Headings)
	require.Equal(t, []string{"History", "Design"}, result.Overrides["sections"])
}

func TestEncyclopediaOverride_FallsBackWithoutContainer(t *testing.T) {
	t.Parallel()

	html := `<html><body><h1>Stripped Mirror</h1><p>` + longPara + `</p></body></html>`
	result := newTestPipeline().Extract(html, "https://en.wikipedia.org/wiki/Mirror", false)

	require.Equal(t, "Stripped Mirror", result.Title)
	require.Equal(t, longPara, result.Description, "generic value survives")
	require.NotContains(t, result.Overrides, "intro")
}

func TestRetailOverride_ReadsProductElements(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h1>Generic Header</h1>
		<span id="productTitle">  Cordless Drill 18V  </span>
		<div id="feature-bullets">Brushless motor. Two batteries included.</div>
	</body></html>`

	result := newTestPipeline().Extract(html, "https://www.amazon.com/dp/B00TEST", false)

	require.Equal(t, "Cordless Drill 18V", result.Title)
	require.Equal(t, "Brushless motor. Two batteries included.", result.Description)
	require.Equal(t, "Cordless Drill 18V", result.Overrides["product_title"])
}

func TestRetailOverride_DescriptionFallbackChain(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<span id="productTitle">Widget</span>
		<div id="productDescription">Long form description.</div>
	</body></html>`
	result := newTestPipeline().Extract(html, "https://www.amazon.co.uk/dp/B00TEST", false)
	require.Equal(t, "Long form description.", result.Description)
}

func TestOverride_DoesNotTriggerOnOtherHosts(t *testing.T) {
	t.Parallel()

	html := `<html><body><span id="productTitle">Trap</span><h1>Real Title</h1></body></html>`
	result := newTestPipeline().Extract(html, "https://example.com/page", false)
	require.Equal(t, "Real Title", result.Title)
}

func TestAdjustFetch_RetailHostsSuppressAutoparse(t *testing.T) {
	t.Parallel()

	pipe := newTestPipeline()
	req := relay.FetchRequest{
		URL:       "https://www.amazon.com/dp/B00TEST",
		Autoparse: true,
	}
	pipe.AdjustFetch(&req)

	require.False(t, req.Autoparse)
	require.True(t, req.Premium)
	require.Equal(t, "us", req.CountryCode)
}

func TestAdjustFetch_LeavesOtherHostsAlone(t *testing.T) {
	t.Parallel()

	pipe := newTestPipeline()
	req := relay.FetchRequest{
		URL:       "https://en.wikipedia.org/wiki/Go",
		Autoparse: true,
	}
	pipe.AdjustFetch(&req)

	require.True(t, req.Autoparse)
	require.False(t, req.Premium)
	require.Empty(t, req.CountryCode)
}
