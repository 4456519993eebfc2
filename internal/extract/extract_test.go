package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPipeline() *Pipeline {
	return New(DefaultConfig())
}

const longPara = "This paragraph is comfortably longer than the fifty character minimum threshold used by the generic pass."

func TestExtract_BasicPage(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Doc Title</title></head><body>
		<h1>Main Heading</h1>
		<h2>Section One</h2>
		<p>` + longPara + `</p>
		<h3>Subsection</h3>
		<ul><li>alpha</li><li>beta</li></ul>
	</body></html>`

	result := newTestPipeline().Extract(html, "https://example.com/page", false)

	require.Equal(t, "Main Heading", result.Title)
	require.Equal(t, longPara, result.Description)
	require.Equal(t, []string{"Section One", "Subsection"}, result.Headings)
	require.Equal(t, []string{longPara}, result.Paragraphs)
	require.Equal(t, []string{"alpha", "beta"}, result.ListItems)
}

func TestExtract_TitleFallsBackToTitleTag(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Fallback Title</title></head><body><p>hi</p></body></html>`
	result := newTestPipeline().Extract(html, "https://example.com", false)
	require.Equal(t, "Fallback Title", result.Title)
}

func TestExtract_SentinelsWhenNothingMatches(t *testing.T) {
	t.Parallel()

	html := `<html><body><div>bare</div></body></html>`
	result := newTestPipeline().Extract(html, "https://example.com", false)

	require.Equal(t, NoTitle, result.Title)
	require.Equal(t, NoDescription, result.Description)
	require.Empty(t, result.Headings)
	require.Empty(t, result.Paragraphs)
	require.Empty(t, result.ListItems)
	require.Empty(t, result.Images)
	require.Empty(t, result.Tables)
}

func TestExtract_ShortParagraphDoesNotBecomeDescription(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Example</title></head><body><h1>Hi</h1><p>short</p></body></html>`
	result := newTestPipeline().Extract(html, "https://example.com", false)

	require.Equal(t, "Hi", result.Title)
	require.Equal(t, NoDescription, result.Description)
	require.Empty(t, result.Headings)
	require.Empty(t, result.Paragraphs)
}

func TestExtract_MetaDescriptionFallback(t *testing.T) {
	t.Parallel()

	html := `<html><head><meta name="description" content="From the meta tag."></head>
		<body><p>tiny</p></body></html>`
	result := newTestPipeline().Extract(html, "https://example.com", false)
	require.Equal(t, "From the meta tag.", result.Description)
}

func TestExtract_ImagesResolveAndDefaultAlt(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<img src="/logo.png" alt="Logo">
		<img src="https://cdn.example.net/pic.jpg">
		<img alt="no source">
		<img src="   ">
	</body></html>`
	result := newTestPipeline().Extract(html, "https://example.com/articles/1", false)

	require.Len(t, result.Images, 2)
	require.Equal(t, "https://example.com/logo.png", result.Images[0].Src)
	require.Equal(t, "Logo", result.Images[0].Alt)
	require.Equal(t, "https://cdn.example.net/pic.jpg", result.Images[1].Src)
	require.Equal(t, DefaultAlt, result.Images[1].Alt)
}

func TestExtract_TablesSerializedRowWise(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<table>
			<tr><th>Name</th><th>Qty</th></tr>
			<tr><td>Bolt</td><td>40</td></tr>
		</table>
		<table></table>
	</body></html>`
	result := newTestPipeline().Extract(html, "https://example.com", false)

	require.Len(t, result.Tables, 1)
	require.Equal(t, "Name | Qty\nBolt | 40", result.Tables[0])
}

func TestExtract_NoiseIsStrippedBeforeHeuristics(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<script>var x = "` + longPara + `";</script>
		<nav><ul><li>Home</li><li>About</li></ul></nav>
		<div class="ad-banner"><p>` + longPara + `</p></div>
		<div id="sponsored-links"><ul><li>buy now</li></ul></div>
		<p>` + longPara + `</p>
		<footer><p>` + longPara + `</p></footer>
	</body></html>`
	result := newTestPipeline().Extract(html, "https://example.com", false)

	require.Equal(t, []string{longPara}, result.Paragraphs)
	require.Empty(t, result.ListItems)
}

func TestExtract_ScopeNarrowsToMainContent(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<div class="sidebar"><h2>Related</h2></div>
		<main><h1>Scoped</h1><h2>Inside</h2><p>` + longPara + `</p></main>
	</body></html>`
	result := newTestPipeline().Extract(html, "https://example.com", false)

	require.Equal(t, "Scoped", result.Title)
	require.Equal(t, []string{"Inside"}, result.Headings)
}

func TestExtract_AutoparseLoosensThreshold(t *testing.T) {
	t.Parallel()

	short := "Just over twenty chars."
	html := `<html><body><p>` + short + `</p><p>` + longPara + `</p></body></html>`

	strict := newTestPipeline().Extract(html, "https://example.com", false)
	require.Equal(t, []string{longPara}, strict.Paragraphs)

	loose := newTestPipeline().Extract(html, "https://example.com", true)
	require.Equal(t, []string{short, longPara}, loose.Paragraphs)
}

func TestExtract_MalformedHTMLNeverFails(t *testing.T) {
	t.Parallel()

	html := `<html><body><div><p>` + longPara + `<//div><span`
	result := newTestPipeline().Extract(html, "https://example.com", false)
	require.Equal(t, []string{longPara}, result.Paragraphs)
}

func TestExtract_RawExcerptBounded(t *testing.T) {
	t.Parallel()

	html := "<html><body>" + strings.Repeat("x", 5000) + "</body></html>"
	result := newTestPipeline().Extract(html, "https://example.com", false)
	require.Len(t, result.RawHTML, 2000)
	require.Equal(t, html[:2000], result.RawHTML)
}

func TestMergeParsed_FoldsEnvelopeFields(t *testing.T) {
	t.Parallel()

	result := newTestPipeline().Extract("<html><body></body></html>", "https://example.com", false)
	MergeParsed(&result, map[string]any{
		"name":        "Widget Pro",
		"description": "A widget.",
		"pricing":     map[string]any{"amount": 9.99},
		"title":       "",
	})

	require.Equal(t, "Widget Pro", result.Title)
	require.Equal(t, "A widget.", result.Description)
	require.Contains(t, result.Overrides, "pricing")
}

func TestSquash(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b c", squash("  a\n\tb   c "))
	require.Equal(t, "", squash(" \n "))
}
