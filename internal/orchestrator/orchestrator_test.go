package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_websearch/internal/airesearch"
	"github.com/anatolykoptev/go_websearch/internal/scrapers"
)

func TestMergeLinksNonSiteQueryOrdersOtherBeforeBrowser(t *testing.T) {
	priority := []airesearch.Link{{Title: "P", URL: "https://p.example.com"}}
	other := []airesearch.Link{{Title: "O", URL: "https://o.example.com"}}
	browser := []scrapers.Result{{Title: "B", URL: "https://b.example.com"}}

	out := mergeLinks(priority, other, browser, false)
	assert.Equal(t, []string{"https://p.example.com", "https://o.example.com", "https://b.example.com"}, urlsOf(out))
}

func TestMergeLinksSiteQueryOrdersBrowserBeforeOther(t *testing.T) {
	priority := []airesearch.Link{{Title: "P", URL: "https://p.example.com"}}
	other := []airesearch.Link{{Title: "O", URL: "https://o.example.com"}}
	browser := []scrapers.Result{{Title: "B", URL: "https://b.example.com"}}

	out := mergeLinks(priority, other, browser, true)
	assert.Equal(t, []string{"https://p.example.com", "https://b.example.com", "https://o.example.com"}, urlsOf(out))
}

func TestDedupAndCapDropsDuplicatesByNormalizedURL(t *testing.T) {
	links := []Link{
		{Title: "A", URL: "https://example.com/page?utm_source=x"},
		{Title: "A dup", URL: "https://example.com/page"},
	}
	out := dedupAndCap(links, 10, 0, false)
	assert.Len(t, out, 1)
}

func TestDedupAndCapEnforcesPerDomainCap(t *testing.T) {
	links := []Link{
		{Title: "1", URL: "https://example.com/a"},
		{Title: "2", URL: "https://example.com/b"},
		{Title: "3", URL: "https://example.com/c"},
		{Title: "4", URL: "https://other.com/a"},
	}
	out := dedupAndCap(links, 10, 2, false)
	assert.Len(t, out, 3)
}

func TestDedupAndCapSkipsPerDomainCapForSiteQueries(t *testing.T) {
	links := []Link{
		{Title: "1", URL: "https://example.com/a"},
		{Title: "2", URL: "https://example.com/b"},
		{Title: "3", URL: "https://example.com/c"},
	}
	out := dedupAndCap(links, 10, 2, true)
	assert.Len(t, out, 3)
}

func TestDedupAndCapStopsAtLimit(t *testing.T) {
	links := []Link{
		{Title: "1", URL: "https://a.example.com/x"},
		{Title: "2", URL: "https://b.example.com/x"},
		{Title: "3", URL: "https://c.example.com/x"},
	}
	out := dedupAndCap(links, 2, 0, false)
	assert.Len(t, out, 2)
}

func TestDedupAndCapRejectsNonHTTPURLs(t *testing.T) {
	links := []Link{{Title: "bad", URL: "ftp://example.com/x"}}
	out := dedupAndCap(links, 10, 0, false)
	assert.Empty(t, out)
}

func TestDiagnosticsJSONNestsBrowserFields(t *testing.T) {
	result := Result{
		Success: true,
		Query:   "site:example.com",
		Links:   []Link{{Title: "only", URL: "https://example.com/a"}},
		Diagnostics: Diagnostics{
			SearchBackend: "ddg",
			Browser: BrowserDiagnostics{
				FallbackUsed: true,
				BraveError:   "boom",
				DDGResults:   1,
			},
			IsSiteQuery: true,
		},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	diag, ok := decoded["diagnostics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ddg", diag["search_backend"])

	browser, ok := diag["browser"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, browser["fallback_used"])
	assert.Equal(t, "boom", browser["brave_error"])
}

func urlsOf(links []Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.URL
	}
	return out
}
