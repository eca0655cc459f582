package airesearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBrowsePageLinksWithInstructions(t *testing.T) {
	content := `I will browse_page {"url":"https://example.com/a","instructions":"find the pricing table"} to verify.`
	links := ExtractBrowsePageLinks(content, "")
	if assert.Len(t, links, 1) {
		assert.Equal(t, "https://example.com/a", links[0].URL)
		assert.Contains(t, links[0].Title, "browse_page: find the pricing table")
	}
}

func TestExtractBrowsePageLinksDedupes(t *testing.T) {
	content := `browse_page {"url":"https://example.com/a"} then browse_page {"url":"https://example.com/a?utm_source=x"}`
	links := ExtractBrowsePageLinks(content, "")
	assert.Len(t, links, 1)
}

func TestExtractBrowsePageLinksNoInstructionsFallsBackToHost(t *testing.T) {
	content := `browse_page {"url":"https://news.example.com/story"}`
	links := ExtractBrowsePageLinks(content, "")
	if assert.Len(t, links, 1) {
		assert.Equal(t, "news.example.com", links[0].Title)
	}
}

func TestParseMarkdownLinksCollectsAllThreeForms(t *testing.T) {
	content := "See [the docs](https://example.com/docs) and also https://example.org/bare and " +
		`{"url": "https://example.net/json"}`
	links, _ := ParseMarkdownLinks(content, "")
	assert.Len(t, links, 3)
}

func TestParseMarkdownLinksExtractsSummarySection(t *testing.T) {
	content := "intro text\n\n### 总结分析\n\nThis is the conclusion."
	_, summary := ParseMarkdownLinks(content, "")
	assert.Contains(t, summary, "This is the conclusion.")
	assert.NotContains(t, summary, "intro text")
}

func TestParseMarkdownLinksFallsBackToRawContentWhenNoHeading(t *testing.T) {
	content := "just some plain prose with no headings at all."
	_, summary := ParseMarkdownLinks(content, "")
	assert.Equal(t, content, summary)
}

func TestCleanAITagsRemovesThinkBlock(t *testing.T) {
	text := "before<think>internal reasoning here</think>after"
	assert.Equal(t, "beforeafter", CleanAITags(text))
}

func TestCleanAITagsRemovesGrokRender(t *testing.T) {
	text := "keep<grok:render data=\"x\">hidden stuff</grok:render>keep2"
	assert.Equal(t, "keepkeep2", CleanAITags(text))
}

func TestStripURLsReplacesMarkdownLinkWithLabel(t *testing.T) {
	assert.Equal(t, "See Example.", StripURLs("See [Example](https://example.com)."))
}

func TestStripURLsDropsBareURL(t *testing.T) {
	out := StripURLs("Visit https://example.com/page for more.")
	assert.NotContains(t, out, "https://")
}

func TestStripURLsTruncatesAtSourcesHeading(t *testing.T) {
	text := "Real content here.\nSOURCES:\nhttps://example.com/a"
	out := StripURLs(text)
	assert.Contains(t, out, "Real content here.")
	assert.NotContains(t, out, "SOURCES")
}
