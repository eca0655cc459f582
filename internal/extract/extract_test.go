package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreRewardsLengthAndUniqueness(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("This is a distinct sentence number ")
		b.WriteString(string(rune('A' + i)))
		b.WriteString(" about the article topic at hand today.\n")
	}
	sc := score(b.String(), false)
	assert.Greater(t, sc.qualityScore, 40)
	assert.Equal(t, 1.0, sc.uniqueLineRatio)
}

func TestScorePenalizesManyShortLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("hi\n")
	}
	sc := score(b.String(), false)
	assert.Less(t, sc.qualityScore, 30)
}

func TestScoreStructureBonusForMarkdown(t *testing.T) {
	md := "# Heading\n\nSome intro paragraph text that is reasonably long and informative.\n\n- bullet one item\n- bullet two item\n- bullet three item\n\n```go\ncode fence content here\n```\n"
	sc := score(md, true)
	plain := score(md, false)
	assert.GreaterOrEqual(t, sc.qualityScore, plain.qualityScore)
}

func TestScoreReportsNonZeroNoiseRatioForSurvivingNoiseLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("This is a distinct informative sentence about topic ")
		b.WriteString(string(rune('A' + i)))
		b.WriteString(".\n")
	}
	b.WriteString("captcha\n")
	sc := score(b.String(), false)
	assert.Greater(t, sc.noiseLineRatio, 0.0)
}

func TestScoreNoiseRatioZeroWithoutNoiseLines(t *testing.T) {
	sc := score("This is a perfectly clean sentence with no noise markers at all.\n", false)
	assert.Equal(t, 0.0, sc.noiseLineRatio)
}

func TestSelectBestPrefersAdapterWhenAboveBar(t *testing.T) {
	tune := tuningFor(StrategyBalanced)
	candidates := []Candidate{
		{Extractor: "adapter:github", QualityScore: 20, CharLen: 500},
		{Extractor: "trafilatura:precision", QualityScore: 90, CharLen: 2000},
	}
	best, ok := selectBest(candidates, tune, 100, StrategyBalanced)
	assert.True(t, ok)
	assert.Equal(t, "adapter:github", best.Extractor)
}

func TestSelectBestFallsBackToGeneralWhenAdapterBelowBar(t *testing.T) {
	tune := tuningFor(StrategyBalanced)
	candidates := []Candidate{
		{Extractor: "adapter:github", QualityScore: 2, CharLen: 500},
		{Extractor: "trafilatura:precision", QualityScore: 90, CharLen: 2000},
	}
	best, ok := selectBest(candidates, tune, 100, StrategyBalanced)
	assert.True(t, ok)
	assert.Equal(t, "trafilatura:precision", best.Extractor)
}

func TestSelectBestSpeedStrategyFallsBackToTopRanked(t *testing.T) {
	tune := tuningFor(StrategySpeed)
	candidates := []Candidate{
		{Extractor: "trafilatura:fast", QualityScore: 1, CharLen: 10},
	}
	best, ok := selectBest(candidates, tune, 10000, StrategySpeed)
	assert.True(t, ok)
	assert.Equal(t, "trafilatura:fast", best.Extractor)
}

func TestSelectBestReturnsFalseWhenNothingQualifiesNonSpeed(t *testing.T) {
	tune := tuningFor(StrategyQuality)
	candidates := []Candidate{
		{Extractor: "trafilatura:precision", QualityScore: 1, CharLen: 10},
	}
	_, ok := selectBest(candidates, tune, 10000, StrategyQuality)
	assert.False(t, ok)
}

func TestExtractEmptyHTMLReturnsNoneTerminalRecord(t *testing.T) {
	c := Extract("<html><body></body></html>", "https://example.com/a", FormatText, StrategyBalanced, 100)
	assert.Equal(t, "none", c.Extractor)
}

func TestExtractFavorsArticleBody(t *testing.T) {
	html := `<html><head><title>Example Article</title></head><body>
		<nav>Home About Contact</nav>
		<article>
			<h1>Example Article</h1>
			<p>This is the first paragraph of a genuinely substantial article about Go concurrency patterns and how goroutines communicate over channels in practice.</p>
			<p>This is the second paragraph, continuing the discussion with more specific detail about buffered versus unbuffered channels and select statements.</p>
			<p>A third paragraph closes out the piece with a summary of best practices for structuring concurrent Go programs at scale.</p>
		</article>
		<footer>Copyright 2024</footer>
	</body></html>`
	c := Extract(html, "https://example.com/article", FormatText, StrategyBalanced, 50)
	assert.Contains(t, c.Content, "goroutines")
	assert.NotContains(t, c.Content, "Home About Contact")
}

func TestDiscourseTitleSliceDropsBareIntegersAndPagers(t *testing.T) {
	html := `<h1>Topic Title</h1>
		<p>First reply content here.</p>
		<p>3</p>
		<p>Next</p>
		<p>Related Topics</p>
		<p>Some other topic link</p>`
	out := discourseTitleSlice(html)
	assert.Contains(t, out, "First reply content here.")
	assert.NotContains(t, out, "Related Topics")
	lines := strings.Split(out, "\n")
	assert.NotContains(t, lines, "3")
	assert.NotContains(t, lines, "Next")
}
