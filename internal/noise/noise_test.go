package noise

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRules(t *testing.T, content string, filename string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noise_en.txt"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noise_zh.txt"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))
	SetRulesDir(dir)
	ResetCacheForTest()
	t.Cleanup(func() {
		SetRulesDir("")
		ResetCacheForTest()
	})
}

func TestBareLineSubstringRule(t *testing.T) {
	withRules(t, "Sign up for our newsletter\n", "noise_en.txt")
	out := CleanExtractedText("Article intro.\nSign up for our newsletter!\nArticle body.")
	assert.Contains(t, out, "Article intro.")
	assert.Contains(t, out, "Article body.")
	assert.NotContains(t, out, "newsletter")
}

func TestRegexRule(t *testing.T) {
	withRules(t, "re:^\\s*copyright \\d{4}.*$\n", "noise_en.txt")
	out := CleanExtractedText("Real content line.\nCopyright 2024 Example Corp. All rights reserved.")
	assert.Contains(t, out, "Real content line.")
	assert.NotContains(t, out, "Copyright")
}

func TestSubstringRuleIgnoresLongLines(t *testing.T) {
	withRules(t, "sub:ad\n", "noise_en.txt")
	long := "This is a genuinely long sentence about advertising strategy in the modern economy."
	out := CleanExtractedText(long)
	assert.Contains(t, out, "advertising")
}

func TestCleanExtractedTextCollapsesBlankRuns(t *testing.T) {
	out := CleanExtractedText("a\n\n\n\n\nb")
	assert.Equal(t, "a\n\nb", out)
}

func TestCleanExtractedMarkdownSkipsFencedCode(t *testing.T) {
	withRules(t, "sub:noise\n", "noise_en.txt")
	md := "para one\n```\nnoise inside code must survive\n```\npara two"
	out := CleanExtractedMarkdown(md)
	assert.Contains(t, out, "noise inside code must survive")
}

func TestCleanExtractedMarkdownStripsHeadingNoise(t *testing.T) {
	withRules(t, "sub:advertisement\n", "noise_en.txt")
	md := "# Advertisement #\n\nReal content here."
	out := CleanExtractedMarkdown(md)
	assert.NotContains(t, out, "Advertisement")
	assert.Contains(t, out, "Real content here.")
}

func TestNoiseCleaningIsIdempotent(t *testing.T) {
	withRules(t, "sub:subscribe now\nre:^\\s*advert.*$\n", "noise_en.txt")
	input := "Keep reading.\nSubscribe now for updates!\nAdvert: buy this.\nMore content.\n\n\n\nTrailing."
	once := CleanExtractedText(input)
	twice := CleanExtractedText(once)
	assert.Equal(t, once, twice)
}

func TestFallbackRulesUsedWhenFilesMissing(t *testing.T) {
	dir := t.TempDir()
	SetRulesDir(dir)
	ResetCacheForTest()
	t.Cleanup(func() {
		SetRulesDir("")
		ResetCacheForTest()
	})
	out := CleanExtractedText("Real article content.\nPlease complete the CAPTCHA verification.")
	assert.Contains(t, out, "Real article content.")
	assert.NotContains(t, out, "CAPTCHA")
}
