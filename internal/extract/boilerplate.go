package extract

import (
	"bytes"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
	trafilatura "github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// boilerplateMode names one pass of the general-purpose extractor.
type boilerplateMode string

const (
	modePrecision boilerplateMode = "precision"
	modeRecall    boilerplateMode = "recall"
	modeFast      boilerplateMode = "fast"
)

// runTrafilatura extracts main content from htmlStr with trafilatura tuned
// for the given mode, rendering the pruned DOM to markdown when asMarkdown
// is set so adapter links survive.
func runTrafilatura(htmlStr, pageURL string, mode boilerplateMode, asMarkdown bool) (string, bool) {
	opts := trafilatura.Options{
		EnableFallback:  mode != modeFast,
		ExcludeComments: true,
	}
	if u, err := url.Parse(pageURL); err == nil {
		opts.OriginalURL = u
	}
	switch mode {
	case modePrecision, modeFast:
		opts.Focus = trafilatura.FavorPrecision
	case modeRecall:
		opts.Focus = trafilatura.FavorRecall
	}

	result, err := trafilatura.Extract(strings.NewReader(htmlStr), opts)
	if err != nil || result == nil {
		return "", false
	}

	text := strings.TrimSpace(result.ContentText)
	if asMarkdown && result.ContentNode != nil {
		var buf bytes.Buffer
		if renderErr := html.Render(&buf, result.ContentNode); renderErr == nil {
			if md, mdErr := htmltomarkdown.ConvertString(buf.String()); mdErr == nil && strings.TrimSpace(md) != "" {
				text = strings.TrimSpace(md)
			}
		}
	}
	if text == "" {
		return "", false
	}
	return text, true
}

// runBaselineReadability runs go-readability's generic extractor, used as
// the baseline/alternate pass and by adapters that prefer a simpler parse.
func runBaselineReadability(htmlStr, pageURL string, asMarkdown bool) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(htmlStr), u)
	if err != nil {
		return "", false
	}
	if asMarkdown && strings.TrimSpace(article.Content) != "" {
		if md, mdErr := htmltomarkdown.ConvertString(article.Content); mdErr == nil && strings.TrimSpace(md) != "" {
			return strings.TrimSpace(md), true
		}
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", false
	}
	return text, true
}
