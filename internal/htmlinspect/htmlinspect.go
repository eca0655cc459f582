// Package htmlinspect detects challenge/blocked pages and extracts plain
// text and metadata from raw HTML.
package htmlinspect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var challengeHints = []string{
	"just a moment",
	"checking your browser",
	"attention required",
	"cf-browser-verification",
}

// LooksLikeChallenge reports whether text looks like a Cloudflare-style
// interstitial challenge page.
func LooksLikeChallenge(text string) bool {
	lower := strings.ToLower(text)
	for _, h := range challengeHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return strings.Contains(lower, "cloudflare") && strings.Contains(lower, "ray id")
}

var blockedHintsEN = []string{
	"captcha", "robot check", "access denied", "verify you are human", "unusual traffic",
}

var blockedHintsZH = []string{
	"访问异常", "安全验证", "滑动验证", "验证码", "请完成验证", "检测到异常", "系统检测到",
	"访问过于频繁", "请稍后再试", "请先登录", "登录后查看更多", "请登录后继续访问",
	"马上登录", "立即登录", "登录即可",
}

// LooksLikeBlocked reports whether text (HTML or plain) indicates a
// challenge page, CAPTCHA, access-denied or login wall.
func LooksLikeBlocked(text string) bool {
	if LooksLikeChallenge(text) {
		return true
	}
	plain := text
	if looksLikeMarkup(text) {
		plain = HTMLToText(text)
	}
	lower := strings.ToLower(plain)
	for _, h := range blockedHintsEN {
		if strings.Contains(lower, h) {
			return true
		}
	}
	for _, h := range blockedHintsZH {
		if strings.Contains(plain, h) {
			return true
		}
	}
	return false
}

func looksLikeMarkup(s string) bool {
	return strings.Contains(s, "<html") || strings.Contains(s, "<body") || strings.Contains(s, "<div") || strings.Contains(s, "<p")
}

var stripTags = map[string]bool{
	"script": true, "style": true, "header": true, "footer": true,
	"nav": true, "aside": true, "form": true, "button": true, "svg": true,
}

// HTMLToText drops non-content tags and returns the remaining visible text
// of <body> (or of the whole document when that yields nothing), split at
// the newlines present in the source, each line trimmed and blank lines
// dropped. Text of adjacent elements with no whitespace between them ends up
// on one line.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	for tag := range stripTags {
		doc.Find(tag).Remove()
	}
	var lines []string
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		text := body.Text()
		for _, line := range strings.Split(text, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
	})
	if len(lines) == 0 {
		// no <body> — parse whatever we have as a fragment.
		text := doc.Text()
		for _, line := range strings.Split(text, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// Link is an anchor captured while extracting metadata.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Metadata is the result of ExtractMetadata.
type Metadata struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	CanonicalURL  string `json:"canonical_url"`
	Links         []Link `json:"links"`
	Truncated     bool   `json:"truncated"`
}

// ExtractMetadata reads title/description/canonical URL and up to 50 anchors
// out of html. maxChars bounds the serialized size of Links (approximated
// as the sum of per-link text+href length); if exceeded, Links is truncated
// proportionally and Truncated is set.
func ExtractMetadata(html string, maxChars int) Metadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Metadata{}
	}
	md := Metadata{}

	md.Title = firstNonEmpty(
		attrOf(doc, `meta[property="og:title"]`, "content"),
		attrOf(doc, `meta[name="twitter:title"]`, "content"),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	md.Description = firstNonEmpty(
		attrOf(doc, `meta[property="og:description"]`, "content"),
		attrOf(doc, `meta[name="twitter:description"]`, "content"),
		attrOf(doc, `meta[name="description"]`, "content"),
	)
	md.CanonicalURL, _ = doc.Find(`link[rel="canonical"]`).First().Attr("href")

	var links []Link
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(links) >= 50 {
			return false
		}
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return true
		}
		links = append(links, Link{Text: strings.TrimSpace(s.Text()), Href: href})
		return true
	})

	if maxChars > 0 && len(links) > 0 {
		total := 0
		for _, l := range links {
			total += len(l.Text) + len(l.Href)
		}
		if total > maxChars {
			avg := total / len(links)
			if avg < 1 {
				avg = 1
			}
			keep := maxChars / avg
			if keep < 1 {
				keep = 1
			}
			if keep < len(links) {
				links = links[:keep]
				md.Truncated = true
			}
		}
	}
	md.Links = links
	return md
}

func attrOf(doc *goquery.Document, selector, attr string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
