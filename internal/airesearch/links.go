package airesearch

import (
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_websearch/internal/urlnorm"
)

// Link is a source URL surfaced from an LLM's reply.
type Link struct {
	Title       string
	URL         string
	Description string
}

var browsePageRe = regexp.MustCompile(`(?i)browse_page\s*\{\s*"url"\s*:\s*"((?:[^"\\]|\\.)+)"(?:\s*,\s*"instructions"\s*:\s*"((?:[^"\\]|\\.)*)")?\s*\}`)

// ExtractBrowsePageLinks finds Grok-style `browse_page {"url":...}` tool
// trace fragments across content and extra (typically the reasoning
// stream), deduped by normalized URL.
func ExtractBrowsePageLinks(content, extra string) []Link {
	source := content
	if extra != "" {
		source = content + "\n" + extra
	}
	if source == "" {
		return nil
	}

	var links []Link
	seen := map[string]bool{}
	for _, m := range browsePageRe.FindAllStringSubmatch(source, -1) {
		raw := unescapeJSONString(strings.TrimSpace(m[1]))
		instruction := unescapeJSONString(strings.TrimSpace(m[2]))
		u := urlnorm.UnwrapRedirect(raw)
		if u == "" || !strings.HasPrefix(u, "http") {
			continue
		}
		key := dedupKey(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		title := hostOf(u)
		if instruction != "" {
			trimmed := instruction
			if r := []rune(trimmed); len(r) > 80 {
				trimmed = string(r[:80])
			}
			title = "browse_page: " + strings.TrimSpace(trimmed)
		}
		links = append(links, Link{Title: title, URL: u})
	}
	return links
}

func unescapeJSONString(s string) string {
	return strings.NewReplacer(`\/`, "/", `\"`, `"`).Replace(s)
}

func dedupKey(u string) string {
	if k := urlnorm.NormalizeForDedup(u); k != "" {
		return k
	}
	return u
}

func hostOf(u string) string {
	parts := strings.SplitN(u, "//", 2)
	if len(parts) != 2 {
		return u
	}
	return strings.SplitN(parts[1], "/", 2)[0]
}

var (
	markdownLinkRe  = regexp.MustCompile(`\[([^\]]+)\]\(((?:https?://|//|www\.)[^)\s]+)\)`)
	bareURLRe       = regexp.MustCompile(`(?:https?://|//|www\.)[^\s<>"'\)\]，。、；：）】}]+`)
	jsonURLFieldRe  = regexp.MustCompile(`"url"\s*:\s*"([^"]+)"`)
	trailingJunkRe  = regexp.MustCompile(`[\s\)\]\}>,，。、；：]+$`)
	trailingPunctRe = regexp.MustCompile(`[.,;:!?]+$`)

	summaryHeadingRes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)###\s*详细总结分析(.*)`),
		regexp.MustCompile(`(?s)###\s*总结分析(.*)`),
		regexp.MustCompile(`(?s)##\s*总结(.*)`),
		regexp.MustCompile(`(?s)####\s*结论(.*)`),
	}
)

// ParseMarkdownLinks scans content (and extra) in three passes — markdown
// links, bare URLs, and JSON "url" fields — collecting deduped Links, then
// derives the summary from the first matching ATX heading onward (or the
// raw content if none match), scrubbed via CleanAITags.
func ParseMarkdownLinks(content, extra string) ([]Link, string) {
	source := content
	if extra != "" {
		source = content + "\n" + extra
	}

	var links []Link
	seen := map[string]bool{}
	addLink := func(title, raw string) {
		u := normalizeCandidate(raw)
		if !strings.HasPrefix(u, "http") || len(u) <= 10 {
			return
		}
		key := dedupKey(u)
		if seen[key] {
			return
		}
		seen[key] = true
		if title == "" {
			title = hostOf(u)
		}
		links = append(links, Link{Title: title, URL: u})
	}

	for _, m := range markdownLinkRe.FindAllStringSubmatch(source, -1) {
		addLink(strings.TrimSpace(m[1]), m[2])
	}

	withoutMD := markdownLinkRe.ReplaceAllString(source, "")
	for _, m := range bareURLRe.FindAllString(withoutMD, -1) {
		addLink("", m)
	}
	for _, m := range jsonURLFieldRe.FindAllStringSubmatch(source, -1) {
		addLink("", m[1])
	}

	summarySource := strings.TrimSpace(content)
	if summarySource == "" {
		summarySource = source
	}
	summary := ""
	for _, re := range summaryHeadingRes {
		if m := re.FindString(summarySource); m != "" {
			summary = strings.TrimSpace(m)
			break
		}
	}
	if summary == "" {
		summary = summarySource
	}
	summary = CleanAITags(summary)

	return links, summary
}

func normalizeCandidate(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = trailingJunkRe.ReplaceAllString(u, "")
	u = trailingPunctRe.ReplaceAllString(u, "")
	switch {
	case strings.HasPrefix(u, "//"):
		u = "https:" + u
	case strings.HasPrefix(u, "www."):
		u = "https://" + u
	}
	return strings.TrimSpace(urlnorm.UnwrapRedirect(u))
}

var (
	thinkBlockRe  = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkTagRe    = regexp.MustCompile(`(?i)</?think>`)
	grokRenderRe  = regexp.MustCompile(`(?s)<grok:render[^>]*>.*?</grok:render>`)
	nsTagPairRe   = regexp.MustCompile(`(?s)<[a-z_]+:[^>]+>.*?</[a-z_]+:[^>]+>`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
)

// CleanAITags strips <think>, <grok:render>, and other namespaced tool-trace
// tags from an LLM reply, collapsing runs of blank lines.
func CleanAITags(text string) string {
	text = thinkBlockRe.ReplaceAllString(text, "")
	text = thinkTagRe.ReplaceAllString(text, "")
	text = grokRenderRe.ReplaceAllString(text, "")
	text = nsTagPairRe.ReplaceAllString(text, "")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var (
	urlParenRe     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)]+)\)`)
	angleURLRe     = regexp.MustCompile(`<https?://[^>]+>`)
	plainURLRe     = regexp.MustCompile(`https?://[^\s<>"'\)\]，。、；：）】}]+`)
	emptyParensRe  = regexp.MustCompile(`\(\s*\)`)
	emptyBracketRe = regexp.MustCompile(`\[\s*\]`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]{2,}`)
	bulletOnlyRe   = regexp.MustCompile(`^\s*[-*]\s*$`)
	sourcesHeadRe  = regexp.MustCompile(`(?i)^\s*(参考来源|参考资料|参考链接|Sources|References)\b.*[:：]\s*$`)
)

// StripURLs removes every URL from text: markdown links become their label,
// bare/angle-bracket URLs are dropped, empty `()`/`[]` and extra spaces are
// collapsed, and the text is truncated before a References/Sources heading.
func StripURLs(text string) string {
	if text == "" {
		return ""
	}
	text = urlParenRe.ReplaceAllString(text, "$1")
	text = angleURLRe.ReplaceAllString(text, "")
	text = plainURLRe.ReplaceAllString(text, "")
	text = emptyParensRe.ReplaceAllString(text, "")
	text = emptyBracketRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if sourcesHeadRe.MatchString(line) {
			lines = lines[:i]
			break
		}
	}
	var kept []string
	for _, line := range lines {
		if bulletOnlyRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.Join(kept, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
