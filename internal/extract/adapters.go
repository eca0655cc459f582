package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// adapter produces zero or more raw (unclean) candidate strings tagged
// "adapter:<name>" for a host-matched page.
type adapter struct {
	name    string
	matches func(host, path string) bool
	run     func(doc *goquery.Document, htmlStr, pageURL string, asMarkdown bool) []rawCandidate
}

type rawCandidate struct {
	content   string
	extractor string
}

var csdnWidgetClasses = []string{
	"recommend-box", "toolbar-container", "csdn-side-toolbar", "tool-box",
	"comment-box", "hide-article-box", "recommend-item-box", "kind_people",
	"position-sticky", "more-toolbox", "operating", "write-vote-box",
}

var adapterList = []adapter{
	{
		name: "csdn",
		matches: func(host, _ string) bool { return strings.HasSuffix(host, "csdn.net") },
		run: func(doc *goquery.Document, htmlStr, pageURL string, asMarkdown bool) []rawCandidate {
			root := doc.Find("#content_views").First()
			if root.Length() == 0 {
				root = doc.Find("article").First()
			}
			if root.Length() == 0 {
				return nil
			}
			root.Find("script, style, header, footer, nav, aside").Remove()
			for _, cls := range csdnWidgetClasses {
				root.Find("." + cls).Remove()
			}
			title := strings.TrimSpace(doc.Find("title").First().Text())
			pruned, err := root.Html()
			if err != nil {
				return nil
			}
			full := "<article>" + pruned + "</article>"
			if title != "" {
				full = "<h1>" + title + "</h1>" + full
			}
			if text, ok := runTrafilatura(full, pageURL, modePrecision, asMarkdown); ok {
				return []rawCandidate{{content: text, extractor: "adapter:csdn"}}
			}
			return nil
		},
	},
	{
		name: "github",
		matches: func(host, _ string) bool { return strings.HasSuffix(host, "github.com") },
		run: func(doc *goquery.Document, htmlStr, pageURL string, asMarkdown bool) []rawCandidate {
			root := doc.Find("#readme article.markdown-body").First()
			if root.Length() == 0 {
				root = doc.Find("article.markdown-body").First()
			}
			if root.Length() == 0 {
				return nil
			}
			root.Find("svg, button, summary, details").Remove()
			root.Find("a.anchor").Remove()
			ogTitle, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
			ogDesc, _ := doc.Find(`meta[property="og:description"]`).First().Attr("content")
			pruned, err := root.Html()
			if err != nil {
				return nil
			}
			var b strings.Builder
			if ogTitle != "" {
				b.WriteString("<h1>" + ogTitle + "</h1>")
			}
			if ogDesc != "" {
				b.WriteString("<p>" + ogDesc + "</p>")
			}
			b.WriteString("<article>" + pruned + "</article>")
			if text, ok := runTrafilatura(b.String(), pageURL, modePrecision, true); ok {
				return []rawCandidate{{content: text, extractor: "adapter:github"}}
			}
			return nil
		},
	},
	{
		name: "bangumi",
		matches: func(host, _ string) bool {
			return strings.HasSuffix(host, "bgm.tv") || strings.HasSuffix(host, "bangumi.tv") || strings.HasSuffix(host, "chii.in")
		},
		run: func(doc *goquery.Document, htmlStr, pageURL string, asMarkdown bool) []rawCandidate {
			a := doc.Find("#columnA")
			b := doc.Find("#columnB")
			if a.Length() == 0 && b.Length() == 0 {
				return nil
			}
			var parts []string
			if h, err := a.Html(); err == nil {
				parts = append(parts, h)
			}
			if h, err := b.Html(); err == nil {
				parts = append(parts, h)
			}
			full := "<article>" + strings.Join(parts, "\n") + "</article>"
			if text, ok := runBaselineReadability(full, pageURL, asMarkdown); ok {
				return []rawCandidate{{content: text, extractor: "adapter:bangumi"}}
			}
			plain := stripToText(full)
			if plain != "" {
				return []rawCandidate{{content: plain, extractor: "adapter:bangumi"}}
			}
			return nil
		},
	},
	{
		name: "steamcommunity",
		matches: func(host, _ string) bool { return strings.HasSuffix(host, "steamcommunity.com") },
		run: func(doc *goquery.Document, htmlStr, pageURL string, asMarkdown bool) []rawCandidate {
			root := doc.Find("#responsive_page_template_content").First()
			if root.Length() == 0 {
				return nil
			}
			root.Find("#global_header, .responsive_menu_user_area, .responsive_header_links").Remove()
			pruned, err := root.Html()
			if err != nil {
				return nil
			}
			full := "<article>" + pruned + "</article>"
			if text, ok := runBaselineReadability(full, pageURL, asMarkdown); ok {
				return []rawCandidate{{content: text, extractor: "adapter:steamcommunity"}}
			}
			plain := stripToText(full)
			if plain != "" {
				return []rawCandidate{{content: plain, extractor: "adapter:steamcommunity"}}
			}
			return nil
		},
	},
	{
		name:    "discourse",
		matches: func(_, path string) bool { return strings.Contains(path, "/t/") },
		run: func(doc *goquery.Document, htmlStr, pageURL string, asMarkdown bool) []rawCandidate {
			posts := doc.Find(".cooked")
			if posts.Length() == 0 {
				return nil
			}
			var b strings.Builder
			posts.Each(func(_ int, s *goquery.Selection) {
				if h, err := s.Html(); err == nil {
					b.WriteString("<section>" + h + "</section>\n")
				}
			})
			var out []rawCandidate
			if text, ok := runTrafilatura("<article>"+b.String()+"</article>", pageURL, modePrecision, true); ok {
				out = append(out, rawCandidate{content: text, extractor: "adapter:discourse"})
			}
			if sliced := discourseTitleSlice(htmlStr); sliced != "" {
				out = append(out, rawCandidate{content: sliced, extractor: "adapter:discourse-sliced"})
			}
			return out
		},
	},
}

var (
	relatedTopicsRe = regexp.MustCompile(`(?i)related topics|suggested topics`)
	bareIntegerRe   = regexp.MustCompile(`^\s*\d+\s*$`)
	pagerRe         = regexp.MustCompile(`(?i)^\s*(prev|next|page \d+)\s*$`)
)

// discourseTitleSlice extracts plain text starting at the first <h1> (topic
// title) up to a related/suggested-topics marker, dropping bare integers
// (post-number badges) and pager fragments.
func discourseTitleSlice(htmlStr string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}
	full := stripToText(mustOuterHTML(doc.Selection))
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		if i := strings.Index(full, title); i >= 0 {
			full = full[i:]
		}
	}
	lines := strings.Split(full, "\n")
	start := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}
	var kept []string
	for _, l := range lines[start:] {
		t := strings.TrimSpace(l)
		if relatedTopicsRe.MatchString(t) {
			break
		}
		if t == "" || bareIntegerRe.MatchString(t) || pagerRe.MatchString(t) {
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, "\n")
}

func mustOuterHTML(s *goquery.Selection) string {
	h, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return h
}

func stripToText(htmlStr string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return strings.TrimSpace(doc.Text())
}

// adaptersFor returns the adapters whose host/path predicate matches.
func adaptersFor(host, path string) []adapter {
	var out []adapter
	for _, a := range adapterList {
		if a.matches(host, path) {
			out = append(out, a)
		}
	}
	return out
}
