// Package scrapers queries search engine HTML endpoints and parses results.
package scrapers

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_websearch/internal/httpclient"
	"github.com/anatolykoptev/go_websearch/internal/metrics"
)

// Result is one parsed search hit.
type Result struct {
	Title       string
	URL         string
	Description string
}

// braveLimiter and duckduckgoLimiter throttle outbound scrape requests so a
// burst of concurrent web_search calls doesn't trip the engines' own abuse
// detection.
var (
	braveLimiter      = rate.NewLimiter(rate.Every(500*time.Millisecond), 2)
	duckduckgoLimiter = rate.NewLimiter(rate.Every(500*time.Millisecond), 2)
)

// SearchBrave queries Brave's HTML search endpoint and parses up to
// maxResults hits, rejecting any result whose href routes through
// cfWorkerURL (a sign of a self-referential or broken link).
func SearchBrave(ctx context.Context, client *httpclient.Client, query string, maxResults int, cfWorkerURL string) ([]Result, error) {
	metrics.IncrBraveSearches()
	if err := braveLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	target := "https://search.brave.com/search?q=" + url.QueryEscape(query)
	resp, err := client.Get(ctx, target, nil, 15*time.Second, 2)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Text()))
	if err != nil {
		return nil, err
	}

	sel := doc.Find(`[data-type="web"]`)
	if sel.Length() == 0 {
		sel = doc.Find(".snippet")
	}

	var out []Result
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= maxResults {
			return false
		}
		a := s.Find("a[href]").First()
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(href, "http") {
			return true
		}
		if cfWorkerURL != "" && strings.Contains(href, cfWorkerURL) {
			return true
		}
		title := firstNonEmptyText(s, ".snippet-title, .title")
		desc := firstNonEmptyText(s, ".snippet-description, .snippet-content, .description")
		out = append(out, Result{Title: title, URL: href, Description: desc})
		return true
	})
	return out, nil
}

// SearchDuckDuckGo queries the DuckDuckGo HTML-lite endpoint and parses up
// to maxResults hits.
func SearchDuckDuckGo(ctx context.Context, client *httpclient.Client, query string, maxResults int) ([]Result, error) {
	metrics.IncrDuckDuckGoSearches()
	if err := duckduckgoLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	target := "https://duckduckgo.com/html/?q=" + url.QueryEscape(query)
	resp, err := client.Get(ctx, target, nil, 15*time.Second, 2)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Text()))
	if err != nil {
		return nil, err
	}

	var out []Result
	doc.Find(".results .result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= maxResults {
			return false
		}
		a := s.Find("a.result__a").First()
		href, _ := a.Attr("href")
		href = normalizeDuckDuckGoHref(strings.TrimSpace(href))
		if href == "" {
			return true
		}
		title := strings.TrimSpace(a.Text())
		desc := firstNonEmptyText(s, ".result__snippet, .result__body")
		out = append(out, Result{Title: title, URL: href, Description: desc})
		return true
	})
	return out, nil
}

func firstNonEmptyText(s *goquery.Selection, selector string) string {
	found := s.Find(selector).First()
	return strings.TrimSpace(found.Text())
}

// normalizeDuckDuckGoHref upgrades protocol-relative and path-only hrefs,
// then unwraps DuckDuckGo's own `/l/?uddg=` redirector.
func normalizeDuckDuckGoHref(href string) string {
	if href == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(href, "//"):
		href = "https:" + href
	case strings.HasPrefix(href, "/"):
		href = "https://duckduckgo.com" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if real := u.Query().Get("uddg"); real != "" {
			if decoded, err := url.QueryUnescape(real); err == nil {
				return decoded
			}
			return real
		}
	}
	return href
}
