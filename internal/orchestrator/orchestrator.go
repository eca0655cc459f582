// Package orchestrator runs the AI research bridge and search scrapers
// concurrently, merges their links, and enforces result and per-domain caps.
package orchestrator

import (
	"context"
	"strings"
	"sync"

	"github.com/anatolykoptev/go_websearch/internal/airesearch"
	"github.com/anatolykoptev/go_websearch/internal/httpclient"
	"github.com/anatolykoptev/go_websearch/internal/scrapers"
	"github.com/anatolykoptev/go_websearch/internal/urlnorm"
)

// Link is a search result surfaced to the MCP client.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// BrowserDiagnostics describes how the browser-backed search engines were
// actually used for one call, nested under Diagnostics.Browser.
type BrowserDiagnostics struct {
	FallbackUsed bool   `json:"fallback_used"`
	BraveError   string `json:"brave_error,omitempty"`
	BraveResults int    `json:"brave_results"`
	DDGResults   int    `json:"ddg_results"`
}

// Diagnostics describes how a web_search call was actually served.
type Diagnostics struct {
	SearchBackend string             `json:"search_backend"`
	Browser       BrowserDiagnostics `json:"browser"`
	IsSiteQuery   bool               `json:"is_site_query"`
	LLMEnabled    bool               `json:"llm_enabled"`
	AIError       string             `json:"ai_error,omitempty"`
}

// Result is the full outcome of WebSearch.
type Result struct {
	Success     bool        `json:"success"`
	Query       string      `json:"query"`
	Links       []Link      `json:"links"`
	AISummary   string      `json:"ai_summary,omitempty"`
	AIError     string      `json:"ai_error,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Options configures one WebSearch call.
type Options struct {
	Client          *httpclient.Client
	CFWorkerURL     string
	ResultLimit     int
	MaxPerDomain    int
	LLMConfigured   bool
	LLMBaseURL      string
	LLMAPIKey       string
	LLMModel        string
}

type browserOutcome struct {
	results      []scrapers.Result
	backend      string
	fallbackUsed bool
	braveCount   int
	ddgCount     int
	err          string
}

type aiOutcome struct {
	priorityLinks []airesearch.Link
	otherLinks    []airesearch.Link
	summary       string
	err           string
}

// WebSearch runs the browser-backed scrapers and (if configured) the AI
// research bridge concurrently, merges their links per the site-query rule,
// and returns at most opts.ResultLimit deduplicated, domain-capped results.
func WebSearch(ctx context.Context, query string, opts Options) Result {
	isSite := urlnorm.IsSiteQuery(query)
	internalLimit := opts.ResultLimit * 2
	if internalLimit < 20 {
		internalLimit = 20
	}

	var wg sync.WaitGroup
	var browser browserOutcome
	var ai aiOutcome

	wg.Add(1)
	go func() {
		defer wg.Done()
		browser = runBrowserSearch(ctx, opts.Client, query, internalLimit, opts.CFWorkerURL)
	}()

	if opts.LLMConfigured {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ai = runAISearch(ctx, opts.Client, query, opts.LLMBaseURL, opts.LLMAPIKey, opts.LLMModel)
		}()
	}

	wg.Wait()

	merged := mergeLinks(ai.priorityLinks, ai.otherLinks, browser.results, isSite)
	links := dedupAndCap(merged, opts.ResultLimit, opts.MaxPerDomain, isSite)

	return Result{
		Success:   true,
		Query:     query,
		Links:     links,
		AISummary: ai.summary,
		AIError:   ai.err,
		Diagnostics: Diagnostics{
			SearchBackend: browser.backend,
			Browser: BrowserDiagnostics{
				FallbackUsed: browser.fallbackUsed,
				BraveError:   browser.err,
				BraveResults: browser.braveCount,
				DDGResults:   browser.ddgCount,
			},
			IsSiteQuery: isSite,
			LLMEnabled:  opts.LLMConfigured,
			AIError:     ai.err,
		},
	}
}

func runBrowserSearch(ctx context.Context, client *httpclient.Client, query string, internalLimit int, cfWorkerURL string) browserOutcome {
	out := browserOutcome{backend: "none"}

	brave, err := scrapers.SearchBrave(ctx, client, query, internalLimit, cfWorkerURL)
	if err == nil && len(brave) > 0 {
		out.backend = "brave"
		out.braveCount = len(brave)
		out.results = brave
		return out
	}
	if err != nil {
		out.err = err.Error()
	}
	out.fallbackUsed = true

	ddg, ddgErr := scrapers.SearchDuckDuckGo(ctx, client, query, internalLimit)
	if ddgErr != nil {
		if out.err == "" {
			out.err = ddgErr.Error()
		}
		return out
	}
	out.backend = "ddg"
	out.ddgCount = len(ddg)
	out.results = ddg
	return out
}

func runAISearch(ctx context.Context, client *httpclient.Client, query, baseURL, apiKey, model string) aiOutcome {
	prompt := airesearch.ResearchPrompt(query)
	content, reasoning, err := airesearch.CallLLM(ctx, client, baseURL, apiKey, model, prompt)
	if err != nil {
		return aiOutcome{err: err.Error()}
	}

	priority := airesearch.ExtractBrowsePageLinks(content, reasoning)
	all, summary := airesearch.ParseMarkdownLinks(content, reasoning)

	priorityKeys := make(map[string]bool, len(priority))
	for _, l := range priority {
		priorityKeys[dedupKey(l.URL)] = true
	}
	var other []airesearch.Link
	for _, l := range all {
		if !priorityKeys[dedupKey(l.URL)] {
			other = append(other, l)
		}
	}

	return aiOutcome{
		priorityLinks: priority,
		otherLinks:    other,
		summary:       airesearch.StripURLs(summary),
	}
}

func dedupKey(u string) string {
	if k := urlnorm.NormalizeForDedup(u); k != "" {
		return k
	}
	return u
}

// mergeLinks orders AI and browser links per the site-query rule: for
// site-queries, priority ++ browser ++ other; otherwise priority ++ other
// ++ browser.
func mergeLinks(priority, other []airesearch.Link, browser []scrapers.Result, isSite bool) []Link {
	var out []Link
	for _, l := range priority {
		out = append(out, Link{Title: l.Title, URL: l.URL})
	}
	appendBrowser := func() {
		for _, r := range browser {
			out = append(out, Link{Title: r.Title, URL: r.URL})
		}
	}
	appendOther := func() {
		for _, l := range other {
			out = append(out, Link{Title: l.Title, URL: l.URL})
		}
	}
	if isSite {
		appendBrowser()
		appendOther()
	} else {
		appendOther()
		appendBrowser()
	}
	return out
}

// dedupAndCap unwraps/normalizes each URL, keeps first-seen only, enforces a
// per-domain cap (skipped for site-queries), and stops at limit.
func dedupAndCap(links []Link, limit, maxPerDomain int, isSite bool) []Link {
	seen := map[string]bool{}
	domainCount := map[string]int{}
	var out []Link
	for _, l := range links {
		if limit > 0 && len(out) >= limit {
			break
		}
		u := urlnorm.UnwrapRedirect(l.URL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		key := dedupKey(u)
		if seen[key] {
			continue
		}
		if maxPerDomain > 0 && !isSite {
			host := urlnorm.Hostname(u)
			if domainCount[host] >= maxPerDomain {
				continue
			}
			domainCount[host]++
		}
		seen[key] = true
		out = append(out, Link{Title: l.Title, URL: u})
	}
	return out
}
