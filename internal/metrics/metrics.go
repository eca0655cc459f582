// Package metrics tracks operational counters exposed at the companion
// /metrics HTTP endpoint.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// CacheStatser reports cache hit/miss counts; satisfied by *cache.Cache
// without metrics importing cache (avoids a dependency cycle with mcpserver,
// which wires both).
type CacheStatser interface {
	Stats() (hits, misses int64)
}

var counters struct {
	SearchRequests       atomic.Int64
	FetchRequests        atomic.Int64
	FetchErrors          atomic.Int64
	LLMCalls             atomic.Int64
	LLMErrors            atomic.Int64
	BrowserFallbacks     atomic.Int64
	ZhihuAdapterHits     atomic.Int64
	DiscourseAdapterHits atomic.Int64
	BraveSearches        atomic.Int64
	DuckDuckGoSearches   atomic.Int64
}

func IncrSearchRequests()       { counters.SearchRequests.Add(1) }
func IncrFetchRequests()        { counters.FetchRequests.Add(1) }
func IncrFetchErrors()          { counters.FetchErrors.Add(1) }
func IncrLLMCalls()             { counters.LLMCalls.Add(1) }
func IncrLLMErrors()            { counters.LLMErrors.Add(1) }
func IncrBrowserFallbacks()     { counters.BrowserFallbacks.Add(1) }
func IncrZhihuAdapterHits()     { counters.ZhihuAdapterHits.Add(1) }
func IncrDiscourseAdapterHits() { counters.DiscourseAdapterHits.Add(1) }
func IncrBraveSearches()        { counters.BraveSearches.Add(1) }
func IncrDuckDuckGoSearches()   { counters.DuckDuckGoSearches.Add(1) }

// Snapshot returns all counters as a flat map, plus cache hit/miss counts
// when cacheStats is non-nil.
func Snapshot(cacheStats CacheStatser) map[string]int64 {
	out := map[string]int64{
		"search_requests":        counters.SearchRequests.Load(),
		"fetch_requests":         counters.FetchRequests.Load(),
		"fetch_errors":           counters.FetchErrors.Load(),
		"llm_calls":              counters.LLMCalls.Load(),
		"llm_errors":             counters.LLMErrors.Load(),
		"browser_fallbacks":      counters.BrowserFallbacks.Load(),
		"zhihu_adapter_hits":     counters.ZhihuAdapterHits.Load(),
		"discourse_adapter_hits": counters.DiscourseAdapterHits.Load(),
		"brave_searches":         counters.BraveSearches.Load(),
		"duckduckgo_searches":    counters.DuckDuckGoSearches.Load(),
	}
	if cacheStats != nil {
		hits, misses := cacheStats.Stats()
		out["cache_hits"] = hits
		out["cache_misses"] = misses
	}
	return out
}

var snapshotKeyOrder = []string{
	"search_requests", "fetch_requests", "fetch_errors",
	"llm_calls", "llm_errors",
	"browser_fallbacks", "zhihu_adapter_hits", "discourse_adapter_hits",
	"brave_searches", "duckduckgo_searches",
	"cache_hits", "cache_misses",
}

// Format renders Snapshot as `key value` lines, one per line, matching the
// reference's plain-text /metrics format.
func Format(cacheStats CacheStatser) string {
	snap := Snapshot(cacheStats)
	var sb strings.Builder
	for _, k := range snapshotKeyOrder {
		if v, ok := snap[k]; ok {
			fmt.Fprintf(&sb, "%s %d\n", k, v)
		}
	}
	return sb.String()
}

// TrackOperation logs a warning if fn takes longer than 5s to run.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
