// Package mcpserver registers the web_search and fetch tools on an MCP
// server and wires them to the orchestrator, fetcher, cache, and metrics.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_websearch/internal/cache"
	"github.com/anatolykoptev/go_websearch/internal/config"
	"github.com/anatolykoptev/go_websearch/internal/fetcher"
	"github.com/anatolykoptev/go_websearch/internal/httpclient"
	"github.com/anatolykoptev/go_websearch/internal/metrics"
	"github.com/anatolykoptev/go_websearch/internal/orchestrator"
)

// Deps bundles the shared services tool handlers need.
type Deps struct {
	Client *httpclient.Client
	Cfg    *config.Config
	Cache  *cache.Cache
}

// RegisterTools registers web_search and fetch on server.
func RegisterTools(server *mcp.Server, deps Deps) {
	registerWebSearch(server, deps)
	registerFetch(server, deps)
}

// WebSearchInput is the web_search tool's argument shape.
type WebSearchInput struct {
	Query string `json:"query" jsonschema:"Search query, e.g. a question, site: filter, or keyword phrase"`
}

func registerWebSearch(server *mcp.Server, deps Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "web_search",
		Description: "Search the web and return ranked result links, optionally enriched with an AI-generated research summary. Combines a browser-backed search engine with an LLM research pass when one is configured.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input WebSearchInput) (*mcp.CallToolResult, orchestrator.Result, error) {
		if input.Query == "" {
			return nil, orchestrator.Result{}, errors.New("query is required")
		}
		metrics.IncrSearchRequests()

		cacheKey := cache.Key("search", input.Query)
		if deps.Cache != nil {
			if data, ok := deps.Cache.Get(ctx, cacheKey); ok {
				var out orchestrator.Result
				if json.Unmarshal(data, &out) == nil {
					return nil, out, nil
				}
			}
		}

		cfg := deps.Cfg
		out := orchestrator.WebSearch(ctx, input.Query, orchestrator.Options{
			Client:        deps.Client,
			CFWorkerURL:   cfg.CFWorker,
			ResultLimit:   cfg.SearchResultLimit,
			MaxPerDomain:  cfg.SearchMaxPerDomain,
			LLMConfigured: cfg.LLMConfigured(),
			LLMBaseURL:    cfg.OpenAIBaseURL,
			LLMAPIKey:     cfg.OpenAIAPIKey,
			LLMModel:      cfg.OpenAIModel,
		})

		if deps.Cache != nil && out.Success {
			if data, err := json.Marshal(out); err == nil {
				deps.Cache.Set(ctx, cacheKey, data)
			}
		}
		return nil, out, nil
	})
}

// FetchInput is the fetch tool's argument shape.
type FetchInput struct {
	URL     string            `json:"url" jsonschema:"URL to fetch"`
	Headers map[string]string `json:"headers,omitempty" jsonschema:"Extra request headers to send"`
}

func registerFetch(server *mcp.Server, deps Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "fetch",
		Description: "Fetch a URL and return its content as clean markdown, falling back through site-specific adapters, boilerplate extraction, and a headless browser when the page blocks plain HTTP requests.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input FetchInput) (*mcp.CallToolResult, fetcher.Result, error) {
		if input.URL == "" {
			return nil, fetcher.Result{}, errors.New("url is required")
		}
		metrics.IncrFetchRequests()

		cacheKey := cache.Key("fetch", input.URL)
		if deps.Cache != nil && len(input.Headers) == 0 {
			if data, ok := deps.Cache.Get(ctx, cacheKey); ok {
				var out fetcher.Result
				if json.Unmarshal(data, &out) == nil {
					return nil, out, nil
				}
			}
		}

		out := fetcher.Fetch(ctx, deps.Client, deps.Cfg, input.URL, fetcher.ModeMarkdown, input.Headers)
		if !out.Success {
			metrics.IncrFetchErrors()
		}
		if out.ViaPlaywright {
			metrics.IncrBrowserFallbacks()
		}
		logFetchOutcome(input.URL, out)

		if deps.Cache != nil && out.Success && len(input.Headers) == 0 {
			if data, err := json.Marshal(out); err == nil {
				deps.Cache.Set(ctx, cacheKey, data)
			}
		}
		return nil, out, nil
	})
}

func logFetchOutcome(url string, out fetcher.Result) {
	if out.Success {
		slog.Debug("fetch: ok", slog.String("url", url), slog.String("extractor", out.Extractor), slog.Int("quality_score", out.QualityScore))
		return
	}
	slog.Warn("fetch: failed", slog.String("url", url), slog.String("error", out.Error))
}
