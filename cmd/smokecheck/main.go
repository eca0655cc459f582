// smokecheck runs local wiring and config sanity checks without hitting the
// network, mirroring the reference CLI's own smoke check.
//
// Usage:
//
//	go run ./cmd/smokecheck
//	go run ./cmd/smokecheck --require-llm
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_websearch/internal/airesearch"
	"github.com/anatolykoptev/go_websearch/internal/config"
	"github.com/anatolykoptev/go_websearch/internal/urlnorm"
)

type result struct {
	Success bool   `json:"success"`
	Checks  checks `json:"checks"`
	Config  snap   `json:"config_snapshot"`
}

type checks struct {
	CoreFailures   []string `json:"core_failures"`
	ConfigFailures []string `json:"config_failures"`
	Warnings       []string `json:"warnings"`
}

type snap struct {
	OpenAIModel             string         `json:"OPENAI_MODEL"`
	OpenAIBaseURLSet        bool           `json:"OPENAI_BASE_URL_set"`
	OpenAIAPIKeySet         bool           `json:"OPENAI_API_KEY_set"`
	OpenAIAPIKeyPlaceholder bool           `json:"OPENAI_API_KEY_placeholder"`
	LLMEffectivelyReady     bool           `json:"LLM_effectively_ready"`
	Proxy                   string         `json:"PROXY_CONFIG"`
	CFWorkerURL             string         `json:"CF_WORKER_URL"`
	PlaywrightFallback      bool           `json:"PLAYWRIGHT_FALLBACK"`
	PlaywrightTimeoutMS     int            `json:"PLAYWRIGHT_TIMEOUT_MS"`
	PlaywrightChallengeWait int            `json:"PLAYWRIGHT_CHALLENGE_WAIT"`
	ImportsOK               map[string]bool `json:"imports_ok"`
}

func main() {
	requireLLM := flag.Bool("require-llm", false, "fail if OPENAI config is missing or looks like a placeholder")
	flag.Parse()

	cfg := config.Bootstrap(config.Flags{})
	config.Init(cfg)

	coreFailures := runCoreChecks()
	configFailures, warnings, snapshot := runConfigChecks(cfg, *requireLLM)

	failures := append(append([]string{}, coreFailures...), configFailures...)
	res := result{
		Success: len(failures) == 0,
		Checks: checks{
			CoreFailures:   coreFailures,
			ConfigFailures: configFailures,
			Warnings:       warnings,
		},
		Config: snapshot,
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	if !res.Success {
		os.Exit(2)
	}
}

func runCoreChecks() []string {
	var failures []string

	if got := urlnorm.UnwrapRedirect("https://duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc"); got != "https://example.com/a?b=c" {
		failures = append(failures, "DDG redirect unwrap failed")
	}

	links, summary := airesearch.ParseMarkdownLinks("[Example](https://example.com/a) bare https://example.com/b", "")
	urls := map[string]bool{}
	for _, l := range links {
		urls[l.URL] = true
	}
	if !urls["https://example.com/a"] || !urls["https://example.com/b"] {
		failures = append(failures, "markdown link parser failed")
	}

	cleaned := airesearch.StripURLs(summary)
	if strings.Contains(cleaned, "http://") || strings.Contains(cleaned, "https://") {
		failures = append(failures, "URL stripping failed")
	}

	browseLinks := airesearch.ExtractBrowsePageLinks(`browse_page {"url":"https://openai.com/","instructions":"check"}`, "")
	if len(browseLinks) == 0 || browseLinks[0].URL != "https://openai.com/" {
		failures = append(failures, "browse_page link extraction failed")
	}

	if got := urlnorm.NormalizeForDedup("https://example.com/path/?utm_source=x"); got != "https://example.com/path" {
		failures = append(failures, "URL normalization failed")
	}

	return failures
}

var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^sk-xxx+$`),
	regexp.MustCompile(`your.*key`),
	regexp.MustCompile(`example`),
	regexp.MustCompile(`test`),
	regexp.MustCompile(`dummy`),
	regexp.MustCompile(`placeholder`),
}

func isPlaceholderAPIKey(value string) bool {
	text := strings.ToLower(strings.TrimSpace(value))
	if text == "" {
		return true
	}
	for _, re := range placeholderPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func runConfigChecks(cfg *config.Config, requireLLM bool) (failures, warnings []string, s snap) {
	keyIsPlaceholder := isPlaceholderAPIKey(cfg.OpenAIAPIKey)
	llmReady := cfg.LLMConfigured() && !keyIsPlaceholder

	if cfg.OpenAIBaseURL == "" {
		warnings = append(warnings, "OPENAI_BASE_URL is empty; AI summary will be disabled")
	}
	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OPENAI_API_KEY is empty; AI summary will be disabled")
	} else if keyIsPlaceholder {
		warnings = append(warnings, "OPENAI_API_KEY looks like a placeholder value")
	}

	if requireLLM && !llmReady {
		failures = append(failures, "LLM strict check failed: provide real OPENAI_API_KEY + OPENAI_BASE_URL")
	}
	if cfg.PlaywrightTimeoutMS <= 0 {
		failures = append(failures, "PLAYWRIGHT_TIMEOUT_MS must be > 0")
	}
	if cfg.PlaywrightChallengeWait <= 0 {
		failures = append(failures, "PLAYWRIGHT_CHALLENGE_WAIT must be > 0")
	}

	s = snap{
		OpenAIModel:             cfg.OpenAIModel,
		OpenAIBaseURLSet:        cfg.OpenAIBaseURL != "",
		OpenAIAPIKeySet:         cfg.OpenAIAPIKey != "",
		OpenAIAPIKeyPlaceholder: keyIsPlaceholder,
		LLMEffectivelyReady:     llmReady,
		Proxy:                   cfg.Proxy,
		CFWorkerURL:             cfg.CFWorker,
		PlaywrightFallback:      cfg.PlaywrightFallback,
		PlaywrightTimeoutMS:     cfg.PlaywrightTimeoutMS,
		PlaywrightChallengeWait: cfg.PlaywrightChallengeWait,
		ImportsOK:               map[string]bool{"fetch": true, "web_search": true, "mcp_server": true},
	}
	return failures, warnings, s
}
