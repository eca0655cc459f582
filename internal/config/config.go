// Package config bootstraps the process-wide AppConfig from CLI flags,
// environment variables, a .env file and built-in defaults, in that
// precedence order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfigUninitialized is returned by Get when Init has not run yet.
var ErrConfigUninitialized = errors.New("config: runtime configuration accessed before Init")

// ErrNotConfigured marks a feature whose credentials are absent.
var ErrNotConfigured = errors.New("config: llm not configured")

// Strategy is the content-extraction tuning profile.
type Strategy string

const (
	StrategyQuality  Strategy = "quality"
	StrategyBalanced Strategy = "balanced"
	StrategySpeed    Strategy = "speed"
)

// Viewport is a browser viewport size.
type Viewport struct {
	Width  int
	Height int
}

// Config is the immutable, process-wide application configuration.
type Config struct {
	Proxy    string
	CFWorker string
	UserAgent string
	CurlImpersonate string
	HTTPVersion     string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	MaxTokenLimit       int
	FetchTimeoutS       int
	SearchTimeoutS      int
	SearchResultLimit   int
	SearchMaxPerDomain  int

	PlaywrightFallback      bool
	PlaywrightTimeoutMS     int
	PlaywrightChallengeWait int
	PWHeadless              bool
	PWUserAgent             string
	PWAcceptLanguage        string
	PWLocale                string
	PWTimezone              string
	PWViewport              Viewport
	PWDeviceScale           float64
	PWExecutablePath        string

	ExtractionStrategy          Strategy
	ExtractionMarkdownMinChars  int
	ExtractionTextMinChars      int

	LogLevel string

	MCPPort        string
	RedisURL       string
	CacheTTL       time.Duration
	CacheMaxEntries int
}

// LLMConfigured reports whether both an API key and base URL are set.
func (c *Config) LLMConfigured() bool {
	return c.OpenAIAPIKey != "" && c.OpenAIBaseURL != ""
}

var current *Config

// Init installs cfg as the process-wide singleton.
func Init(cfg *Config) {
	current = cfg
}

// Get returns the active configuration, or ErrConfigUninitialized if Init
// has not been called yet.
func Get() (*Config, error) {
	if current == nil {
		return nil, ErrConfigUninitialized
	}
	return current, nil
}

// MustGet panics if the configuration was never initialized. Reserved for
// code paths reached only after main() has run Bootstrap.
func MustGet() *Config {
	cfg, err := Get()
	if err != nil {
		panic(err)
	}
	return cfg
}

// ResetForTest zeros the singleton. Test-only.
func ResetForTest() {
	current = nil
}

// Flags holds the optional CLI overrides recognized by the binary.
type Flags struct {
	Proxy         string
	CFWorker      string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	LogLevel      string
	Stdio         bool
}

// ParseFlags scans argv (excluding the program name) for recognized flags
// in the form "--name value" or "--name=value". Unknown flags are ignored.
func ParseFlags(args []string) Flags {
	var f Flags
	get := func(i int, eqVal string) (string, int) {
		if eqVal != "" {
			return eqVal, i
		}
		if i+1 < len(args) {
			return args[i+1], i + 1
		}
		return "", i
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, eqVal := arg, ""
		if idx := strings.IndexByte(arg, '='); idx >= 0 {
			name, eqVal = arg[:idx], arg[idx+1:]
		}
		switch name {
		case "--proxy":
			f.Proxy, i = get(i, eqVal)
		case "--cf-worker":
			f.CFWorker, i = get(i, eqVal)
		case "--openai-api-key":
			f.OpenAIAPIKey, i = get(i, eqVal)
		case "--openai-base-url":
			f.OpenAIBaseURL, i = get(i, eqVal)
		case "--openai-model":
			f.OpenAIModel, i = get(i, eqVal)
		case "--log-level":
			f.LogLevel, i = get(i, eqVal)
		case "--stdio":
			f.Stdio = true
		}
	}
	return f
}

// Bootstrap loads .env (if present), then builds a Config from flags > env
// > defaults, validating as it goes. It never fails: invalid values are
// reported to stderr and replaced with their default.
func Bootstrap(flags Flags) *Config {
	LoadEnvFile(".env")

	cfg := &Config{
		Proxy:           firstNonEmpty(flags.Proxy, env("PROXY", "")),
		CFWorker:        firstNonEmpty(flags.CFWorker, env("CF_WORKER", "")),
		UserAgent:       env("USER_AGENT", ""),
		CurlImpersonate: env("CURL_IMPERSONATE", "chrome110"),
		HTTPVersion:     env("HTTP_VERSION", "v1"),

		OpenAIAPIKey:  firstNonEmpty(flags.OpenAIAPIKey, env("OPENAI_API_KEY", "")),
		OpenAIBaseURL: firstNonEmpty(flags.OpenAIBaseURL, env("OPENAI_BASE_URL", "")),
		OpenAIModel:   firstNonEmpty(flags.OpenAIModel, env("OPENAI_MODEL", "gpt-4o")),

		MaxTokenLimit:      parseInt("MAX_TOKEN_LIMIT", 10000),
		FetchTimeoutS:      parseInt("FETCH_TIMEOUT_S", 15),
		SearchTimeoutS:     parseInt("SEARCH_TIMEOUT_S", 60),
		SearchResultLimit:  parseInt("SEARCH_RESULT_LIMIT", 25),
		SearchMaxPerDomain: parseInt("SEARCH_MAX_PER_DOMAIN", 2),

		PlaywrightFallback:      parseBool("PLAYWRIGHT_FALLBACK", true),
		PlaywrightTimeoutMS:     parseInt("PLAYWRIGHT_TIMEOUT_MS", 60000),
		PlaywrightChallengeWait: parseInt("PLAYWRIGHT_CHALLENGE_WAIT", 20),
		PWHeadless:              parseBool("PW_HEADLESS", true),
		PWUserAgent:             env("PW_USER_AGENT", ""),
		PWAcceptLanguage:        env("PW_ACCEPT_LANGUAGE", ""),
		PWLocale:                env("PW_LOCALE", "zh-CN"),
		PWTimezone:              env("PW_TIMEZONE", "Asia/Shanghai"),
		PWViewport:              parseViewport("PW_VIEWPORT", Viewport{1366, 768}),
		PWDeviceScale:           parseFloat("PW_DEVICE_SCALE", 2),
		PWExecutablePath: firstNonEmpty(
			env("PW_CHROMIUM_EXECUTABLE_PATH", ""),
			env("PW_EXECUTABLE_PATH", ""),
			env("PLAYWRIGHT_EXECUTABLE_PATH", ""),
		),

		ExtractionStrategy:         parseStrategy("EXTRACTION_STRATEGY", StrategyQuality),
		ExtractionMarkdownMinChars: parseInt("EXTRACTION_MARKDOWN_MIN_CHARS", 120),
		ExtractionTextMinChars:     parseInt("EXTRACTION_TEXT_MIN_CHARS", 200),

		LogLevel: env("LOG_LEVEL", "INFO"),

		MCPPort:         env("MCP_PORT", "8891"),
		RedisURL:        env("REDIS_URL", ""),
		CacheTTL:        parseDurationSeconds("CACHE_TTL", 15*time.Minute),
		CacheMaxEntries: parseInt("CACHE_MAX_ENTRIES", 1000),
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	return cfg
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func warnInvalid(key, raw, kind string) {
	fmt.Fprintf(os.Stderr, "[config] invalid %s for %s=%q, falling back to default\n", kind, key, raw)
}

func parseInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		warnInvalid(key, raw, "integer")
		return def
	}
	return n
}

func parseFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		warnInvalid(key, raw, "float")
		return def
	}
	return f
}

func parseBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		warnInvalid(key, raw, "boolean")
		return def
	}
	return b
}

func parseDurationSeconds(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		warnInvalid(key, raw, "duration")
		return def
	}
	return time.Duration(secs * float64(time.Second))
}

func parseStrategy(key string, def Strategy) Strategy {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case StrategyQuality:
		return StrategyQuality
	case StrategyBalanced:
		return StrategyBalanced
	case StrategySpeed:
		return StrategySpeed
	default:
		fmt.Fprintf(os.Stderr, "[config] invalid value for %s=%q, falling back to default %q\n", key, raw, def)
		return def
	}
}

// parseViewport accepts "WxH" or "W,H".
func parseViewport(key string, def Viewport) Viewport {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	sep := "x"
	if strings.Contains(raw, ",") {
		sep = ","
	} else if !strings.Contains(raw, "x") {
		warnInvalid(key, raw, "viewport")
		return def
	}
	parts := strings.SplitN(raw, sep, 2)
	if len(parts) != 2 {
		warnInvalid(key, raw, "viewport")
		return def
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		warnInvalid(key, raw, "viewport")
		return def
	}
	return Viewport{Width: w, Height: h}
}
