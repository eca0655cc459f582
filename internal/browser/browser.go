// Package browser drives a stealth-configured headless Chromium for pages
// that block plain HTTP fetches, returning the same per-mode content shape
// as the Page Fetcher.
package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/anatolykoptev/go_websearch/internal/extract"
	"github.com/anatolykoptev/go_websearch/internal/htmlinspect"
)

// Mode selects what Fetch returns; mirrors the Page Fetcher's FetchResult
// discriminator.
type Mode string

const (
	ModeHTML     Mode = "html"
	ModeMarkdown Mode = "markdown"
	ModeText     Mode = "text"
	ModeMeta     Mode = "meta"
)

// QualityMetrics mirrors the Page Fetcher's quality_metrics block.
type QualityMetrics struct {
	CharLen         int
	LineCount       int
	UniqueLineRatio float64
	NoiseLineRatio  float64
}

// Result is the outcome of a headless-browser fetch.
type Result struct {
	Success  bool
	Blocked  bool
	Error    string
	HTML     string
	Markdown string
	Text     string
	Meta     *htmlinspect.Metadata

	Extractor      string
	QualityScore   int
	Degraded       bool
	QualityMetrics QualityMetrics
}

// Viewport is the emulated window size and device scale.
type Viewport struct {
	Width, Height int
	DeviceScale   float64
}

// Options configures one Fetch call.
type Options struct {
	Headless                 bool
	ExecutablePath            string
	Proxy                     string
	UserAgent                 string
	AcceptLanguage            string
	Locale                    string
	Timezone                  string
	Viewport                  Viewport
	PageTimeout               time.Duration
	ChallengeWaitIterations   int
	ExtractionStrategy        extract.Strategy
	MinChars                  int
}

// resolveExecutablePath tries path, then (on a mac x64 install laid out
// under an arm64-named Applications tree or vice versa) the substituted
// sibling path, returning the first that exists.
func resolveExecutablePath(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	alt := path
	switch {
	case strings.Contains(path, "mac-x64"):
		alt = strings.Replace(path, "mac-x64", "mac-arm64", 1)
	case strings.Contains(path, "mac-arm64"):
		alt = strings.Replace(path, "mac-arm64", "mac-x64", 1)
	default:
		return path
	}
	if _, err := os.Stat(alt); err == nil {
		return alt
	}
	return path
}

// Fetch navigates to rawURL in a headless browser and returns content shaped
// per mode. Context and browser are released before Fetch returns, on every
// path.
func Fetch(ctx context.Context, opts Options, rawURL string, mode Mode, headers map[string]string) (Result, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-infobars", true),
	)
	if exe := resolveExecutablePath(opts.ExecutablePath); exe != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(exe))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	timeout := opts.PageTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(browserCtx, timeout)
	defer navCancel()

	width, height := opts.Viewport.Width, opts.Viewport.Height
	if width <= 0 {
		width = 1366
	}
	if height <= 0 {
		height = 768
	}
	scale := opts.Viewport.DeviceScale
	if scale <= 0 {
		scale = 1
	}

	extraHeaders := map[string]string{}
	userAgent := opts.UserAgent
	acceptLang := opts.AcceptLanguage
	for k, v := range headers {
		switch strings.ToLower(k) {
		// promoted to context emulation parameters below, not raw headers.
		case "user-agent":
			userAgent = v
		case "accept-language":
			acceptLang = v
		default:
			extraHeaders[k] = v
		}
	}

	var finalHTML string
	var title string

	actions := []chromedp.Action{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), scale, false),
	}
	if opts.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride(opts.Locale))
	}
	if opts.Timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(opts.Timezone))
	}
	if userAgent != "" {
		uaOverride := emulation.SetUserAgentOverride(userAgent)
		if acceptLang != "" {
			uaOverride = uaOverride.WithAcceptLanguage(acceptLang)
		}
		actions = append(actions, uaOverride)
	} else if acceptLang != "" {
		extraHeaders["Accept-Language"] = acceptLang
	}
	if len(extraHeaders) > 0 {
		headerMap := make(network.Headers, len(extraHeaders))
		for k, v := range extraHeaders {
			headerMap[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headerMap))
	}
	actions = append(actions,
		chromedp.Navigate(rawURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_ = chromedp.WaitReady("body", chromedp.ByQuery).Do(waitCtx)
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			iterations := opts.ChallengeWaitIterations
			if iterations <= 0 {
				iterations = 1
			}
			for i := 0; i < iterations; i++ {
				if err := chromedp.Title(&title).Do(ctx); err != nil {
					return nil
				}
				if !htmlinspect.LooksLikeChallenge(title) {
					break
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
				}
			}
			return nil
		}),
		chromedp.OuterHTML("html", &finalHTML, chromedp.ByQuery),
	)

	runErr := chromedp.Run(navCtx, actions...)
	if runErr != nil {
		return Result{Success: false, Error: fmt.Sprintf("headless browser: %v", runErr)}, nil
	}

	blocked := htmlinspect.LooksLikeBlocked(finalHTML)

	switch mode {
	case ModeHTML:
		return Result{Success: true, Blocked: blocked, HTML: finalHTML}, nil
	case ModeMeta:
		md := htmlinspect.ExtractMetadata(finalHTML, 4000)
		return Result{Success: true, Blocked: blocked, Meta: &md}, nil
	default:
		format := extract.FormatText
		if mode == ModeMarkdown {
			format = extract.FormatMarkdown
		}
		cand := extract.Extract(finalHTML, rawURL, format, opts.ExtractionStrategy, opts.MinChars)
		if blocked && cand.QualityScore < 65 {
			cand.Extractor = "meta:blocked"
			cand.Degraded = true
		}
		res := Result{
			Success:      true,
			Blocked:      blocked,
			Extractor:    cand.Extractor,
			QualityScore: cand.QualityScore,
			Degraded:     cand.Degraded,
			QualityMetrics: QualityMetrics{
				CharLen:         cand.CharLen,
				LineCount:       cand.LineCount,
				UniqueLineRatio: cand.UniqueLineRatio,
				NoiseLineRatio:  cand.NoiseLineRatio,
			},
		}
		if mode == ModeMarkdown {
			res.Markdown = cand.Content
		} else {
			res.Text = cand.Content
		}
		return res, nil
	}
}
