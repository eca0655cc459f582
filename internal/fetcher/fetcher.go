// Package fetcher orchestrates the HTTP → adapter → extractor →
// headless-browser fallback chain for a single URL.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/anatolykoptev/go_websearch/internal/browser"
	"github.com/anatolykoptev/go_websearch/internal/config"
	"github.com/anatolykoptev/go_websearch/internal/extract"
	"github.com/anatolykoptev/go_websearch/internal/htmlinspect"
	"github.com/anatolykoptev/go_websearch/internal/httpclient"
	"github.com/anatolykoptev/go_websearch/internal/metrics"
	"github.com/anatolykoptev/go_websearch/internal/urlnorm"
)

// Mode selects the shape of Result's content.
type Mode string

const (
	ModeHTML     Mode = "html"
	ModeMarkdown Mode = "markdown"
	ModeText     Mode = "text"
	ModeMeta     Mode = "meta"
)

// QualityMetrics mirrors the FetchResult quality_metrics block.
type QualityMetrics struct {
	CharLen         int     `json:"char_len"`
	LineCount       int     `json:"line_count"`
	UniqueLineRatio float64 `json:"unique_line_ratio"`
	NoiseLineRatio  float64 `json:"noise_line_ratio"`
}

// Result is the discriminated FetchResult record.
type Result struct {
	Success         bool   `json:"success"`
	URL             string `json:"url"`
	ViaWorker       bool   `json:"via_worker"`
	ViaPlaywright   bool   `json:"via_playwright"`
	StatusCode      int    `json:"status_code,omitempty"`
	Blocked         bool   `json:"blocked"`
	Truncated       bool   `json:"truncated"`
	Error           string `json:"error,omitempty"`
	NeedsPlaywright bool   `json:"needs_playwright,omitempty"`
	PlaywrightError string `json:"playwright_error,omitempty"`

	HTML     string              `json:"html,omitempty"`
	Markdown string              `json:"markdown,omitempty"`
	Text     string              `json:"text,omitempty"`
	Meta     *htmlinspect.Metadata `json:"meta,omitempty"`

	Extractor      string         `json:"extractor,omitempty"`
	QualityScore   int            `json:"quality_score,omitempty"`
	Degraded       bool           `json:"degraded,omitempty"`
	QualityMetrics QualityMetrics `json:"quality_metrics,omitempty"`
}

// Fetch runs the six-stage dispatch chain for rawURL.
func Fetch(ctx context.Context, client *httpclient.Client, cfg *config.Config, rawURL string, mode Mode, headers map[string]string) Result {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.FetchTimeoutS)*time.Second)
	defer cancel()

	if id := urlnorm.ExtractZhihuAnswerID(rawURL); id != "" {
		if res, ok := fetchZhihuAnswer(ctx, client, cfg, rawURL, id, mode); ok {
			metrics.IncrZhihuAdapterHits()
			return res
		}
	}

	if topicID, ok := discourseTopicID(rawURL); ok {
		if res, ok := fetchDiscourseTopic(ctx, client, cfg, rawURL, topicID, mode); ok {
			metrics.IncrDiscourseAdapterHits()
			return res
		}
	}

	if urlnorm.PreferPlaywrightForURL(rawURL) && cfg.PlaywrightFallback {
		return Result{Success: false, URL: rawURL, NeedsPlaywright: true}
	}

	res := fetchPlainHTTP(ctx, client, cfg, rawURL, mode, headers)

	if res.NeedsPlaywright || (blockedForMode(res, mode) && cfg.PlaywrightFallback) {
		if !cfg.PlaywrightFallback {
			return res
		}
		pw := fetchWithBrowser(ctx, cfg, rawURL, mode, headers)
		if pw.Success {
			return pw
		}
		res.Blocked = true
		res.PlaywrightError = pw.Error
		return res
	}

	return res
}

func blockedForMode(res Result, mode Mode) bool {
	switch mode {
	case ModeMarkdown:
		return htmlinspect.LooksLikeBlocked(res.Markdown)
	case ModeText:
		return htmlinspect.LooksLikeBlocked(res.Text)
	default:
		return res.Blocked
	}
}

// fetchPlainHTTP is stage 4: a direct HTTP GET (through the Worker if
// configured), run through the Content Extractor.
func fetchPlainHTTP(ctx context.Context, client *httpclient.Client, cfg *config.Config, rawURL string, mode Mode, headers map[string]string) Result {
	resp, err := client.Get(ctx, rawURL, headers, time.Duration(cfg.FetchTimeoutS)*time.Second, 2)
	if err != nil {
		if cfg.PlaywrightFallback {
			return Result{Success: false, URL: rawURL, NeedsPlaywright: true}
		}
		return Result{Success: false, URL: rawURL, Error: err.Error()}
	}

	body := resp.Text()
	viaWorker := cfg.CFWorker != ""

	if mode == ModeHTML {
		if htmlinspect.LooksLikeBlocked(body) && cfg.PlaywrightFallback {
			return Result{Success: false, URL: rawURL, StatusCode: resp.StatusCode, ViaWorker: viaWorker, NeedsPlaywright: true}
		}
		limited, truncated := LimitContentLength(body, cfg.MaxTokenLimit)
		return Result{Success: true, URL: rawURL, StatusCode: resp.StatusCode, ViaWorker: viaWorker, HTML: limited, Truncated: truncated}
	}

	if mode == ModeMeta {
		md := htmlinspect.ExtractMetadata(body, 4000)
		return Result{Success: true, URL: rawURL, StatusCode: resp.StatusCode, ViaWorker: viaWorker, Meta: &md}
	}

	blocked := htmlinspect.LooksLikeBlocked(body)
	if blocked && cfg.PlaywrightFallback {
		return Result{Success: false, URL: rawURL, StatusCode: resp.StatusCode, ViaWorker: viaWorker, NeedsPlaywright: true}
	}

	format, minChars := extractFormatFor(mode, cfg)
	cand := extract.Extract(body, rawURL, format, extract.Strategy(cfg.ExtractionStrategy), minChars)
	if blocked && cand.QualityScore < 65 {
		cand.Extractor = "meta:blocked"
		cand.Degraded = true
	}

	res := Result{
		Success:      true,
		URL:          rawURL,
		StatusCode:   resp.StatusCode,
		ViaWorker:    viaWorker,
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
	content, truncated := LimitContentLength(cand.Content, cfg.MaxTokenLimit)
	res.Truncated = truncated
	if mode == ModeMarkdown {
		res.Markdown = content
	} else {
		res.Text = content
	}
	return res
}

func extractFormatFor(mode Mode, cfg *config.Config) (extract.Format, int) {
	if mode == ModeMarkdown {
		return extract.FormatMarkdown, cfg.ExtractionMarkdownMinChars
	}
	return extract.FormatText, cfg.ExtractionTextMinChars
}

// fetchWithBrowser is stage 6: the headless-browser fallback.
func fetchWithBrowser(ctx context.Context, cfg *config.Config, rawURL string, mode Mode, headers map[string]string) Result {
	opts := browser.Options{
		Headless:                cfg.PWHeadless,
		ExecutablePath:          cfg.PWExecutablePath,
		Proxy:                   cfg.Proxy,
		UserAgent:               cfg.PWUserAgent,
		AcceptLanguage:          cfg.PWAcceptLanguage,
		Locale:                  cfg.PWLocale,
		Timezone:                cfg.PWTimezone,
		Viewport:                browser.Viewport{Width: cfg.PWViewport.Width, Height: cfg.PWViewport.Height, DeviceScale: cfg.PWDeviceScale},
		PageTimeout:             time.Duration(cfg.PlaywrightTimeoutMS) * time.Millisecond,
		ChallengeWaitIterations: cfg.PlaywrightChallengeWait,
		ExtractionStrategy:      extract.Strategy(cfg.ExtractionStrategy),
	}
	_, minChars := extractFormatFor(mode, cfg)
	opts.MinChars = minChars

	bres, err := browser.Fetch(ctx, opts, rawURL, browser.Mode(mode), headers)
	if err != nil {
		return Result{Success: false, URL: rawURL, Error: err.Error()}
	}
	if !bres.Success {
		return Result{Success: false, URL: rawURL, Error: bres.Error}
	}

	res := Result{
		Success:       true,
		URL:           rawURL,
		ViaPlaywright: true,
		Blocked:       bres.Blocked,
		HTML:          bres.HTML,
		Markdown:      bres.Markdown,
		Text:          bres.Text,
		Meta:          bres.Meta,
		Extractor:     bres.Extractor,
		QualityScore:  bres.QualityScore,
		Degraded:      bres.Degraded,
		QualityMetrics: QualityMetrics{
			CharLen:         bres.QualityMetrics.CharLen,
			LineCount:       bres.QualityMetrics.LineCount,
			UniqueLineRatio: bres.QualityMetrics.UniqueLineRatio,
			NoiseLineRatio:  bres.QualityMetrics.NoiseLineRatio,
		},
	}
	return res
}

// LimitContentLength caps content at cfg's token budget (4 chars/token),
// reporting whether it truncated.
func LimitContentLength(content string, maxTokenLimit int) (string, bool) {
	estimatedTokens := len(content) / 4
	if maxTokenLimit > 0 && estimatedTokens > maxTokenLimit {
		charsToKeep := maxTokenLimit * 4
		if charsToKeep > len(content) {
			charsToKeep = len(content)
		}
		return content[:charsToKeep], true
	}
	return content, false
}

var discourseTopicRe = regexp.MustCompile(`/t/(?:[^/]+/)?(\d+)`)

func discourseTopicID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	m := discourseTopicRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func fetchDiscourseTopic(ctx context.Context, client *httpclient.Client, cfg *config.Config, rawURL, topicID string, mode Mode) (Result, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, false
	}
	jsonURL := fmt.Sprintf("%s://%s/t/%s.json", u.Scheme, u.Host, topicID)
	resp, err := client.Get(ctx, jsonURL, map[string]string{"Accept": "application/json"}, time.Duration(cfg.FetchTimeoutS)*time.Second, 2)
	if err != nil {
		return Result{}, false
	}
	if htmlinspect.LooksLikeBlocked(resp.Text()) {
		return Result{}, false
	}

	var topic struct {
		Title     string `json:"title"`
		PostsStream struct {
			Posts []json.RawMessage `json:"posts"`
		} `json:"post_stream"`
	}
	if err := json.Unmarshal(resp.Body, &topic); err != nil {
		return Result{}, false
	}

	var sections []string
	for _, raw := range topic.PostsStream.Posts {
		var post struct {
			Cooked     string `json:"cooked"`
			Username   string `json:"username"`
			PostNumber int    `json:"post_number"`
		}
		if json.Unmarshal(raw, &post) != nil || strings.TrimSpace(post.Cooked) == "" {
			continue
		}
		section := post.Cooked
		if post.Username != "" {
			section = fmt.Sprintf("## %s · #%d\n%s", post.Username, post.PostNumber, post.Cooked)
		}
		sections = append(sections, section)
	}
	if len(sections) == 0 {
		return Result{}, false
	}

	full := "<article>"
	if topic.Title != "" {
		full += "<h1>" + html.EscapeString(topic.Title) + "</h1>"
	}
	full += strings.Join(sections, "\n") + "</article>"

	if mode == ModeHTML {
		return Result{Success: true, URL: rawURL, HTML: full}, true
	}
	if mode == ModeMeta {
		md := htmlinspect.ExtractMetadata(full, 4000)
		return Result{Success: true, URL: rawURL, Meta: &md}, true
	}

	format, minChars := extractFormatFor(mode, cfg)
	cand := extract.Extract(full, rawURL, format, extract.Strategy(cfg.ExtractionStrategy), minChars)
	cand.Extractor = "adapter:discourse:topic_json"
	res := Result{
		Success:      true,
		URL:          rawURL,
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
	content, truncated := LimitContentLength(cand.Content, cfg.MaxTokenLimit)
	res.Truncated = truncated
	if mode == ModeMarkdown {
		res.Markdown = content
	} else {
		res.Text = content
	}
	return res, true
}

// zhihuAnswerAPIURL builds the Zhihu answer API endpoint for an answer id.
func zhihuAnswerAPIURL(id string) string {
	return fmt.Sprintf("https://www.zhihu.com/api/v4/answers/%s?include=content,excerpt,content_need_truncated,segment_infos", id)
}

// zhihuAnswer is the subset of the Zhihu answer API response this fetcher
// consumes. SegmentInfos carries the full-answer text in "text" when the
// main content field has been truncated.
type zhihuAnswer struct {
	Content              string        `json:"content"`
	Excerpt              string        `json:"excerpt"`
	ContentNeedTruncated bool          `json:"content_need_truncated"`
	SegmentInfos         []zhihuSegment `json:"segment_infos"`
}

type zhihuSegment struct {
	Text string `json:"text"`
}

// reconstructZhihuContent appends each truncated segment's text to content,
// skipping a segment whose first 20 (trimmed) characters already appear in
// what's been assembled so far, to avoid re-appending the untruncated lead
// that content already contains.
func reconstructZhihuContent(content string, segments []zhihuSegment) string {
	for _, seg := range segments {
		prefix := seg.Text
		if r := []rune(prefix); len(r) > 20 {
			prefix = string(r[:20])
		}
		prefix = strings.TrimSpace(prefix)
		if prefix != "" && strings.Contains(strings.TrimSpace(content), prefix) {
			continue
		}
		content += "<p>" + html.EscapeString(seg.Text) + "</p>"
	}
	return content
}

func fetchZhihuAnswer(ctx context.Context, client *httpclient.Client, cfg *config.Config, rawURL, id string, mode Mode) (Result, bool) {
	resp, err := client.Get(ctx, zhihuAnswerAPIURL(id), nil, time.Duration(cfg.FetchTimeoutS)*time.Second, 2)
	if err != nil {
		return Result{}, false
	}

	var answer zhihuAnswer
	if err := json.Unmarshal(resp.Body, &answer); err != nil || answer.Content == "" {
		return Result{}, false
	}

	content := answer.Content
	if answer.ContentNeedTruncated && len(answer.SegmentInfos) > 0 {
		content = reconstructZhihuContent(content, answer.SegmentInfos)
	}

	if mode == ModeHTML {
		return Result{Success: true, URL: rawURL, HTML: "<html><body>" + content + "</body></html>"}, true
	}

	full := "<html><body>" + content + "</body></html>"
	if mode == ModeMeta {
		md := htmlinspect.ExtractMetadata(full, 4000)
		return Result{Success: true, URL: rawURL, Meta: &md}, true
	}
	format, minChars := extractFormatFor(mode, cfg)
	cand := extract.Extract(full, rawURL, format, extract.Strategy(cfg.ExtractionStrategy), minChars)
	cand.Extractor = "adapter:zhihu:answer_api"
	res := Result{
		Success:      true,
		URL:          rawURL,
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
	out, truncated := LimitContentLength(cand.Content, cfg.MaxTokenLimit)
	res.Truncated = truncated
	if mode == ModeMarkdown {
		res.Markdown = out
	} else {
		res.Text = out
	}
	return res, true
}
