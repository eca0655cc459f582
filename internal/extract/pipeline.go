package extract

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/anatolykoptev/go_websearch/internal/htmlinspect"
	"github.com/anatolykoptev/go_websearch/internal/noise"
)

// pipeline accumulates scored candidates for one extraction run.
type pipeline struct {
	tuning     tuning
	format     Format
	seenClean  map[string]bool
	candidates []Candidate
	stop       bool
}

func newPipeline(strategy Strategy, format Format) *pipeline {
	t := tuningFor(strategy)
	// Early stop applies to the quality strategy only.
	if strategy != StrategyQuality {
		t.earlyStopEnabled = false
	}
	return &pipeline{
		tuning:    t,
		format:    format,
		seenClean: make(map[string]bool),
	}
}

// addCandidate cleans, dedups, scores and appends raw, then checks the
// early-stop condition for the quality strategy.
func (p *pipeline) addCandidate(raw rawCandidate, minChars int) {
	if p.stop || strings.TrimSpace(raw.content) == "" {
		return
	}
	var cleaned string
	if p.format == FormatMarkdown {
		cleaned = noise.CleanExtractedMarkdown(raw.content)
	} else {
		cleaned = noise.CleanExtractedText(raw.content)
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || p.seenClean[cleaned] {
		return
	}
	p.seenClean[cleaned] = true

	sc := score(cleaned, p.format == FormatMarkdown)
	p.candidates = append(p.candidates, Candidate{
		Content:         cleaned,
		Extractor:       raw.extractor,
		QualityScore:    sc.qualityScore,
		CharLen:         sc.charLen,
		LineCount:       sc.lineCount,
		UniqueLineRatio: sc.uniqueLineRatio,
		NoiseLineRatio:  sc.noiseLineRatio,
	})

	if p.tuning.earlyStopEnabled {
		want := p.tuning.earlyStopChars
		if minChars > want {
			want = minChars
		}
		if sc.charLen >= want && sc.qualityScore >= p.tuning.earlyStopQuality {
			p.stop = true
		}
	}
}

// Extract runs the full site-adapter + general-extractor pipeline over
// htmlStr and returns the single best candidate, a degraded fallback
// synthesized from page metadata, or an empty terminal candidate
// (Extractor == "none").
func Extract(htmlStr, pageURL string, format Format, strategy Strategy, minChars int) Candidate {
	p := newPipeline(strategy, format)
	asMarkdown := format == FormatMarkdown

	parsedHost, parsedPath := splitHostPath(pageURL)

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))

	if docErr == nil {
		for _, a := range adaptersFor(parsedHost, parsedPath) {
			for _, raw := range a.run(doc, htmlStr, pageURL, asMarkdown) {
				p.addCandidate(raw, minChars)
				if p.stop {
					break
				}
			}
			if p.stop {
				break
			}
		}
	}

	if !p.stop {
		if text, ok := runTrafilatura(htmlStr, pageURL, modePrecision, asMarkdown); ok {
			p.addCandidate(rawCandidate{content: text, extractor: "trafilatura:precision"}, minChars)
		}
	}
	if !p.stop && strategy != StrategySpeed {
		if text, ok := runTrafilatura(htmlStr, pageURL, modeRecall, asMarkdown); ok {
			p.addCandidate(rawCandidate{content: text, extractor: "trafilatura:recall"}, minChars)
		}
	}
	if !p.stop {
		if text, ok := runTrafilatura(htmlStr, pageURL, modeFast, asMarkdown); ok {
			p.addCandidate(rawCandidate{content: text, extractor: "trafilatura:fast"}, minChars)
		}
	}
	if !p.stop && strategy != StrategySpeed {
		if text, ok := runBaselineReadability(htmlStr, pageURL, asMarkdown); ok {
			p.addCandidate(rawCandidate{content: text, extractor: "trafilatura:baseline"}, minChars)
		}
	}
	if !p.stop {
		if text := htmlinspect.HTMLToText(htmlStr); strings.TrimSpace(text) != "" {
			p.addCandidate(rawCandidate{content: text, extractor: "raw:html-to-text"}, minChars)
		}
	}

	if best, ok := selectBest(p.candidates, p.tuning, minChars, strategy); ok {
		return best
	}

	if degraded, ok := degradedCandidate(htmlStr, format); ok {
		return degraded
	}

	return Candidate{Extractor: "none"}
}

func splitHostPath(rawURL string) (host, path string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	return strings.ToLower(u.Hostname()), u.Path
}

// selectBest ranks candidates by (quality+bonus, quality, char_len)
// descending and returns the first that clears the adapter or general
// quality bar, in that order; in the speed strategy, falls back to the
// top-ranked candidate when nothing clears the bar.
func selectBest(candidates []Candidate, t tuning, minChars int, strategy Strategy) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		bi := t.extractorBonus(ranked[i].Extractor)
		bj := t.extractorBonus(ranked[j].Extractor)
		if ranked[i].QualityScore+bi != ranked[j].QualityScore+bj {
			return ranked[i].QualityScore+bi > ranked[j].QualityScore+bj
		}
		if ranked[i].QualityScore != ranked[j].QualityScore {
			return ranked[i].QualityScore > ranked[j].QualityScore
		}
		return ranked[i].CharLen > ranked[j].CharLen
	})

	for _, c := range ranked {
		if !strings.HasPrefix(c.Extractor, "adapter:") {
			continue
		}
		if c.CharLen >= minChars && c.QualityScore >= t.adapterMinQuality {
			return c, true
		}
	}
	for _, c := range ranked {
		if c.CharLen >= minChars && c.QualityScore >= t.generalMinQuality {
			return c, true
		}
	}
	if strategy == StrategySpeed {
		return ranked[0], true
	}
	return Candidate{}, false
}

// degradedCandidate synthesizes a minimal candidate from page metadata when
// no extraction pass clears its quality bar.
func degradedCandidate(htmlStr string, format Format) (Candidate, bool) {
	md := htmlinspect.ExtractMetadata(htmlStr, 0)
	var b strings.Builder
	if md.Title != "" {
		if format == FormatMarkdown {
			b.WriteString("# " + md.Title + "\n\n")
		} else {
			b.WriteString(md.Title + "\n\n")
		}
	}
	if md.Description != "" {
		b.WriteString(md.Description)
	}
	raw := strings.TrimSpace(b.String())
	if raw == "" {
		return Candidate{}, false
	}
	var cleaned string
	if format == FormatMarkdown {
		cleaned = noise.CleanExtractedMarkdown(raw)
	} else {
		cleaned = noise.CleanExtractedText(raw)
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return Candidate{}, false
	}
	sc := score(cleaned, format == FormatMarkdown)
	return Candidate{
		Content:         cleaned,
		Extractor:       "meta:degraded",
		QualityScore:    sc.qualityScore,
		CharLen:         sc.charLen,
		LineCount:       sc.lineCount,
		UniqueLineRatio: sc.uniqueLineRatio,
		NoiseLineRatio:  sc.noiseLineRatio,
		Degraded:        true,
	}, true
}
