package extract

import (
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_websearch/internal/noise"
)

var (
	fenceLineRe   = regexp.MustCompile("^\\s*```")
	atxHeadingRe  = regexp.MustCompile(`^#{1,6}\s+\S`)
	bulletLineRe  = regexp.MustCompile(`^\s*([-*+]|\d+[.)])\s+\S`)
)

type scoreResult struct {
	qualityScore    int
	charLen         int
	lineCount       int
	uniqueLineRatio float64
	noiseLineRatio  float64
}

// score implements the spec's quality-score formula over cleaned content c.
// isMarkdown selects whether fence/heading/bullet structure bonuses apply.
func score(c string, isMarkdown bool) scoreResult {
	lines := strings.Split(c, "\n")
	var trimmed []string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t != "" {
			trimmed = append(trimmed, t)
		}
	}
	lineCount := len(trimmed)
	charLen := len(c)

	var meaningful []string
	fenceCount := 0
	headingCount := 0
	bulletCount := 0
	for _, l := range trimmed {
		if fenceLineRe.MatchString(l) {
			fenceCount++
			continue
		}
		meaningful = append(meaningful, l)
		if atxHeadingRe.MatchString(l) {
			headingCount++
		}
		if bulletLineRe.MatchString(l) {
			bulletCount++
		}
	}
	if len(meaningful) == 0 {
		meaningful = trimmed
	}

	uniqueRatio := ratioUnique(meaningful)
	noiseRatio := noiseRatioOf(trimmed)
	shortCount := 0
	for _, l := range meaningful {
		if len(l) <= 12 {
			shortCount++
		}
	}
	shortRatio := 0.0
	if len(meaningful) > 0 {
		shortRatio = float64(shortCount) / float64(len(meaningful))
	}

	isMarkdownLike := isMarkdown && (fenceCount > 0 || headingCount > 0 || bulletCount > 0)

	paragraphCount := countParagraphs(lines)

	structureBonus := 0
	if isMarkdownLike {
		switch {
		case fenceCount >= 2:
			structureBonus += 6
		case fenceCount >= 1:
			structureBonus += 3
		}
		structureBonus += minInt(6, paragraphCount)
		structureBonus += minInt(4, int(float64(lineCount)/8*4))
		structureBonus += minInt(2, headingCount)
		structureBonus += minInt(2, int(float64(bulletCount)/3*2))
	}

	lengthScore := minFloat(60, float64(charLen)/2000*60)
	uniqueScore := minFloat(20, uniqueRatio*20)
	noisePenalty := minFloat(50, noiseRatio*70)

	shortLinePenalty := 0.0
	if lineCount >= 40 && shortRatio >= 0.6 {
		shortLinePenalty = minFloat(30, (shortRatio-0.6)*100)
	}

	quality := lengthScore + uniqueScore - noisePenalty - shortLinePenalty + float64(structureBonus)
	quality = clamp(quality, 0, 100)

	return scoreResult{
		qualityScore:    roundInt(quality),
		charLen:         charLen,
		lineCount:       lineCount,
		uniqueLineRatio: uniqueRatio,
		noiseLineRatio:  noiseRatio,
	}
}

// noiseRatioOf recomputes the fraction of lines that still match a noise
// rule after cleaning. CleanExtractedMarkdown exempts fenced-code-block
// content from stripping, so this can be nonzero even post-cleanup.
func noiseRatioOf(lines []string) float64 {
	if len(lines) == 0 {
		return 0
	}
	hits := 0
	for _, l := range lines {
		if noise.IsNoiseLine(l) {
			hits++
		}
	}
	return float64(hits) / float64(len(lines))
}

func ratioUnique(lines []string) float64 {
	if len(lines) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		seen[l] = true
	}
	return float64(len(seen)) / float64(len(lines))
}

func countParagraphs(lines []string) int {
	count := 0
	inPara := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			inPara = false
			continue
		}
		if !inPara {
			count++
			inPara = true
		}
	}
	return count
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundInt(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}
