// Package noise loads regex/substring noise rules and strips matching lines
// from extracted text or markdown.
package noise

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// Rule is a compiled noise rule: either a regex tested against the trimmed
// line, or a lowercase substring tested against the line with whitespace,
// zero-width characters and punctuation stripped.
type Rule struct {
	regex     *regexp.Regexp
	substring string
}

func (r Rule) matches(line string) bool {
	if r.regex != nil {
		return r.regex.MatchString(strings.TrimSpace(line))
	}
	compact := compactLine(line)
	if utf8.RuneCountInString(compact) > 40 {
		return false
	}
	return strings.Contains(compact, r.substring)
}

var zeroWidth = []rune{0x200B, 0x200C, 0x200D, 0xFEFF}

func compactLine(line string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(line) {
		isZW := false
		for _, zw := range zeroWidth {
			if r == zw {
				isZW = true
				break
			}
		}
		if isZW || r == ' ' || r == '\t' {
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var builtinFallback = []Rule{
	{regex: regexp.MustCompile(`(?i)^\s*(skip to main content|back to top|reload|dismiss alert)\s*$`)},
	{regex: regexp.MustCompile(`登录\|注册\|请先登录\|立即登录`)},
	{substring: "打开app"},
	{substring: "下载app"},
	{substring: "访问异常"},
	{substring: "安全验证"},
	{substring: "captcha"},
	{substring: "robot check"},
}

var (
	once    sync.Once
	cached  []Rule
	rulesDir string
)

// SetRulesDir overrides the directory rules are loaded from. Test-only.
func SetRulesDir(dir string) {
	rulesDir = dir
}

// ResetCacheForTest clears the lazily-loaded rule cache. Test-only.
func ResetCacheForTest() {
	once = sync.Once{}
	cached = nil
}

func rules() []Rule {
	once.Do(func() {
		dir := rulesDir
		if dir == "" {
			dir = "rules"
		}
		var all []Rule
		for _, name := range []string{"noise_zh.txt", "noise_en.txt"} {
			path := filepath.Join(dir, name)
			parsed, err := parseRuleFile(path)
			if err != nil {
				continue
			}
			all = append(all, parsed...)
		}
		if len(all) == 0 {
			all = builtinFallback
		}
		cached = all
	})
	return cached
}

func parseRuleFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Rule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "re:"):
			pat := strings.TrimPrefix(line, "re:")
			re, err := regexp.Compile("(?i)" + pat)
			if err != nil {
				continue
			}
			out = append(out, Rule{regex: re})
		case strings.HasPrefix(line, "sub:"):
			needle := compactLine(strings.TrimPrefix(line, "sub:"))
			if needle != "" {
				out = append(out, Rule{substring: needle})
			}
		default:
			needle := compactLine(line)
			if needle != "" {
				out = append(out, Rule{substring: needle})
			}
		}
	}
	return out, scanner.Err()
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// CleanExtractedText drops noise-matching lines from plain text, collapsing
// runs of 3+ blank lines to 2 while otherwise preserving blank-line
// structure.
func CleanExtractedText(s string) string {
	lines := strings.Split(s, "\n")
	rs := rules()
	var kept []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			kept = append(kept, "")
			continue
		}
		if matchesAny(rs, line) {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, "\n")
	return blankRunRe.ReplaceAllString(out, "\n\n")
}

var fenceRe = regexp.MustCompile("^\\s*```")
var headingRe = regexp.MustCompile(`^(#{1,6})\s*(.*?)\s*#*\s*$`)

// CleanExtractedMarkdown is like CleanExtractedText but skips lines inside
// fenced code blocks and tests heading content (with trailing #s stripped)
// against the rules rather than the raw heading line.
func CleanExtractedMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	rs := rules()
	var kept []string
	inFence := false
	for _, line := range lines {
		if fenceRe.MatchString(line) {
			inFence = !inFence
			kept = append(kept, line)
			continue
		}
		if inFence {
			kept = append(kept, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			kept = append(kept, "")
			continue
		}
		testLine := line
		if m := headingRe.FindStringSubmatch(line); m != nil {
			testLine = m[2]
		}
		if matchesAny(rs, testLine) {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, "\n")
	return blankRunRe.ReplaceAllString(out, "\n\n")
}

// IsNoiseLine reports whether line matches any loaded noise rule. Used by
// the quality scorer to recompute a real noise ratio over already-cleaned
// content, since fenced-code-block lines are deliberately exempted from
// CleanExtractedMarkdown's stripping pass and so can still carry noise.
func IsNoiseLine(line string) bool {
	return matchesAny(rules(), line)
}

func matchesAny(rs []Rule, line string) bool {
	for _, r := range rs {
		if r.matches(line) {
			return true
		}
	}
	return false
}
