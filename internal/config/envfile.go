package config

import (
	"fmt"
	"os"
	"strings"
)

// LoadEnvFile parses a .env-style file at path and sets values into the
// process environment, but only for keys not already present. Missing files
// are silently ignored; unreadable ones are reported to stderr.
func LoadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "[config] cannot read %s: %v\n", path, err)
		}
		return
	}
	lines := strings.Split(string(data), "\n")
	idx := 0
	for idx < len(lines) {
		raw := strings.TrimSpace(lines[idx])
		if raw == "" || strings.HasPrefix(raw, "#") {
			idx++
			continue
		}
		raw = strings.TrimPrefix(raw, "export ")
		raw = strings.TrimSpace(raw)
		eq := strings.IndexByte(raw, '=')
		if eq < 0 {
			idx++
			continue
		}
		key := strings.TrimSpace(raw[:eq])
		if key == "" {
			idx++
			continue
		}
		value, next := parseEnvValue(raw[eq+1:], lines, idx)
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
		idx = next + 1
	}
}

// parseEnvValue parses the right-hand side of a key=value line, handling
// single/double quoting (including multi-line quoted values) and inline
// comment stripping for unquoted values. Returns the parsed value and the
// index of the last line consumed.
func parseEnvValue(valuePart string, lines []string, startIdx int) (string, int) {
	valuePart = strings.TrimLeft(valuePart, " \t")
	if valuePart == "" {
		return "", startIdx
	}

	quote := valuePart[0]
	if quote != '\'' && quote != '"' {
		return strings.TrimRight(stripInlineCommentUnquoted(valuePart), " \t"), startIdx
	}

	idx := startIdx
	buffer := valuePart[1:]
	for {
		if end := findUnescapedQuote(buffer, quote); end >= 0 {
			return unescapeQuotedValue(buffer[:end], quote), idx
		}
		idx++
		if idx >= len(lines) {
			return unescapeQuotedValue(buffer, quote), idx - 1
		}
		buffer += "\n" + lines[idx]
	}
}

func findUnescapedQuote(text string, quote byte) int {
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == quote {
			return i
		}
	}
	return -1
}

func unescapeQuotedValue(value string, quote byte) string {
	if quote != '\'' && quote != '"' {
		return value
	}
	var b strings.Builder
	i := 0
	for i < len(value) {
		ch := value[i]
		if ch == '\\' && i+1 < len(value) {
			next := value[i+1]
			if quote == '"' {
				switch next {
				case 'n':
					b.WriteByte('\n')
					i += 2
					continue
				case 'r':
					b.WriteByte('\r')
					i += 2
					continue
				case 't':
					b.WriteByte('\t')
					i += 2
					continue
				case '\\':
					b.WriteByte('\\')
					i += 2
					continue
				case '"':
					b.WriteByte('"')
					i += 2
					continue
				}
			} else if next == '\\' || next == '\'' {
				b.WriteByte(next)
				i += 2
				continue
			}
		}
		b.WriteByte(ch)
		i++
	}
	return b.String()
}

func stripInlineCommentUnquoted(value string) string {
	escaped := false
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '#' && (i == 0 || value[i-1] == ' ' || value[i-1] == '\t') {
			return strings.TrimRight(value[:i], " \t")
		}
	}
	return strings.TrimRight(value, " \t")
}
