// Package urlnorm strips tracking parameters, unwraps redirector URLs,
// computes stable dedup keys and classifies hosts that need special
// handling (site-queries, Playwright-preferred hosts, Zhihu answer pages).
package urlnorm

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// trackingKeys are query parameters stripped before computing a dedup key.
var trackingKeys = map[string]bool{
	"gclid": true, "fbclid": true, "igshid": true, "spm": true,
	"spm_id_from": true, "from": true, "from_source": true, "source": true,
	"sourcefrom": true, "shareuid": true, "scene": true, "platform": true,
	"ref": true, "refer": true, "ref_source": true, "referrer": true,
	"vd_source": true, "_t": true, "_r": true, "mpshare": true,
}

func isTrackingKey(k string) bool {
	lk := strings.ToLower(k)
	if trackingKeys[lk] {
		return true
	}
	return strings.HasPrefix(lk, "utm_") || strings.HasPrefix(lk, "share_")
}

// NormalizeForDedup reduces u to a canonical form suitable for equality
// comparison during deduplication. Returns "" if u cannot be parsed as an
// absolute http(s) URL even after //  and www. upgrades.
func NormalizeForDedup(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	} else if strings.HasPrefix(raw, "www.") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if scheme == "http" && strings.HasSuffix(host, ":80") {
		host = host[:len(host)-3]
	}
	if scheme == "https" && strings.HasSuffix(host, ":443") {
		host = host[:len(host)-4]
	}

	q := u.Query()
	kept := make(url.Values)
	for k, vals := range q {
		if isTrackingKey(k) {
			continue
		}
		kept[k] = vals
	}
	var keys []string
	for k := range kept {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var qParts []string
	for _, k := range keys {
		vals := append([]string(nil), kept[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			qParts = append(qParts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}

	path := u.Path
	if path == "" {
		path = "/"
	} else if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}

	result := scheme + "://" + host + path
	if len(qParts) > 0 {
		result += "?" + strings.Join(qParts, "&")
	}
	return result
}

type redirectRule struct {
	match  func(host, path string) bool
	params []string
}

var redirectRules = []redirectRule{
	{
		match:  func(host, path string) bool { return strings.HasSuffix(host, "duckduckgo.com") && strings.HasPrefix(path, "/l/") },
		params: []string{"uddg"},
	},
	{
		match:  func(host, path string) bool { return host == "link.zhihu.com" },
		params: []string{"target"},
	},
	{
		match: func(host, path string) bool {
			return strings.HasSuffix(host, "search.brave.com") && (strings.Contains(path, "redirect") || strings.HasPrefix(host, "r."))
		},
		params: []string{"url", "q"},
	},
	{
		match:  func(host, path string) bool { return strings.HasSuffix(host, "google.com") && strings.HasPrefix(path, "/url") },
		params: []string{"q", "url"},
	},
	{
		match:  func(host, path string) bool { return strings.HasSuffix(host, "youtube.com") && strings.HasPrefix(path, "/redirect") },
		params: []string{"q", "url"},
	},
	{
		match:  func(host, path string) bool { return strings.HasSuffix(host, "steamcommunity.com") && strings.Contains(path, "linkfilter") },
		params: []string{"url"},
	},
	{
		match:  func(host, path string) bool { return host == "l.facebook.com" },
		params: []string{"u"},
	},
	{
		match:  func(host, path string) bool { return host == "redirect.pinterest.com" },
		params: []string{"uddg", "target", "url", "q", "u", "to", "dest", "destination", "redir", "redirect"},
	},
}

// UnwrapRedirect resolves known search-engine/social redirector URLs to
// their embedded target. Returns raw unchanged if no rule matches or the
// embedded target isn't itself an absolute http(s) URL.
func UnwrapRedirect(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Host)
	if host == "t.co" {
		return raw
	}
	q := u.Query()

	for _, r := range redirectRules {
		if !r.match(host, u.Path) {
			continue
		}
		for _, p := range r.params {
			if v := q.Get(p); v != "" {
				if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
					return v
				}
				break
			}
		}
	}
	return raw
}

var siteQueryRe = regexp.MustCompile(`(?i)(?:^|\s)site\s*:\s*(\S+)`)

// IsSiteQuery reports whether q contains a whitespace-delimited site: token.
func IsSiteQuery(q string) bool {
	return siteQueryRe.MatchString(q)
}

var playwrightHosts = []string{"xiaohongshu.com", "xhslink.com", "zhihu.com"}

// PreferPlaywrightForURL reports whether u's host is one the headless
// browser should render directly, bypassing the plain HTTP attempt.
func PreferPlaywrightForURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, h := range playwrightHosts {
		if strings.HasSuffix(host, h) {
			return true
		}
	}
	return false
}

var zhihuAnswerRe = regexp.MustCompile(`zhihu\.com/(?:question/\d+/)?answer/(\d+)`)

// ExtractZhihuAnswerID returns the numeric answer id embedded in a Zhihu
// answer URL, or "" if none is present.
func ExtractZhihuAnswerID(raw string) string {
	m := zhihuAnswerRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

// Hostname returns the lowercased host of raw, or "" if unparsable.
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
