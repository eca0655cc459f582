package htmlinspect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikeChallenge(t *testing.T) {
	assert.True(t, LooksLikeChallenge("Just a moment... checking your browser"))
	assert.True(t, LooksLikeChallenge("Cloudflare Ray ID: abc123"))
	assert.False(t, LooksLikeChallenge("normal article content about golang"))
}

func TestLooksLikeBlocked(t *testing.T) {
	assert.True(t, LooksLikeBlocked("Please complete the CAPTCHA to continue"))
	assert.True(t, LooksLikeBlocked("<html><body>访问异常，请完成验证</body></html>"))
	assert.True(t, LooksLikeBlocked("请先登录后查看更多内容"))
	assert.False(t, LooksLikeBlocked("<html><body>A normal blog post about cooking.</body></html>"))
}

func TestHTMLToText(t *testing.T) {
	html := `<html><body><script>bad()</script><nav>menu</nav><p>Hello world</p><p>Second line</p></body></html>`
	text := HTMLToText(html)
	assert.Contains(t, text, "Hello world")
	assert.Contains(t, text, "Second line")
	assert.NotContains(t, text, "bad()")
	assert.NotContains(t, text, "menu")
}

func TestExtractMetadata(t *testing.T) {
	html := `<html><head>
		<title>Fallback Title</title>
		<meta property="og:title" content="OG Title">
		<meta name="description" content="A description">
		<link rel="canonical" href="https://example.com/canonical">
	</head><body>
		<a href="https://example.com/a">Link A</a>
		<a href="https://example.com/b">Link B</a>
	</body></html>`
	md := ExtractMetadata(html, 0)
	assert.Equal(t, "OG Title", md.Title)
	assert.Equal(t, "A description", md.Description)
	assert.Equal(t, "https://example.com/canonical", md.CanonicalURL)
	if assert.Len(t, md.Links, 2) {
		assert.Equal(t, "https://example.com/a", md.Links[0].Href)
	}
	assert.False(t, md.Truncated)
}

func TestExtractMetadataTruncatesLinks(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		b.WriteString(`<a href="https://example.com/very/long/path/that/is/quite/lengthy/indeed/`)
		b.WriteString("x")
		b.WriteString(`">link text here that is also somewhat long</a>`)
	}
	b.WriteString("</body></html>")
	md := ExtractMetadata(b.String(), 200)
	assert.True(t, md.Truncated)
	assert.Less(t, len(md.Links), 50)
}
