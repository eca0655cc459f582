package fetcher

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitContentLengthPassesThroughUnderBudget(t *testing.T) {
	content := "short content"
	out, truncated := LimitContentLength(content, 1000)
	assert.Equal(t, content, out)
	assert.False(t, truncated)
}

func TestLimitContentLengthClipsAtFourCharsPerToken(t *testing.T) {
	content := strings.Repeat("a", 100)
	out, truncated := LimitContentLength(content, 10)
	assert.True(t, truncated)
	assert.Len(t, out, 40)
}

func TestLimitContentLengthIgnoresZeroBudget(t *testing.T) {
	content := strings.Repeat("a", 100)
	out, truncated := LimitContentLength(content, 0)
	assert.False(t, truncated)
	assert.Equal(t, content, out)
}

func TestZhihuSegmentInfosUnmarshalFromTextField(t *testing.T) {
	raw := `{"content":"lead","content_need_truncated":true,"segment_infos":[{"text":"lead plus more text"}]}`
	var answer zhihuAnswer
	require.NoError(t, json.Unmarshal([]byte(raw), &answer))
	require.Len(t, answer.SegmentInfos, 1)
	assert.Equal(t, "lead plus more text", answer.SegmentInfos[0].Text)
}

func TestReconstructZhihuContentAppendsNewSegment(t *testing.T) {
	segments := []zhihuSegment{{Text: "this is entirely new trailing text"}}
	out := reconstructZhihuContent("lead", segments)
	assert.Contains(t, out, "this is entirely new trailing text")
}

func TestReconstructZhihuContentSkipsSegmentAlreadyPresent(t *testing.T) {
	segments := []zhihuSegment{{Text: "lead already here and then some"}}
	out := reconstructZhihuContent("lead already here and then some extra", segments)
	assert.Equal(t, "lead already here and then some extra", out)
}

func TestDiscourseTopicIDMatchesNumericTopicPath(t *testing.T) {
	id, ok := discourseTopicID("https://forum.example.com/t/some-slug/4821")
	assert.True(t, ok)
	assert.Equal(t, "4821", id)
}

func TestDiscourseTopicIDMatchesBareNumericPath(t *testing.T) {
	id, ok := discourseTopicID("https://forum.example.com/t/4821")
	assert.True(t, ok)
	assert.Equal(t, "4821", id)
}

func TestDiscourseTopicIDRejectsNonTopicPath(t *testing.T) {
	_, ok := discourseTopicID("https://forum.example.com/c/category/5")
	assert.False(t, ok)
}

func TestZhihuAnswerAPIURLIncludesRequiredFields(t *testing.T) {
	u := zhihuAnswerAPIURL("123456")
	assert.Contains(t, u, "/api/v4/answers/123456")
	assert.Contains(t, u, "content_need_truncated")
	assert.Contains(t, u, "segment_infos")
}

func TestBlockedForModeChecksMarkdownContent(t *testing.T) {
	res := Result{Markdown: "验证码 Access denied please verify you are human"}
	assert.True(t, blockedForMode(res, ModeMarkdown))
}

func TestBlockedForModeChecksTextContent(t *testing.T) {
	res := Result{Text: "just a normal paragraph of article content here."}
	assert.False(t, blockedForMode(res, ModeText))
}

func TestBlockedForModeDefaultsToBlockedFlag(t *testing.T) {
	res := Result{Blocked: true}
	assert.True(t, blockedForMode(res, ModeHTML))
}
