package airesearch

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failAfterReader yields the bytes of s and then fails every subsequent
// Read, simulating a dropped connection mid-stream.
type failAfterReader struct {
	r   *strings.Reader
	err error
}

func (f *failAfterReader) Read(p []byte) (int, error) {
	if f.r.Len() == 0 {
		return 0, f.err
	}
	return f.r.Read(p)
}

func TestConsumeSSEAccumulatesContentAcrossChunks(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello, \"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"world.\"}}]}\n" +
		"data: [DONE]\n"
	content, _, err := consumeSSE(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Hello, world.", content)
}

func TestConsumeSSEReturnsPartialOutputOnMidStreamFailure(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"content\":\"partial answer\"}}]}\n"
	r := &failAfterReader{r: strings.NewReader(raw), err: errors.New("connection reset")}
	content, _, err := consumeSSE(r)
	require.NoError(t, err)
	assert.Equal(t, "partial answer", content)
}

func TestConsumeSSECollectsReasoningFromFirstAvailableField(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"thinking...\"}}]}\n" +
		"data: [DONE]\n"
	_, reasoning, err := consumeSSE(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "thinking...", reasoning)
}

func TestConsumeJSONDecodesChatCompletionBody(t *testing.T) {
	raw := `{"choices":[{"message":{"content":"the answer","reasoning":"because"}}]}`
	content, reasoning, err := consumeJSON(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "the answer", content)
	assert.Equal(t, "because", reasoning)
}

func TestConsumeJSONFallsBackToRawTextOnMalformedBody(t *testing.T) {
	content, _, err := consumeJSON(strings.NewReader("not json"))
	require.NoError(t, err)
	assert.Equal(t, "not json", content)
}

func TestConsumeJSONKeepsPartialBytesOnMidStreamFailure(t *testing.T) {
	raw := "plain text read before the connection dropped"
	r := &failAfterReader{r: strings.NewReader(raw), err: io.ErrUnexpectedEOF}
	content, _, err := consumeJSON(r)
	require.NoError(t, err)
	assert.Equal(t, raw, content)
}
