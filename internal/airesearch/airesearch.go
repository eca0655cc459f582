// Package airesearch prompts a chat-completions LLM for a research answer,
// consuming either an SSE stream or a single JSON body, and parses the
// resulting text for source links.
package airesearch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/anatolykoptev/go_websearch/internal/httpclient"
	"github.com/anatolykoptev/go_websearch/internal/metrics"
)

// researchPromptTemplate instructs the model to answer in prose with no
// URLs, then append a SOURCES: block listing up to 30 reference URLs.
const researchPromptTemplate = `你是一个研究型搜索助手。请通过联网检索与交叉验证，给出高质量、细节充分的回答，避免编造。
输出要求：
1) 正文：自然语言写作，不要输出任何 URL/链接（包括 http/https/www 开头内容），也不要出现“参考来源/References/Sources”等段落标题。
2) 末尾追加一段 SOURCES（必须以单独一行 'SOURCES:' 开头），其后每行一个你参考过的来源 URL（最多 30 条）。
用户问题：%s`

// ResearchPrompt builds the fixed research prompt for query.
func ResearchPrompt(query string) string {
	return fmt.Sprintf(researchPromptTemplate, query)
}

// CallLLM posts prompt to the configured chat-completions endpoint and
// returns the assistant's content and reasoning, consuming an SSE stream or
// a plain JSON body depending on the response's Content-Type.
func CallLLM(ctx context.Context, client *httpclient.Client, baseURL, apiKey, model, prompt string) (content, reasoning string, err error) {
	metrics.IncrLLMCalls()
	content, reasoning, err = callLLM(ctx, client, baseURL, apiKey, model, prompt)
	if err != nil {
		metrics.IncrLLMErrors()
	}
	return content, reasoning, err
}

func callLLM(ctx context.Context, client *httpclient.Client, baseURL, apiKey, model, prompt string) (content, reasoning string, err error) {
	if apiKey == "" || baseURL == "" {
		return "", "", fmt.Errorf("airesearch: llm not configured")
	}
	body, err := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", "", err
	}

	headers := map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
		"Accept":        "application/json, text/event-stream",
	}

	target := strings.TrimRight(baseURL, "/") + "/chat/completions"
	resp, err := client.PostStream(ctx, target, headers, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "text/event-stream") {
		return consumeSSE(resp.Body)
	}
	return consumeJSON(resp.Body)
}

type sseChoice struct {
	Delta struct {
		Content          string `json:"content"`
		ReasoningContent string `json:"reasoning_content"`
		Reasoning        string `json:"reasoning"`
		Analysis         string `json:"analysis"`
		Thinking         string `json:"thinking"`
	} `json:"delta"`
}

type sseEvent struct {
	Choices []sseChoice `json:"choices"`
}

// consumeSSE parses an SSE stream read directly off the response body,
// accumulating content/reasoning deltas chunk by chunk and stopping at a
// `data: [DONE]` line. If the underlying reader fails mid-stream (a dropped
// connection, a proxy timeout), bufio.Scanner simply stops yielding further
// lines and this returns whatever was accumulated before the failure rather
// than an error, since the caller cares about partial output over a strict
// all-or-nothing read.
func consumeSSE(r io.Reader) (content, reasoning string, err error) {
	var contentParts, reasoningParts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}
		var event sseEvent
		if jsonErr := json.Unmarshal([]byte(data), &event); jsonErr != nil {
			continue
		}
		for _, choice := range event.Choices {
			if choice.Delta.Content != "" {
				contentParts = append(contentParts, choice.Delta.Content)
			}
			reasoningPiece := firstNonEmpty(
				choice.Delta.ReasoningContent, choice.Delta.Reasoning,
				choice.Delta.Analysis, choice.Delta.Thinking,
			)
			if reasoningPiece != "" {
				reasoningParts = append(reasoningParts, reasoningPiece)
			}
		}
	}
	return strings.Join(contentParts, ""), strings.Join(reasoningParts, ""), nil
}

type jsonResponse struct {
	Choices []struct {
		Message struct {
			Content          json.RawMessage `json:"content"`
			ReasoningContent json.RawMessage `json:"reasoning_content"`
			Reasoning        json.RawMessage `json:"reasoning"`
			Analysis         json.RawMessage `json:"analysis"`
		} `json:"message"`
	} `json:"choices"`
}

// consumeJSON reads r to completion and decodes a single chat-completions
// body. A read error still yields whatever bytes were read before it (per
// io.ReadAll's documented partial-read behavior) instead of discarding them.
func consumeJSON(r io.Reader) (content, reasoning string, err error) {
	raw, _ := io.ReadAll(r)
	var resp jsonResponse
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr != nil || len(resp.Choices) == 0 {
		return string(raw), "", nil
	}
	msg := resp.Choices[0].Message
	content = flattenContent(msg.Content)
	reasoning = firstNonEmpty(
		flattenContent(msg.ReasoningContent),
		flattenContent(msg.Reasoning),
		flattenContent(msg.Analysis),
	)
	return content, reasoning, nil
}

// flattenContent decodes a content field that may be a plain string or a
// list of {"text": "..."} parts, joining list parts.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asList []json.RawMessage
	if err := json.Unmarshal(raw, &asList); err == nil {
		var parts []string
		for _, item := range asList {
			var part struct {
				Text string `json:"text"`
			}
			if json.Unmarshal(item, &part) == nil && part.Text != "" {
				parts = append(parts, part.Text)
				continue
			}
			var s string
			if json.Unmarshal(item, &s) == nil {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "")
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
