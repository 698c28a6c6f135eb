package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OpenAIStreamLLM streams chat completions from the OpenAI-compatible
// /v1/chat/completions endpoint using server-sent events.
type OpenAIStreamLLM struct {
	apiKey string
	url    string
	model  string
	client *http.Client
}

// NewOpenAIStreamLLM creates an adapter for the given model, defaulting
// to gpt-4o.
func NewOpenAIStreamLLM(apiKey, model string) *OpenAIStreamLLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIStreamLLM{
		apiKey: apiKey,
		url:    "https://api.openai.com/v1/chat/completions",
		model:  model,
		client: http.DefaultClient,
	}
}

func (l *OpenAIStreamLLM) StreamComplete(ctx context.Context, messages []Message) (<-chan Token, error) {
	payload := map[string]interface{}{
		"model":    l.model,
		"messages": messages,
		"stream":   true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("openai llm error (status %d): %v", resp.StatusCode, errResp)
	}

	out := make(chan Token, 8)
	go func() {
		defer resp.Body.Close()
		defer close(out)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				out <- Token{Done: true}
				return
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason *string `json:"finish_reason"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					out <- Token{Text: choice.Delta.Content}
				}
				if choice.FinishReason != nil {
					out <- Token{Done: true}
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			out <- Token{Err: fmt.Errorf("openai stream read: %w", err)}
			return
		}
		out <- Token{Done: true}
	}()

	return out, nil
}

func (l *OpenAIStreamLLM) Name() string {
	return "openai-llm"
}
