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

// GoogleStreamLLM streams chat completions from the Gemini
// streamGenerateContent endpoint over server-sent events.
type GoogleStreamLLM struct {
	apiKey string
	url    string
	model  string
	client *http.Client
}

// NewGoogleStreamLLM creates an adapter for the given model, defaulting
// to gemini-1.5-flash.
func NewGoogleStreamLLM(apiKey, model string) *GoogleStreamLLM {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GoogleStreamLLM{
		apiKey: apiKey,
		url:    "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":streamGenerateContent",
		model:  model,
		client: http.DefaultClient,
	}
}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

func (l *GoogleStreamLLM) StreamComplete(ctx context.Context, messages []Message) (<-chan Token, error) {
	var contents []googleContent
	var systemText string
	for _, m := range messages {
		switch m.Role {
		case "system":
			// Gemini has no system role on this endpoint; fold it into
			// a leading user turn instead of dropping it.
			systemText = m.Content
		case "assistant":
			contents = append(contents, googleContent{Role: "model", Parts: []googlePart{{Text: m.Content}}})
		default:
			contents = append(contents, googleContent{Role: "user", Parts: []googlePart{{Text: m.Content}}})
		}
	}
	if systemText != "" {
		contents = append([]googleContent{{Role: "user", Parts: []googlePart{{Text: systemText}}}}, contents...)
	}

	payload := map[string]interface{}{"contents": contents}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.url+"?alt=sse&key="+l.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("google llm error (status %d): %v", resp.StatusCode, errResp)
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

			var chunk struct {
				Candidates []struct {
					Content struct {
						Parts []googlePart `json:"parts"`
					} `json:"content"`
					FinishReason string `json:"finishReason"`
				} `json:"candidates"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			for _, cand := range chunk.Candidates {
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						out <- Token{Text: part.Text}
					}
				}
				if cand.FinishReason != "" {
					out <- Token{Done: true}
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			out <- Token{Err: fmt.Errorf("google stream read: %w", err)}
			return
		}
		out <- Token{Done: true}
	}()

	return out, nil
}

func (l *GoogleStreamLLM) Name() string {
	return "google-llm"
}
