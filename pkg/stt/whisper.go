package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/castflow/castflow-core/pkg/audio"
)

// WhisperBatchSTT adapts a Whisper-compatible multipart transcription
// endpoint (e.g. Groq's /audio/transcriptions) to BatchSTTProvider,
// wrapping raw PCM in a WAV container before upload.
type WhisperBatchSTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
	client     *http.Client
}

// NewWhisperBatchSTT creates an adapter against url (e.g.
// "https://api.groq.com/openai/v1/audio/transcriptions") with the given
// model, defaulting to whisper-large-v3-turbo.
func NewWhisperBatchSTT(apiKey, url, model string, sampleRate int) *WhisperBatchSTT {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return &WhisperBatchSTT{apiKey: apiKey, url: url, model: model, sampleRate: sampleRate, client: http.DefaultClient}
}

func (s *WhisperBatchSTT) Transcribe(ctx context.Context, pcm []byte, lang string) (string, error) {
	wavData := audio.NewWavBuffer(pcm, s.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", err
	}
	if lang != "" {
		if err := writer.WriteField("language", lang); err != nil {
			return "", err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("whisper stt error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}

func (s *WhisperBatchSTT) Name() string {
	return "whisper-batch-stt"
}
