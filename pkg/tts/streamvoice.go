package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/castflow/castflow-core/pkg/voice"
)

// StreamVoiceTTS is a generic streaming TTS adapter over a coder/websocket
// connection: it sends one JSON synthesis request per sentence and reads
// back a mix of binary PCM frames and short text control frames ("EOS",
// "ERR:...") until end of stream.
type StreamVoiceTTS struct {
	apiKey string
	host   string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewStreamVoiceTTS creates an adapter against host (e.g.
// "api.streamvoice.example") authenticating with apiKey.
func NewStreamVoiceTTS(apiKey, host string) *StreamVoiceTTS {
	return &StreamVoiceTTS{apiKey: apiKey, host: host}
}

func (t *StreamVoiceTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: "wss", Host: t.host, Path: "/v1/stream", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.host, err)
	}

	t.conn = conn
	return conn, nil
}

func (t *StreamVoiceTTS) StreamSynthesize(ctx context.Context, text string, v voice.Descriptor, lang string, onChunk func([]byte) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]interface{}{
		"text":        text,
		"voice_id":    v.VoiceID,
		"sample_rate": v.SampleRate,
		"lang":        lang,
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "write failed")
		return fmt.Errorf("send synthesis request: %w", err)
	}

	for {
		msgType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "read failed")
			return fmt.Errorf("read from %s: %w", t.host, err)
		}

		switch msgType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("%s error: %s", t.host, msg)
			}
		}
	}
}

func (t *StreamVoiceTTS) Name() string {
	return "streamvoice"
}

func (t *StreamVoiceTTS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
