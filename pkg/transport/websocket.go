package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"
)

// WebSocketTransport adapts a server-side coder/websocket connection to
// the Transport interface, multiplexing JSON control messages as text
// frames and PCM audio as binary frames over the same connection
// (spec.md §6).
type WebSocketTransport struct {
	conn *websocket.Conn
}

// NewWebSocketTransport wraps an already-accepted connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{conn: conn}
}

func (t *WebSocketTransport) SendJSON(msgType string, data interface{}) error {
	env := outboundEnvelope{Type: msgType, Data: data}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return t.conn.Write(context.Background(), websocket.MessageText, payload)
}

func (t *WebSocketTransport) SendBinary(payload []byte) error {
	return t.conn.Write(context.Background(), websocket.MessageBinary, payload)
}

func (t *WebSocketTransport) ReadMessage(ctx context.Context) (*InboundEnvelope, []byte, error) {
	msgType, payload, err := t.conn.Read(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read frame: %w", err)
	}

	switch msgType {
	case websocket.MessageBinary:
		return nil, payload, nil
	case websocket.MessageText:
		var env InboundEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, nil, fmt.Errorf("unmarshal envelope: %w", err)
		}
		return &env, nil, nil
	default:
		return nil, nil, fmt.Errorf("unexpected frame type %v", msgType)
	}
}

func (t *WebSocketTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "session closed")
}
