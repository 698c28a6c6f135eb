// Package transport defines the client message channel contract (spec.md
// §6): a full-duplex channel carrying framed JSON messages and raw
// binary audio frames, plus the concrete message catalog and a
// coder/websocket-backed implementation.
package transport

import (
	"context"
	"encoding/json"
)

// Transport is the full-duplex channel the Audio Streamer and Turn
// Orchestrator emit client-visible events through, and the Session reads
// inbound client messages from. A send error is treated as a disconnect
// (spec.md §7).
type Transport interface {
	// SendJSON marshals data into the {"type", "data"} envelope under
	// msgType and writes it as one text frame.
	SendJSON(msgType string, data interface{}) error
	// SendBinary writes one raw binary frame (a PCM audio chunk).
	SendBinary(payload []byte) error
	// ReadMessage blocks for the next inbound frame, returning exactly
	// one of (envelope, nil) for a text frame or (nil, payload) for a
	// binary frame.
	ReadMessage(ctx context.Context) (envelope *InboundEnvelope, binary []byte, err error)
	// Close tears down the underlying connection.
	Close() error
}

// InboundEnvelope is the {"type", "data"} shape every inbound client
// message uses (spec.md §6).
type InboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// outboundEnvelope is the wire shape SendJSON produces.
type outboundEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
