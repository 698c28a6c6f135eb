// Package tts defines the streaming speech-synthesis provider contract
// consumed by the TTS Worker (spec.md §4.2) and a concrete
// coder/websocket-backed adapter.
package tts

import (
	"context"

	"github.com/castflow/castflow-core/pkg/voice"
)

// Provider synthesizes one sentence of text into a stream of raw PCM
// chunks, invoking onChunk in arrival order. A provider error aborts the
// synthesis for that sentence only; the caller decides whether to skip
// or retry (spec.md §7 error policy).
type Provider interface {
	StreamSynthesize(ctx context.Context, text string, v voice.Descriptor, lang string, onChunk func([]byte) error) error
	Name() string
}
