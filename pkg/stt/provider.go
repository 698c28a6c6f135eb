// Package stt provides a minimal batch speech-to-text contract and one
// Whisper-compatible adapter. cmd/castflowd does not wire it in: it
// starts each Session with no STT listener attached. The streaming core itself never depends on a concrete STT
// implementation — only on the finalized-string callback contract of
// spec.md §4.5 — so this package is a convenience, not part of the
// core's dependency surface.
package stt

import "context"

// BatchSTTProvider transcribes one complete utterance of PCM audio.
// It is "batch" rather than streaming: the caller accumulates audio
// frames (e.g. between start_listening/stop_listening) and transcribes
// once silence or an explicit stop is detected.
type BatchSTTProvider interface {
	Transcribe(ctx context.Context, pcm []byte, lang string) (string, error)
	Name() string
}
