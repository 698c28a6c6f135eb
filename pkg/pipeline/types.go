// Package pipeline holds the wire types and bounded queues that carry a
// turn's text and audio between the Turn Orchestrator, TTS Worker, and
// Audio Streamer: IngressQ, SentenceQ, and AudioQ.
package pipeline

import (
	"context"

	"github.com/castflow/castflow-core/pkg/voice"
)

// IngressMessage is one finalized user message accepted from the STT
// collaborator (or a text-mode client message), waiting to start a turn.
type IngressMessage struct {
	Text string
}

// Sentence is produced by the Turn Orchestrator and consumed by the TTS
// Worker. A sentence with IsFinal set is the end-of-speaker sentinel for
// SpeakerIndex: Text is empty and no further sentences for that speaker
// appear in the turn.
//
// Ctx is the producing turn's cancellation context. Go's goroutine-based
// concurrency, unlike the spec's single cooperative event loop, lets the
// TTS Worker dequeue a sentence and still be mid-synthesis after the
// turn that produced it is cancelled; carrying Ctx lets the worker abort
// that synthesis immediately instead of relying solely on the one-shot
// queue drain an interrupt performs. Nil means "no turn to cancel
// against" (e.g. a sentence built directly in a test).
type Sentence struct {
	Text          string
	SentenceIndex int
	MessageID     string
	Character     voice.Character
	SpeakerIndex  int
	IsFinal       bool
	Ctx           context.Context
}

// Context returns s.Ctx, or fallback if the sentence was built without one.
func (s Sentence) Context(fallback context.Context) context.Context {
	if s.Ctx != nil {
		return s.Ctx
	}
	return fallback
}

// FinalSentence builds the end-of-speaker sentinel for a character's
// reply, tagged with the producing turn's ctx.
func FinalSentence(ctx context.Context, speakerIndex, sentenceIndex int, messageID string, character voice.Character) Sentence {
	return Sentence{
		SentenceIndex: sentenceIndex,
		MessageID:     messageID,
		Character:     character,
		SpeakerIndex:  speakerIndex,
		IsFinal:       true,
		Ctx:           ctx,
	}
}

// AudioChunk is produced by the TTS Worker and consumed by the Audio
// Streamer (through the Speaker-Order Scheduler). A chunk with IsFinal
// set is the end-of-speaker-audio sentinel: Payload is empty.
type AudioChunk struct {
	Payload       []byte
	SentenceIndex int
	ChunkIndex    int
	MessageID     string
	Character     voice.Character
	SpeakerIndex  int
	IsFinal       bool
}

// FinalAudioChunk builds the end-of-speaker audio sentinel, carrying the
// terminal sentence index so a listener can tell which sentence it
// follows.
func FinalAudioChunk(speakerIndex, sentenceIndex int, messageID string, character voice.Character) AudioChunk {
	return AudioChunk{
		SentenceIndex: sentenceIndex,
		MessageID:     messageID,
		Character:     character,
		SpeakerIndex:  speakerIndex,
		IsFinal:       true,
	}
}
