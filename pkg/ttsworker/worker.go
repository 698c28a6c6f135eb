// Package ttsworker implements the TTS Worker (spec.md §4.2): a
// single long-lived task that turns sentences into audio chunks via a
// pluggable tts.Provider.
package ttsworker

import (
	"context"

	"github.com/castflow/castflow-core/pkg/clog"
	"github.com/castflow/castflow-core/pkg/pipeline"
	"github.com/castflow/castflow-core/pkg/tts"
)

// Worker loops on SentenceQ for the lifetime of the session, never
// maintaining per-turn state: a TTS failure on one sentence is logged
// and skipped, never propagated, and never emits a premature sentinel.
type Worker struct {
	sentenceQ *pipeline.Queue[pipeline.Sentence]
	audioQ    *pipeline.Queue[pipeline.AudioChunk]
	provider  tts.Provider
	lang      string
	log       clog.Logger
}

// New creates a TTS Worker reading from sentenceQ and writing to audioQ.
func New(sentenceQ *pipeline.Queue[pipeline.Sentence], audioQ *pipeline.Queue[pipeline.AudioChunk], provider tts.Provider, lang string, log clog.Logger) *Worker {
	if log == nil {
		log = clog.NoOpLogger{}
	}
	return &Worker{sentenceQ: sentenceQ, audioQ: audioQ, provider: provider, lang: lang, log: log}
}

// Run blocks until ctx is done, which is a whole-session shutdown
// signal, not a per-turn one: interrupts are implemented by draining
// queues, and this loop keeps running on the now-empty queue.
func (w *Worker) Run(ctx context.Context) {
	for {
		sentence, err := w.sentenceQ.Get(ctx)
		if err != nil {
			return
		}
		w.handle(ctx, sentence)
	}
}

// handle synthesizes one sentence. It runs synthesis and the resulting
// AudioQ puts against s.Context(ctx) rather than the session-lifetime
// ctx: that turn-scoped context is cancelled the instant the Session
// interrupts the turn that produced s, so a sentence already dequeued
// before the interrupt's queue drain still stops producing audio
// immediately instead of racing the drain to completion.
func (w *Worker) handle(ctx context.Context, s pipeline.Sentence) {
	turnCtx := s.Context(ctx)

	if s.IsFinal {
		sentinel := pipeline.FinalAudioChunk(s.SpeakerIndex, s.SentenceIndex, s.MessageID, s.Character)
		if err := w.audioQ.Put(turnCtx, sentinel); err != nil {
			w.log.Warn("tts worker: dropped final sentinel on shutdown or interrupt", "message_id", s.MessageID, "speaker_index", s.SpeakerIndex)
		}
		return
	}

	chunkIndex := 0
	err := w.provider.StreamSynthesize(turnCtx, s.Text, s.Character.Voice, w.lang, func(payload []byte) error {
		chunk := pipeline.AudioChunk{
			Payload:       payload,
			SentenceIndex: s.SentenceIndex,
			ChunkIndex:    chunkIndex,
			MessageID:     s.MessageID,
			Character:     s.Character,
			SpeakerIndex:  s.SpeakerIndex,
		}
		chunkIndex++
		return w.audioQ.Put(turnCtx, chunk)
	})
	if err != nil {
		w.log.Warn("tts worker: synthesis failed, skipping sentence", "message_id", s.MessageID, "sentence_index", s.SentenceIndex, "error", err.Error())
	}
}
