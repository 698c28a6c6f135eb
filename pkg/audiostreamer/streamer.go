// Package audiostreamer implements the Audio Streamer (spec.md §4.3): a
// single long-lived task that loops on AudioQ, passes each chunk through
// the Speaker-Order Scheduler, and emits the resulting client-visible
// audio_stream_start/audio_chunk/audio_stream_stop messages.
package audiostreamer

import (
	"context"
	"sync"

	"github.com/castflow/castflow-core/pkg/clog"
	"github.com/castflow/castflow-core/pkg/pipeline"
	"github.com/castflow/castflow-core/pkg/scheduler"
	"github.com/castflow/castflow-core/pkg/transport"
)

// Streamer tracks the currently-open client audio stream so it can
// decide whether a released chunk starts a new stream, continues one,
// or closes it.
type Streamer struct {
	audioQ    *pipeline.Queue[pipeline.AudioChunk]
	sched     *scheduler.Scheduler
	transport transport.Transport
	log       clog.Logger

	// mu guards the fields below: Run's own goroutine reads and writes
	// them while emitting, but SetSuppressed and ResetScheduler are
	// called from the Session's goroutine (an external barge-in policy
	// or the interrupt path), so plain fields would race.
	mu               sync.Mutex
	currentMessageID string
	// suppressed is spec.md:122's suppress flag: when set, audio_chunk
	// metadata and lifecycle messages still emit, but the PCM payload
	// itself is skipped. It clears automatically on the next
	// audio_stream_stop, giving a "finish this speaker silently"
	// primitive for courtesy barge-in. Nothing in this module sets it by
	// default; it exists for an external policy to drive via
	// SetSuppressed.
	suppressed bool
}

// New creates an Audio Streamer reading from audioQ and emitting over t.
func New(audioQ *pipeline.Queue[pipeline.AudioChunk], t transport.Transport, log clog.Logger) *Streamer {
	if log == nil {
		log = clog.NoOpLogger{}
	}
	return &Streamer{audioQ: audioQ, sched: scheduler.New(), transport: t, log: log}
}

// SetSuppressed sets or clears the suppress flag (spec.md:122). It is
// safe to call concurrently with Run.
func (s *Streamer) SetSuppressed(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressed = v
}

// Suppressed reports the current suppress flag state.
func (s *Streamer) Suppressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressed
}

// ResetScheduler returns the ordering state to turn-start for a new
// turn (speaker 0, no buffered chunks, no open client stream).
// spec.md:176 lists the suppress flag alongside current_speaker_index,
// buffers, and current_message_id as state an interrupt resets, so it
// is cleared here too.
func (s *Streamer) ResetScheduler() {
	s.sched.Reset()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentMessageID = ""
	s.suppressed = false
}

// Run blocks until ctx is done (whole-session shutdown); it is never
// stopped per-turn.
func (s *Streamer) Run(ctx context.Context) {
	for {
		chunk, err := s.audioQ.Get(ctx)
		if err != nil {
			return
		}
		for _, released := range s.sched.Push(chunk) {
			if err := s.emit(released); err != nil {
				s.log.Warn("audio streamer: send failed, treating as disconnect", "error", err.Error())
				return
			}
		}
	}
}

func (s *Streamer) emit(c pipeline.AudioChunk) error {
	if c.IsFinal {
		err := s.transport.SendJSON(transport.EventAudioStreamStop, transport.AudioStreamStop{
			MessageID:     c.MessageID,
			CharacterID:   c.Character.ID,
			CharacterName: c.Character.Name,
			SpeakerIndex:  c.SpeakerIndex,
		})
		s.mu.Lock()
		s.currentMessageID = ""
		s.suppressed = false
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	isNewStream := s.currentMessageID != c.MessageID
	s.mu.Unlock()

	if isNewStream {
		if err := s.transport.SendJSON(transport.EventAudioStreamStart, transport.AudioStreamStart{
			MessageID:     c.MessageID,
			CharacterID:   c.Character.ID,
			CharacterName: c.Character.Name,
			SpeakerIndex:  c.SpeakerIndex,
			SampleRate:    c.Character.Voice.SampleRate,
		}); err != nil {
			return err
		}
		s.mu.Lock()
		s.currentMessageID = c.MessageID
		s.mu.Unlock()
	}

	if err := s.transport.SendJSON(transport.EventAudioChunk, transport.AudioChunkMeta{
		MessageID:     c.MessageID,
		CharacterID:   c.Character.ID,
		CharacterName: c.Character.Name,
		SpeakerIndex:  c.SpeakerIndex,
		SentenceIndex: c.SentenceIndex,
		ChunkIndex:    c.ChunkIndex,
	}); err != nil {
		return err
	}

	if s.Suppressed() {
		return nil
	}

	return s.transport.SendBinary(c.Payload)
}
