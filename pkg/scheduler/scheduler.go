// Package scheduler implements the Speaker-Order Scheduler (spec.md
// §4.3): a pure ordering filter over the audio chunk stream that
// releases chunks belonging to the current speaker immediately, buffers
// chunks for later speakers, and advances on an end-of-speaker
// sentinel. It has no knowledge of queues, transports, or turns — it is
// a deterministic function of its input sequence and initial state,
// which is what makes it independently testable.
package scheduler

import "github.com/castflow/castflow-core/pkg/pipeline"

// Scheduler holds the ordering state for one turn's audio stream.
type Scheduler struct {
	current int
	buffers map[int][]pipeline.AudioChunk
}

// New creates a scheduler starting at speaker_index 0, the state for a
// fresh turn.
func New() *Scheduler {
	return &Scheduler{buffers: make(map[int][]pipeline.AudioChunk)}
}

// Reset returns the scheduler to its initial state for a new turn:
// current_speaker_index 0 and no buffers. Chunks carry no turn tag, so
// after a reset a late chunk from the previous turn is treated like any
// other: speaker_index 0 is released (Case A) and higher indices are
// buffered (Case C/D). Keeping stale audio out after an interrupt rests
// on the queue drain and on the TTS Worker stopping on the turn's
// cancelled context, not on this reset.
func (s *Scheduler) Reset() {
	s.current = 0
	s.buffers = make(map[int][]pipeline.AudioChunk)
}

// CurrentSpeaker reports the speaker_index the scheduler is currently
// releasing.
func (s *Scheduler) CurrentSpeaker() int {
	return s.current
}

// Push feeds one chunk through the scheduler contract (spec.md §4.3
// table) and returns, in order, every chunk the scheduler releases as a
// consequence — zero chunks if c is buffered or discarded, one chunk in
// the ordinary case, or more than one if releasing c triggers a flush of
// already-buffered later speakers.
func (s *Scheduler) Push(c pipeline.AudioChunk) []pipeline.AudioChunk {
	switch {
	case c.SpeakerIndex < s.current:
		// Case E: late arrival after interrupt/advance — discard silently.
		return nil

	case c.SpeakerIndex == s.current && !c.IsFinal:
		// Case A: release immediately.
		return []pipeline.AudioChunk{c}

	case c.SpeakerIndex == s.current && c.IsFinal:
		// Case B: release, advance, flush.
		released := []pipeline.AudioChunk{c}
		s.current++
		released = append(released, s.flush()...)
		return released

	default:
		// Cases C and D: c.SpeakerIndex > s.current — buffer it.
		s.buffers[c.SpeakerIndex] = append(s.buffers[c.SpeakerIndex], c)
		return nil
	}
}

// flush releases buffered chunks for the new current speaker, and the
// one after it, and so on, stopping as soon as the next speaker's
// buffer is absent or has been exhausted without a sentinel (meaning
// that speaker is still in-flight).
func (s *Scheduler) flush() []pipeline.AudioChunk {
	var released []pipeline.AudioChunk
	for {
		buffered, ok := s.buffers[s.current]
		if !ok {
			return released
		}
		delete(s.buffers, s.current)

		advanced := false
		for _, c := range buffered {
			released = append(released, c)
			if c.IsFinal {
				s.current++
				advanced = true
			}
		}
		if !advanced {
			return released
		}
	}
}
