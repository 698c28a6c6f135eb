package scheduler

import (
	"reflect"
	"testing"

	"github.com/castflow/castflow-core/pkg/pipeline"
)

func chunk(speaker, sentence, idx int, final bool) pipeline.AudioChunk {
	return pipeline.AudioChunk{SpeakerIndex: speaker, SentenceIndex: sentence, ChunkIndex: idx, IsFinal: final}
}

func releaseAll(s *Scheduler, in []pipeline.AudioChunk) []pipeline.AudioChunk {
	var out []pipeline.AudioChunk
	for _, c := range in {
		out = append(out, s.Push(c)...)
	}
	return out
}

func TestScheduler_SingleSpeakerInOrder(t *testing.T) {
	s := New()
	in := []pipeline.AudioChunk{
		chunk(0, 0, 0, false),
		chunk(0, 0, 1, false),
		chunk(0, 1, 0, false),
		chunk(0, 1, 1, true),
	}
	got := releaseAll(s, in)
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("expected immediate in-order release, got %+v", got)
	}
	if s.CurrentSpeaker() != 1 {
		t.Fatalf("expected current speaker to advance to 1, got %d", s.CurrentSpeaker())
	}
}

// TestScheduler_InterleavedArrival covers spec.md scenario 2: speaker 1's
// chunks arrive in AudioQ before speaker 0 finishes, but must not be
// released before speaker 0's stream-stop.
func TestScheduler_InterleavedArrival(t *testing.T) {
	s := New()

	var released []pipeline.AudioChunk

	released = append(released, s.Push(chunk(0, 0, 0, false))...)
	released = append(released, s.Push(chunk(1, 0, 0, false))...) // arrives early, must buffer
	released = append(released, s.Push(chunk(1, 0, 1, true))...) // speaker 1 finishes fast, still buffered
	released = append(released, s.Push(chunk(0, 0, 1, true))...) // speaker 0 finishes -> flush releases speaker 1

	want := []pipeline.AudioChunk{
		chunk(0, 0, 0, false),
		chunk(0, 0, 1, true),
		chunk(1, 0, 0, false),
		chunk(1, 0, 1, true),
	}
	if !reflect.DeepEqual(released, want) {
		t.Fatalf("got %+v, want %+v", released, want)
	}
	if s.CurrentSpeaker() != 2 {
		t.Fatalf("expected current speaker 2, got %d", s.CurrentSpeaker())
	}
}

func TestScheduler_DiscardsLateArrivals(t *testing.T) {
	s := New()
	s.Push(chunk(0, 0, 0, true)) // speaker 0 finishes immediately, current -> 1

	got := s.Push(chunk(0, 1, 0, false)) // stale chunk from the already-advanced speaker
	if got != nil {
		t.Fatalf("expected stale chunk to be discarded, got %+v", got)
	}
}

func TestScheduler_ResetReturnsToInitialState(t *testing.T) {
	s := New()
	s.Push(chunk(0, 0, 0, true))
	s.Push(chunk(2, 0, 0, false)) // buffered, never flushed

	s.Reset()
	if s.CurrentSpeaker() != 0 {
		t.Fatalf("expected reset current speaker 0, got %d", s.CurrentSpeaker())
	}
	got := s.Push(chunk(0, 0, 0, false))
	want := []pipeline.AudioChunk{chunk(0, 0, 0, false)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected a fresh turn to release speaker 0 chunks again, got %+v", got)
	}
}

func TestScheduler_DeterministicReplay(t *testing.T) {
	in := []pipeline.AudioChunk{
		chunk(0, 0, 0, false),
		chunk(1, 0, 0, false),
		chunk(0, 0, 1, true),
		chunk(1, 0, 1, true),
	}

	s1 := New()
	out1 := releaseAll(s1, in)

	s2 := New()
	out2 := releaseAll(s2, in)

	if !reflect.DeepEqual(out1, out2) {
		t.Fatalf("expected deterministic replay, got %+v vs %+v", out1, out2)
	}
}

func TestScheduler_StillInFlightSpeakerBlocksFlush(t *testing.T) {
	s := New()
	var released []pipeline.AudioChunk

	released = append(released, s.Push(chunk(1, 0, 0, false))...) // speaker 1 buffered, no sentinel yet
	released = append(released, s.Push(chunk(0, 0, 0, true))...)  // speaker 0 finishes -> flush attempt

	// flush releases everything buffered for the new current speaker even
	// without a sentinel, but must not advance past it while it's in flight.
	want := []pipeline.AudioChunk{chunk(0, 0, 0, true), chunk(1, 0, 0, false)}
	if !reflect.DeepEqual(released, want) {
		t.Fatalf("got %+v, want %+v", released, want)
	}
	if s.CurrentSpeaker() != 1 {
		t.Fatalf("expected current speaker 1 (still in flight), got %d", s.CurrentSpeaker())
	}
}
