package turn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/castflow/castflow-core/pkg/clog"
	"github.com/castflow/castflow-core/pkg/llm"
	"github.com/castflow/castflow-core/pkg/pipeline"
	"github.com/castflow/castflow-core/pkg/transport"
	"github.com/castflow/castflow-core/pkg/voice"
)

// fakeLLM streams a fixed script of tokens per call, in call order.
type fakeLLM struct {
	mu     sync.Mutex
	scripts [][]llm.Token
	calls   int
}

func (f *fakeLLM) StreamComplete(ctx context.Context, messages []llm.Message) (<-chan llm.Token, error) {
	f.mu.Lock()
	script := f.scripts[f.calls%len(f.scripts)]
	f.calls++
	f.mu.Unlock()

	out := make(chan llm.Token, len(script)+1)
	go func() {
		defer close(out)
		for _, tok := range script {
			select {
			case out <- tok:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeLLM) Name() string { return "fake" }

type recordedEvent struct {
	kind string
	msg  string
	data interface{}
}

type fakeTransport struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeTransport) SendJSON(msgType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{kind: "json", msg: msgType, data: data})
	return nil
}

func (f *fakeTransport) SendBinary(payload []byte) error { return nil }

func (f *fakeTransport) ReadMessage(ctx context.Context) (*transport.InboundEnvelope, []byte, error) {
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) typeSequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.msg
	}
	return out
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func nova() voice.Character {
	return voice.Character{ID: "nova", Name: "Nova", Voice: voice.Descriptor{SampleRate: 24000}}
}

func TestOrchestrator_SingleSpeakerThreeSentences(t *testing.T) {
	catalog := voice.NewMentionCatalog()
	ch := nova()
	catalog.Register(ch)

	fl := &fakeLLM{scripts: [][]llm.Token{{
		{Text: "Hi."}, {Text: " How are you?"}, {Text: " Bye."}, {Done: true},
	}}}
	ft := &fakeTransport{}
	ingressQ := pipeline.NewQueue[pipeline.IngressMessage](2)
	sentenceQ := pipeline.NewQueue[pipeline.Sentence](16)

	o := New(ingressQ, sentenceQ, catalog, fl, ft, Config{}, clog.NoOpLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	ingressQ.Put(ctx, pipeline.IngressMessage{Text: "@Nova hello"})

	waitFor(t, time.Second, func() bool { return ft.count() >= 6 })

	seq := ft.typeSequence()
	if seq[0] != transport.EventTextStreamStart {
		t.Fatalf("expected text_stream_start first, got %+v", seq)
	}
	if seq[len(seq)-1] != transport.EventTextStreamStop {
		t.Fatalf("expected text_stream_stop last, got %+v", seq)
	}

	var sentences []pipeline.Sentence
	for i := 0; i < 4; i++ {
		gctx, gcancel := context.WithTimeout(context.Background(), time.Second)
		s, err := sentenceQ.Get(gctx)
		gcancel()
		if err != nil {
			t.Fatalf("expected sentence %d, got error %v", i, err)
		}
		sentences = append(sentences, s)
	}
	if !sentences[3].IsFinal {
		t.Fatalf("expected 4th sentence record to be the speaker-final sentinel, got %+v", sentences[3])
	}
	for i := 0; i < 3; i++ {
		if sentences[i].SentenceIndex != i {
			t.Fatalf("expected sentence_index %d, got %d", i, sentences[i].SentenceIndex)
		}
	}
}

func TestOrchestrator_ZeroAddressedCharactersEmitsNothing(t *testing.T) {
	catalog := voice.NewMentionCatalog() // no default, no registrations
	fl := &fakeLLM{scripts: [][]llm.Token{{{Done: true}}}}
	ft := &fakeTransport{}
	ingressQ := pipeline.NewQueue[pipeline.IngressMessage](2)
	sentenceQ := pipeline.NewQueue[pipeline.Sentence](4)

	o := New(ingressQ, sentenceQ, catalog, fl, ft, Config{}, clog.NoOpLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	ingressQ.Put(ctx, pipeline.IngressMessage{Text: "nobody addressed here"})

	time.Sleep(200 * time.Millisecond)
	if ft.count() != 0 {
		t.Fatalf("expected zero emissions for zero addressed characters, got %+v", ft.typeSequence())
	}
}

func TestOrchestrator_EmptyCharacterReplyStillEmitsLifecycleEvents(t *testing.T) {
	catalog := voice.NewMentionCatalog()
	ch := nova()
	catalog.Register(ch)

	fl := &fakeLLM{scripts: [][]llm.Token{{{Done: true}}}}
	ft := &fakeTransport{}
	ingressQ := pipeline.NewQueue[pipeline.IngressMessage](2)
	sentenceQ := pipeline.NewQueue[pipeline.Sentence](4)

	o := New(ingressQ, sentenceQ, catalog, fl, ft, Config{}, clog.NoOpLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	ingressQ.Put(ctx, pipeline.IngressMessage{Text: "@Nova hi"})

	waitFor(t, time.Second, func() bool { return ft.count() >= 3 })
	seq := ft.typeSequence()
	want := []string{transport.EventTextStreamStart, transport.EventTextChunk, transport.EventTextStreamStop}
	for i, w := range want {
		if seq[i] != w {
			t.Fatalf("event %d: got %s, want %s (full: %+v)", i, seq[i], w, seq)
		}
	}

	gctx, gcancel := context.WithTimeout(context.Background(), time.Second)
	defer gcancel()
	sentinel, err := sentenceQ.Get(gctx)
	if err != nil {
		t.Fatalf("expected a speaker-final sentinel even for an empty reply: %v", err)
	}
	if !sentinel.IsFinal {
		t.Fatalf("expected final sentinel, got %+v", sentinel)
	}
}

func TestOrchestrator_InterruptStopsMidCharacterWithoutStreamStop(t *testing.T) {
	catalog := voice.NewMentionCatalog()
	ch := nova()
	catalog.Register(ch)

	block := make(chan struct{})
	fl := &blockingLLM{unblock: block}
	ft := &fakeTransport{}
	ingressQ := pipeline.NewQueue[pipeline.IngressMessage](2)
	sentenceQ := pipeline.NewQueue[pipeline.Sentence](4)

	o := New(ingressQ, sentenceQ, catalog, fl, ft, Config{}, clog.NoOpLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	ingressQ.Put(ctx, pipeline.IngressMessage{Text: "@Nova hi"})
	waitFor(t, time.Second, func() bool { return ft.count() >= 1 })

	o.Interrupt()
	close(block)

	waitFor(t, time.Second, func() bool { return o.CurrentState() == StateIdle })

	for _, e := range ft.typeSequence() {
		if e == transport.EventTextStreamStop {
			t.Fatal("expected no text_stream_stop after interrupt cut the character off mid-stream")
		}
	}
}

// blockingLLM streams one token, then blocks until unblock is closed or
// ctx is cancelled, simulating an in-flight LLM call at interrupt time.
type blockingLLM struct {
	unblock chan struct{}
}

func (b *blockingLLM) StreamComplete(ctx context.Context, messages []llm.Message) (<-chan llm.Token, error) {
	out := make(chan llm.Token, 1)
	out <- llm.Token{Text: "partial"}
	go func() {
		select {
		case <-b.unblock:
		case <-ctx.Done():
		}
		close(out)
	}()
	return out, nil
}

func (b *blockingLLM) Name() string { return "blocking" }
