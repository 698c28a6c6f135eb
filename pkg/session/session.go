// Package session implements the Session (spec.md ADD §4.8): the
// per-connection component that wires the bounded pipeline queues, the
// TTS Worker, the Audio Streamer, and the Turn Orchestrator together,
// dispatches inbound transport messages, and owns the interrupt and
// disconnect protocols.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/castflow/castflow-core/pkg/audiostreamer"
	"github.com/castflow/castflow-core/pkg/clog"
	"github.com/castflow/castflow-core/pkg/llm"
	"github.com/castflow/castflow-core/pkg/pipeline"
	"github.com/castflow/castflow-core/pkg/transport"
	"github.com/castflow/castflow-core/pkg/tts"
	"github.com/castflow/castflow-core/pkg/ttsworker"
	"github.com/castflow/castflow-core/pkg/turn"
	"github.com/castflow/castflow-core/pkg/voice"
)

// GracefulShutdownTimeout bounds how long Close waits for the TTS
// Worker, Audio Streamer, and Turn Orchestrator goroutines to exit
// before logging them as leaks (spec.md ADD §5).
const GracefulShutdownTimeout = 5 * time.Second

// Config sizes the pipeline queues and the orchestrator's context
// window; these are the spec's compile-time constants (spec.md §6).
type Config struct {
	IngressQCapacity   int
	SentenceQCapacity  int
	AudioQCapacity     int
	MaxContextMessages int
	Language           string
}

// DefaultConfig matches the capacities spec.md §4.1 recommends.
func DefaultConfig() Config {
	return Config{
		IngressQCapacity:   1,
		SentenceQCapacity:  64,
		AudioQCapacity:     64,
		MaxContextMessages: 32,
		Language:           "en",
	}
}

// STTListener receives start/stop toggles; opaque to the core
// (spec.md §1). A Session with no listener attached treats these
// messages as no-ops.
type STTListener interface {
	StartListening(ctx context.Context) error
	StopListening(ctx context.Context) error
	// HandleAudio forwards one binary PCM frame from the client.
	HandleAudio(ctx context.Context, payload []byte)
}

// Session owns one client connection end to end.
type Session struct {
	transport transport.Transport
	log       clog.Logger
	stt       STTListener

	ingressQ  *pipeline.Queue[pipeline.IngressMessage]
	sentenceQ *pipeline.Queue[pipeline.Sentence]
	audioQ    *pipeline.Queue[pipeline.AudioChunk]

	orchestrator *turn.Orchestrator
	streamer     *audiostreamer.Streamer

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New wires C1-C7 together for one connection. stt may be nil.
func New(t transport.Transport, catalog voice.Catalog, llmProvider llm.Provider, ttsProvider tts.Provider, stt STTListener, cfg Config, log clog.Logger) *Session {
	if log == nil {
		log = clog.NoOpLogger{}
	}

	ingressQ := pipeline.NewQueue[pipeline.IngressMessage](cfg.IngressQCapacity)
	sentenceQ := pipeline.NewQueue[pipeline.Sentence](cfg.SentenceQCapacity)
	audioQ := pipeline.NewQueue[pipeline.AudioChunk](cfg.AudioQCapacity)

	orchestrator := turn.New(ingressQ, sentenceQ, catalog, llmProvider, t, turn.Config{MaxContextMessages: cfg.MaxContextMessages}, log)
	streamer := audiostreamer.New(audioQ, t, log)
	worker := ttsworker.New(sentenceQ, audioQ, ttsProvider, cfg.Language, log)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		transport:    t,
		log:          log,
		stt:          stt,
		ingressQ:     ingressQ,
		sentenceQ:    sentenceQ,
		audioQ:       audioQ,
		orchestrator: orchestrator,
		streamer:     streamer,
		rootCtx:      ctx,
		rootCancel:   cancel,
	}

	s.startLongLived(worker.Run)
	s.startLongLived(streamer.Run)
	s.startLongLived(orchestrator.Run)

	return s
}

func (s *Session) startLongLived(run func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(s.rootCtx)
	}()
}

// Serve reads inbound frames until the transport closes or ctx is done,
// dispatching each one. It is the connection's foreground loop.
func (s *Session) Serve(ctx context.Context) {
	for {
		env, binary, err := s.transport.ReadMessage(ctx)
		if err != nil {
			s.log.Info("session: transport closed", "error", err.Error())
			return
		}
		if binary != nil {
			if s.stt != nil {
				s.stt.HandleAudio(ctx, binary)
			}
			continue
		}
		s.dispatch(ctx, env)
	}
}

func (s *Session) dispatch(ctx context.Context, env *transport.InboundEnvelope) {
	switch env.Type {
	case transport.MsgUserMessage:
		var m transport.UserMessage
		if err := json.Unmarshal(env.Data, &m); err != nil {
			s.log.Warn("session: malformed user_message", "error", err.Error())
			return
		}
		if isBlank(m.Text) {
			return
		}
		s.ingressQ.TryPut(pipeline.IngressMessage{Text: m.Text})

	case transport.MsgInterrupt:
		s.Interrupt()

	case transport.MsgPing:
		s.transport.SendJSON(transport.EventPong, struct{}{})

	case transport.MsgStartListening:
		if s.stt != nil {
			s.stt.StartListening(ctx)
		}

	case transport.MsgStopListening:
		if s.stt != nil {
			s.stt.StopListening(ctx)
		}

	case transport.MsgModelSettings:
		// Passed through only if the configured provider honors
		// per-turn options; the bundled providers do not, so this is a
		// deliberate no-op hook for a richer provider implementation.

	default:
		s.log.Debug("session: ignoring unknown message type", "type", env.Type)
	}
}

// Interrupt implements the cancellation protocol (spec.md §5 and ADD
// §4.8): cancel the in-flight turn, drain IngressQ, SentenceQ and
// AudioQ, reset the scheduler and streamer state, then emit the single
// interrupt_ack.
func (s *Session) Interrupt() {
	s.orchestrator.Interrupt()
	s.ingressQ.Drain()
	s.sentenceQ.Drain()
	s.audioQ.Drain()
	s.streamer.ResetScheduler()
	s.transport.SendJSON(transport.EventInterruptAck, transport.InterruptAck{})
}

// Close cancels every long-lived goroutine and waits up to
// GracefulShutdownTimeout for them to exit, logging a leak if they
// don't (spec.md ADD §5).
func (s *Session) Close() {
	s.rootCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(GracefulShutdownTimeout):
		s.log.Error("session: graceful shutdown timed out, worker goroutines leaked")
	}

	s.transport.Close()
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
