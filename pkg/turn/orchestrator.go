// Package turn implements the Turn Orchestrator (spec.md §4.4): the
// single long-lived task that drives the ingress FIFO, asks the
// character catalog who is addressed, streams each addressed
// character's LLM reply through a sentence segmenter, and enqueues
// Sentence records (and their speaker-final sentinels) onto SentenceQ.
package turn

import (
	"context"
	"sync"

	"github.com/castflow/castflow-core/pkg/clog"
	"github.com/castflow/castflow-core/pkg/llm"
	"github.com/castflow/castflow-core/pkg/pipeline"
	"github.com/castflow/castflow-core/pkg/transport"
	"github.com/castflow/castflow-core/pkg/voice"
)

// Config holds the orchestrator's compile-time-constant knobs.
type Config struct {
	MaxContextMessages int
}

// Orchestrator owns the single active Turn, the shared conversation
// history, and the ingress loop. It never runs two turns concurrently
// (spec.md §8 invariant 5): the outer loop blocks on IngressQ.get and
// does not resume until the current turn reaches Complete or Cancelled.
type Orchestrator struct {
	ingressQ  *pipeline.Queue[pipeline.IngressMessage]
	sentenceQ *pipeline.Queue[pipeline.Sentence]
	catalog   voice.Catalog
	llm       llm.Provider
	transport transport.Transport
	log       clog.Logger
	cfg       Config

	mu      sync.Mutex
	history []historyEntry
	turnNum int
	current *Turn
}

// New creates a Turn Orchestrator wired to its queues and collaborators.
func New(ingressQ *pipeline.Queue[pipeline.IngressMessage], sentenceQ *pipeline.Queue[pipeline.Sentence], catalog voice.Catalog, provider llm.Provider, t transport.Transport, cfg Config, log clog.Logger) *Orchestrator {
	if log == nil {
		log = clog.NoOpLogger{}
	}
	return &Orchestrator{
		ingressQ:  ingressQ,
		sentenceQ: sentenceQ,
		catalog:   catalog,
		llm:       provider,
		transport: t,
		cfg:       cfg,
		log:       log,
	}
}

// Run blocks on IngressQ for the lifetime of the session.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		msg, err := o.ingressQ.Get(ctx)
		if err != nil {
			return
		}
		o.runTurn(ctx, msg)
	}
}

// Interrupt cancels the currently active turn, if any. It is the
// orchestrator's half of the interrupt protocol; draining the pipeline
// queues and emitting the single interrupt_ack is the Session's
// responsibility (spec.md ADD §4.8), since only the Session holds every
// queue.
func (o *Orchestrator) Interrupt() {
	o.mu.Lock()
	t := o.current
	o.mu.Unlock()
	if t != nil {
		t.Cancel()
	}
}

// CurrentState reports the active turn's lifecycle state, or StateIdle
// if no turn is running.
func (o *Orchestrator) CurrentState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return StateIdle
	}
	return o.current.State()
}

func (o *Orchestrator) runTurn(ctx context.Context, msg pipeline.IngressMessage) {
	o.mu.Lock()
	o.turnNum++
	t := newTurn(ctx, o.turnNum)
	o.current = t
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.current = nil
		o.mu.Unlock()
	}()

	addressed, err := o.catalog.ParseAddressed(t.ctx, msg.Text)
	if err != nil {
		o.log.Warn("turn orchestrator: catalog lookup failed", "turn", t.ID, "error", err.Error())
		t.setState(StateComplete)
		return
	}

	o.mu.Lock()
	o.history = append(o.history, historyEntry{speakerID: userSpeakerID, text: msg.Text})
	o.mu.Unlock()

	for speakerIndex, character := range addressed {
		select {
		case <-t.Done():
			return
		default:
		}
		if !o.runCharacter(t, speakerIndex, character) {
			return
		}
	}

	t.setState(StateComplete)
}

// runCharacter streams one character's reply end to end. It returns
// false if the turn was cancelled mid-character, signalling the caller
// to stop processing further characters.
func (o *Orchestrator) runCharacter(t *Turn, speakerIndex int, character voice.Character) bool {
	messageID := newMessageID()

	if err := o.transport.SendJSON(transport.EventTextStreamStart, transport.TextStreamStart{
		MessageID:     messageID,
		CharacterID:   character.ID,
		CharacterName: character.Name,
	}); err != nil {
		o.log.Warn("turn orchestrator: send failed, treating as disconnect", "error", err.Error())
		t.Cancel()
		return false
	}

	o.mu.Lock()
	history := append([]historyEntry(nil), o.history...)
	o.mu.Unlock()

	tokens, err := o.llm.StreamComplete(t.ctx, buildPrompt(history, character, o.cfg.MaxContextMessages))
	if err != nil {
		o.log.Warn("turn orchestrator: llm stream failed to start", "character", character.ID, "error", err.Error())
		return o.finishCharacter(t, speakerIndex, 0, messageID, character, "")
	}

	seg := NewSegmenter()
	sentenceIndex := 0
	var accumulated string

	for tok := range tokens {
		select {
		case <-t.Done():
			return false
		default:
		}

		if tok.Err != nil {
			o.log.Warn("turn orchestrator: llm stream error mid-character", "character", character.ID, "error", tok.Err.Error())
			break
		}
		if tok.Done {
			break
		}
		if tok.Text == "" {
			continue
		}
		accumulated += tok.Text

		for _, sentence := range seg.Feed(tok.Text) {
			if !o.emitSentence(t, speakerIndex, &sentenceIndex, messageID, character, sentence) {
				return false
			}
		}
		if err := o.transport.SendJSON(transport.EventTextChunk, transport.TextChunk{
			MessageID:     messageID,
			CharacterID:   character.ID,
			CharacterName: character.Name,
			Text:          tok.Text,
		}); err != nil {
			o.log.Warn("turn orchestrator: send failed, treating as disconnect", "error", err.Error())
			t.Cancel()
			return false
		}
	}

	if residue := seg.Flush(); residue != "" {
		if !o.emitSentence(t, speakerIndex, &sentenceIndex, messageID, character, residue) {
			return false
		}
	}

	terminalIndex := sentenceIndex - 1
	if terminalIndex < 0 {
		terminalIndex = 0
	}
	return o.finishCharacter(t, speakerIndex, terminalIndex, messageID, character, accumulated)
}

func (o *Orchestrator) emitSentence(t *Turn, speakerIndex int, sentenceIndex *int, messageID string, character voice.Character, text string) bool {
	sentence := pipeline.Sentence{
		Text:          text,
		SentenceIndex: *sentenceIndex,
		MessageID:     messageID,
		Character:     character,
		SpeakerIndex:  speakerIndex,
		Ctx:           t.ctx,
	}
	*sentenceIndex++

	if err := o.sentenceQ.Put(t.ctx, sentence); err != nil {
		return false
	}
	return true
}

func (o *Orchestrator) finishCharacter(t *Turn, speakerIndex, terminalSentenceIndex int, messageID string, character voice.Character, accumulated string) bool {
	select {
	case <-t.Done():
		return false
	default:
	}

	if err := o.transport.SendJSON(transport.EventTextChunk, transport.TextChunk{
		MessageID:     messageID,
		CharacterID:   character.ID,
		CharacterName: character.Name,
		IsFinal:       true,
	}); err != nil {
		t.Cancel()
		return false
	}
	if err := o.transport.SendJSON(transport.EventTextStreamStop, transport.TextStreamStop{
		MessageID:     messageID,
		CharacterID:   character.ID,
		CharacterName: character.Name,
		Text:          accumulated,
	}); err != nil {
		t.Cancel()
		return false
	}

	o.mu.Lock()
	o.history = append(o.history, historyEntry{speakerID: character.ID, speakerName: character.Name, text: accumulated})
	o.mu.Unlock()

	finalSentence := pipeline.FinalSentence(t.ctx, speakerIndex, terminalSentenceIndex, messageID, character)
	if err := o.sentenceQ.Put(t.ctx, finalSentence); err != nil {
		return false
	}
	return true
}

