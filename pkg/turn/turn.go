package turn

import "context"

// State is one position in the turn lifecycle (spec.md §4.4).
type State int

const (
	StateIdle State = iota
	StateLLM
	StateTTS
	StateStreaming
	StateComplete
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLLM:
		return "llm"
	case StateTTS:
		return "tts"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Turn holds the cancellation signal and lifecycle state for one
// ingress message. At most one Turn is in StateLLM at a time (spec.md §8
// invariant 5); the orchestrator enforces this by processing IngressQ
// strictly one message at a time.
type Turn struct {
	ID     int
	ctx    context.Context
	cancel context.CancelFunc
	state  State
}

func newTurn(parent context.Context, id int) *Turn {
	ctx, cancel := context.WithCancel(parent)
	return &Turn{ID: id, ctx: ctx, cancel: cancel, state: StateLLM}
}

// Done reports the turn's cancellation channel; suspension points in the
// orchestrator select on it to observe mid-turn cancellation.
func (t *Turn) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Cancel marks the turn Cancelled and signals every suspension point
// waiting on Done.
func (t *Turn) Cancel() {
	t.state = StateCancelled
	t.cancel()
}

func (t *Turn) setState(s State) {
	if t.state == StateCancelled {
		return
	}
	t.state = s
}

// State reports the turn's current lifecycle state.
func (t *Turn) State() State {
	return t.state
}
