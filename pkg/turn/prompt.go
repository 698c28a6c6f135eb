package turn

import (
	"fmt"

	"github.com/castflow/castflow-core/pkg/llm"
	"github.com/castflow/castflow-core/pkg/voice"
)

// historyEntry is one line of shared conversation history: either the
// user's own message (speakerID == userSpeakerID) or a character's full
// reply. Storing the raw speaker identity (rather than an already
// role-tagged llm.Message) lets buildPrompt tag the same entry
// "assistant" for its own author and "user" (prefixed with the author's
// name) for every other character, so each character sees what every
// other character said without believing it said so itself.
type historyEntry struct {
	speakerID   string
	speakerName string
	text        string
}

const userSpeakerID = ""

// buildPrompt assembles one character's completion request from the
// session's shared message history plus a system message derived from
// the character's SystemStyle, truncated to maxContextMessages (spec.md
// ADD §4.4). This is the minimal "prompt construction" collaborator the
// spec leaves external; it lives here rather than in the LLM provider so
// providers stay transport-only.
func buildPrompt(history []historyEntry, speaker voice.Character, maxContextMessages int) []llm.Message {
	trimmed := history
	if maxContextMessages > 0 && len(trimmed) > maxContextMessages {
		trimmed = trimmed[len(trimmed)-maxContextMessages:]
	}

	system := speaker.SystemStyle
	if system == "" {
		system = fmt.Sprintf("You are %s.", speaker.Name)
	}

	out := make([]llm.Message, 0, len(trimmed)+1)
	out = append(out, llm.Message{Role: "system", Content: system})
	for _, entry := range trimmed {
		out = append(out, entry.toMessage(speaker.ID))
	}
	return out
}

func (e historyEntry) toMessage(forCharacterID string) llm.Message {
	if e.speakerID == userSpeakerID {
		return llm.Message{Role: "user", Content: e.text}
	}
	if e.speakerID == forCharacterID {
		return llm.Message{Role: "assistant", Content: e.text}
	}
	return llm.Message{Role: "user", Content: fmt.Sprintf("%s: %s", e.speakerName, e.text)}
}
