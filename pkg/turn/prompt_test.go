package turn

import (
	"testing"

	"github.com/castflow/castflow-core/pkg/voice"
)

func TestBuildPrompt_TagsOwnRepliesAssistantAndOthersAsAsides(t *testing.T) {
	nova := voice.Character{ID: "nova", Name: "Nova", SystemStyle: "You are Nova, upbeat."}
	history := []historyEntry{
		{speakerID: userSpeakerID, text: "hello everyone"},
		{speakerID: "nova", speakerName: "Nova", text: "hi there!"},
		{speakerID: "echo", speakerName: "Echo", text: "hey."},
	}

	got := buildPrompt(history, nova, 0)
	if len(got) != 4 {
		t.Fatalf("expected system + 3 history messages, got %d: %+v", len(got), got)
	}
	if got[0].Role != "system" || got[0].Content != nova.SystemStyle {
		t.Fatalf("expected system message from SystemStyle, got %+v", got[0])
	}
	if got[1].Role != "user" || got[1].Content != "hello everyone" {
		t.Fatalf("expected plain user message, got %+v", got[1])
	}
	if got[2].Role != "assistant" || got[2].Content != "hi there!" {
		t.Fatalf("expected Nova's own reply tagged assistant, got %+v", got[2])
	}
	if got[3].Role != "user" || got[3].Content != "Echo: hey." {
		t.Fatalf("expected Echo's reply surfaced as a named aside, got %+v", got[3])
	}
}

func TestBuildPrompt_TruncatesToMaxContextMessages(t *testing.T) {
	ch := voice.Character{ID: "a", Name: "A"}
	history := []historyEntry{
		{speakerID: userSpeakerID, text: "one"},
		{speakerID: userSpeakerID, text: "two"},
		{speakerID: userSpeakerID, text: "three"},
	}
	got := buildPrompt(history, ch, 1)
	if len(got) != 2 {
		t.Fatalf("expected system + 1 trimmed history message, got %d: %+v", len(got), got)
	}
	if got[1].Content != "three" {
		t.Fatalf("expected only the most recent message to survive truncation, got %+v", got[1])
	}
}

func TestBuildPrompt_DefaultsSystemMessageWhenStyleEmpty(t *testing.T) {
	ch := voice.Character{ID: "a", Name: "Aria"}
	got := buildPrompt(nil, ch, 0)
	if got[0].Content != "You are Aria." {
		t.Fatalf("expected a generated default system message, got %q", got[0].Content)
	}
}
