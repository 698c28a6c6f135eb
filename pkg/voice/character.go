// Package voice holds the character reference type and the catalog that
// resolves free-text user messages into an ordered list of addressed
// characters (the "external character catalog" of the turn orchestrator).
package voice

// Descriptor is the opaque voice metadata a TTS provider needs: which
// voice to synthesize with and the sample rate it produces. Different
// characters may use different voices at different native rates, so the
// rate travels with the character rather than the session.
type Descriptor struct {
	VoiceID    string
	SampleRate int
}

// Character is a catalog entry, opaque to the streaming core beyond the
// fields below. Persistent storage and lookup of the catalog itself is
// out of scope; Character is supplied by whatever registered it.
type Character struct {
	ID    string
	Name  string
	Voice Descriptor
	// SystemStyle seeds the character's system prompt (persona, tone,
	// constraints); the Turn Orchestrator places it as the leading system
	// message, ahead of the shared history, when building each
	// character's completion request.
	SystemStyle string
}
