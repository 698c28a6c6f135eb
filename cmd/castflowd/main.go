// Command castflowd is the multi-character voice conversation server
// (spec.md OVERVIEW): it accepts WebSocket connections, wires one
// Session per connection, and relays the connection's user_message
// traffic through the streaming core.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/castflow/castflow-core/pkg/clog"
	"github.com/castflow/castflow-core/pkg/llm"
	"github.com/castflow/castflow-core/pkg/session"
	"github.com/castflow/castflow-core/pkg/transport"
	"github.com/castflow/castflow-core/pkg/tts"
	"github.com/castflow/castflow-core/pkg/voice"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using system environment variables")
	}

	log := clog.NewLogrusLogger(logrus.InfoLevel)

	llmProvider := buildLLMProvider(log)
	ttsProvider := buildTTSProvider(log)
	catalog := buildCatalog()

	addr := os.Getenv("CASTFLOWD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleConn(w, r, catalog, llmProvider, ttsProvider, log)
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info("castflowd: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("castflowd: server exited", "error", err.Error())
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("castflowd: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func handleConn(w http.ResponseWriter, r *http.Request, catalog voice.Catalog, llmProvider llm.Provider, ttsProvider tts.Provider, log clog.Logger) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn("castflowd: websocket accept failed", "error", err.Error())
		return
	}

	t := transport.NewWebSocketTransport(conn)
	s := session.New(t, catalog, llmProvider, ttsProvider, nil, session.DefaultConfig(), log)
	defer s.Close()

	s.Serve(r.Context())
}

// buildLLMProvider selects the LLM backend named by LLM_PROVIDER
// (openai, anthropic or google, default openai), mirroring the provider
// switch a development-time CLI would use.
func buildLLMProvider(log clog.Logger) llm.Provider {
	name := os.Getenv("LLM_PROVIDER")
	if name == "" {
		name = "openai"
	}

	switch name {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			log.Error("castflowd: ANTHROPIC_API_KEY is required for LLM_PROVIDER=anthropic")
			os.Exit(1)
		}
		model := os.Getenv("ANTHROPIC_MODEL")
		if model == "" {
			model = "claude-3-5-sonnet-20241022"
		}
		return llm.NewAnthropicStreamLLM(key, model)
	case "google":
		key := os.Getenv("GOOGLE_API_KEY")
		if key == "" {
			log.Error("castflowd: GOOGLE_API_KEY is required for LLM_PROVIDER=google")
			os.Exit(1)
		}
		return llm.NewGoogleStreamLLM(key, os.Getenv("GOOGLE_MODEL"))
	case "openai":
		fallthrough
	default:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			log.Error("castflowd: OPENAI_API_KEY is required for LLM_PROVIDER=openai")
			os.Exit(1)
		}
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			model = "gpt-4o"
		}
		return llm.NewOpenAIStreamLLM(key, model)
	}
}

// buildTTSProvider wires the bundled streaming TTS backend against the
// host named by CASTFLOWD_TTS_HOST. There is no built-in default host:
// an unset variable is passed through as an empty host.
func buildTTSProvider(log clog.Logger) tts.Provider {
	key := os.Getenv("CASTFLOW_TTS_API_KEY")
	if key == "" {
		log.Error("castflowd: CASTFLOW_TTS_API_KEY is required")
		os.Exit(1)
	}
	host := os.Getenv("CASTFLOWD_TTS_HOST")
	return tts.NewStreamVoiceTTS(key, host)
}

// buildCatalog registers the example cast used by the bundled demo
// deployment; a production deployment replaces this with a catalog
// populated from its own character store.
func buildCatalog() voice.Catalog {
	catalog := voice.NewMentionCatalog()

	narrator := voice.Character{
		ID:          "narrator",
		Name:        "Narrator",
		Voice:       voice.Descriptor{VoiceID: "narrator-default", SampleRate: 24000},
		SystemStyle: "You are the Narrator: measured, descriptive, and brief. Use short sentences suitable for speech.",
	}
	catalog.Register(narrator)
	catalog.SetDefault(&narrator)

	catalog.Register(voice.Character{
		ID:          "nova",
		Name:        "Nova",
		Voice:       voice.Descriptor{VoiceID: "nova-bright", SampleRate: 24000},
		SystemStyle: "You are Nova: upbeat, curious, and quick to joke. Keep replies conversational and short.",
	})
	catalog.Register(voice.Character{
		ID:          "sable",
		Name:        "Sable",
		Voice:       voice.Descriptor{VoiceID: "sable-low", SampleRate: 24000},
		SystemStyle: "You are Sable: calm, dry-witted, and skeptical. Keep replies conversational and short.",
	})

	return catalog
}
