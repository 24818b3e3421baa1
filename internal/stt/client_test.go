package stt

import (
	"strings"
	"testing"

	"github.com/hudwear/hudserver/internal/config"
)

func TestBuildURIIncludesQueryParams(t *testing.T) {
	cfg := config.Default()
	cfg.ElevenLabsModelID = "scribe_v1"
	cfg.ElevenLabsLanguageCode = "en"
	c := NewClient(cfg, nopLogger{})
	uri := c.buildURI()
	if !strings.HasPrefix(uri, "wss://api.elevenlabs.io/v1/speech-to-text/realtime?") {
		t.Fatalf("buildURI = %s", uri)
	}
	for _, want := range []string{"model_id=scribe_v1", "language_code=en", "commit_strategy=vad", "audio_format=pcm_16000"} {
		if !strings.Contains(uri, want) {
			t.Fatalf("buildURI = %s, missing %s", uri, want)
		}
	}
}

func TestMapMessagePartialAndFinal(t *testing.T) {
	m, ok := mapMessage(map[string]any{"message_type": "partial_transcript", "text": "hi"})
	if !ok || m.Type != "partial" || m.Text != "hi" {
		t.Fatalf("mapMessage partial = %+v, %v", m, ok)
	}
	m, ok = mapMessage(map[string]any{"message_type": "committed_transcript", "text": "hi there"})
	if !ok || m.Type != "final" || m.Text != "hi there" {
		t.Fatalf("mapMessage final = %+v, %v", m, ok)
	}
}

func TestMapMessageStatusAndError(t *testing.T) {
	m, ok := mapMessage(map[string]any{"message_type": "session_started"})
	if !ok || m.Type != "status" || m.Status != "session_started" {
		t.Fatalf("mapMessage status = %+v, %v", m, ok)
	}
	m, ok = mapMessage(map[string]any{"message_type": "rate_limited"})
	if !ok || m.Type != "error" || m.ErrText != "rate_limited" {
		t.Fatalf("mapMessage error = %+v, %v", m, ok)
	}
}

func TestMapMessageUnknownIgnored(t *testing.T) {
	_, ok := mapMessage(map[string]any{"message_type": "something_else"})
	if ok {
		t.Fatalf("expected unknown message_type to be ignored")
	}
}
