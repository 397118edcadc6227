package providers

import (
	"testing"

	"github.com/modelarena/modelarena/internal/config"
	"github.com/modelarena/modelarena/internal/registry"
)

func TestBootstrap_AllConfigured(t *testing.T) {
	reg := registry.New()
	whisper, err := Bootstrap(reg, config.Providers{
		GeminiAPIKey:       "k1",
		GroqAPIKey:         "k2",
		FluxEndpoint:       "https://flux.example/generate",
		MidJourneyEndpoint: "https://midjourney.example/run",
		WhisperEndpoint:    "https://whisper.example/transcribe",
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if whisper == nil {
		t.Fatal("expected whisper transcriber")
	}

	if got := len(reg.All()); got != 6 {
		t.Fatalf("expected 6 registered models, got %d", got)
	}
	if _, ok := reg.Lookup("gemini", "2.0-flash"); !ok {
		t.Fatal("gemini chat model not registered")
	}
	if _, ok := reg.Lookup("midjourney", "midjourney"); !ok {
		t.Fatal("midjourney model not registered")
	}
	if _, ok := reg.Lookup("whisper", "large-v3"); !ok {
		t.Fatal("whisper model not registered")
	}

	visible := reg.UserVisibleProviders()
	for _, p := range visible {
		if p == "whisper" {
			t.Fatal("whisper must not be user visible")
		}
	}
}

func TestBootstrap_SkipsUnconfigured(t *testing.T) {
	reg := registry.New()
	whisper, err := Bootstrap(reg, config.Providers{GroqAPIKey: "k2"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if whisper != nil {
		t.Fatal("expected nil whisper without endpoint")
	}
	if got := len(reg.All()); got != 1 {
		t.Fatalf("expected only groq registered, got %d", got)
	}
}

func TestBootstrap_DuplicateIsFatal(t *testing.T) {
	reg := registry.New()
	if _, err := Bootstrap(reg, config.Providers{GroqAPIKey: "k"}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := Bootstrap(reg, config.Providers{GroqAPIKey: "k"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}
