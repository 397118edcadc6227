package providers

import (
	"strings"

	"github.com/modelarena/modelarena/internal/config"
	"github.com/modelarena/modelarena/internal/registry"
	log "github.com/sirupsen/logrus"
)

// Bootstrap registers every configured provider with the registry. Providers
// missing credentials are skipped with a warning; a duplicate registration is
// returned to the caller and treated as startup-fatal.
//
// The returned WhisperModel is nil when no transcription endpoint is
// configured.
func Bootstrap(reg *registry.Registry, cfg config.Providers) (*WhisperModel, error) {
	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		if errRegister := reg.Register(NewGeminiTextModel(key)); errRegister != nil {
			return nil, errRegister
		}
		if errRegister := reg.Register(NewGeminiImageModel(key)); errRegister != nil {
			return nil, errRegister
		}
	} else {
		log.Warn("providers: gemini api key missing, skipping")
	}

	if key := strings.TrimSpace(cfg.GroqAPIKey); key != "" {
		if errRegister := reg.Register(NewGroqModel(key)); errRegister != nil {
			return nil, errRegister
		}
	} else {
		log.Warn("providers: groq api key missing, skipping")
	}

	if endpoint := strings.TrimSpace(cfg.FluxEndpoint); endpoint != "" {
		if errRegister := reg.Register(NewFluxModel(endpoint)); errRegister != nil {
			return nil, errRegister
		}
	} else {
		log.Warn("providers: flux endpoint missing, skipping")
	}

	if endpoint := strings.TrimSpace(cfg.MidJourneyEndpoint); endpoint != "" {
		if errRegister := reg.Register(NewMidJourneyModel(endpoint)); errRegister != nil {
			return nil, errRegister
		}
	} else {
		log.Warn("providers: midjourney endpoint missing, skipping")
	}

	var whisper *WhisperModel
	if endpoint := strings.TrimSpace(cfg.WhisperEndpoint); endpoint != "" {
		whisper = NewWhisperModel(endpoint)
		if errRegister := reg.Register(whisper); errRegister != nil {
			return nil, errRegister
		}
	} else {
		log.Warn("providers: whisper endpoint missing, audio fallback disabled")
	}

	return whisper, nil
}
