package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/modelarena/modelarena/internal/registry"
	log "github.com/sirupsen/logrus"
)

// WhisperModel serves speech transcription through a Whisper inference
// endpoint accepting raw audio bytes. It is infrastructure-only: users cannot
// select it directly, the dispatch engine uses it for the audio fallback.
type WhisperModel struct {
	endpoint string
	client   *http.Client
}

// NewWhisperModel constructs a WhisperModel.
func NewWhisperModel(endpoint string) *WhisperModel {
	return &WhisperModel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: providerCallTimeout},
	}
}

// Descriptor implements registry.Model.
func (m *WhisperModel) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		Provider:     "Whisper",
		Version:      "large-v3",
		Description:  "Whisper speech transcription",
		Capabilities: []registry.Capability{registry.AudioToText},
		Default:      true,
		UserVisible:  false,
	}
}

// Execute implements registry.Model.
func (m *WhisperModel) Execute(ctx context.Context, in registry.Input) (registry.Output, error) {
	if in.Kind != registry.InputAudio {
		return registry.None(), nil
	}
	text, ok := m.Transcribe(ctx, in.Data)
	if !ok {
		return registry.None(), nil
	}
	return registry.Output{Kind: registry.OutputText, Text: text}, nil
}

type whisperResponse struct {
	Text string `json:"text"`
}

// Transcribe implements dispatch.Transcriber.
func (m *WhisperModel) Transcribe(ctx context.Context, audio []byte) (string, bool) {
	if len(audio) == 0 {
		return "", false
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(audio))
	if errReq != nil {
		log.WithError(errReq).Warn("whisper: build request")
		return "", false
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, errDo := m.client.Do(req)
	if errDo != nil {
		log.WithError(errDo).Warn("whisper: request failed")
		return "", false
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("whisper: close response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warnf("whisper: unexpected status %d", resp.StatusCode)
		return "", false
	}

	raw, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		log.WithError(errRead).Warn("whisper: read response")
		return "", false
	}

	var out whisperResponse
	if errUnmarshal := json.Unmarshal(raw, &out); errUnmarshal != nil {
		log.WithError(errUnmarshal).Warn("whisper: decode response")
		return "", false
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", false
	}
	return text, true
}
