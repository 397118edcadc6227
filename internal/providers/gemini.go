// Package providers contains the thin HTTP adapters for the AI backends and
// their explicit startup registration. Adapters convert ordinary remote
// failures into the absent-output sentinel; they never fail a request for a
// flaky provider.
package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modelarena/modelarena/internal/registry"
	log "github.com/sirupsen/logrus"
)

const (
	geminiBaseURL       = "https://generativelanguage.googleapis.com/v1beta/models"
	geminiTextModel     = "gemini-2.0-flash"
	geminiImageModel    = "gemini-2.0-flash-exp-image-generation"
	providerCallTimeout = 60 * time.Second
)

// GeminiModel serves the Generative Language API. Each instance is either the
// chat variant or the image-generation variant; both register under the
// "gemini" provider.
type GeminiModel struct {
	apiKey    string
	imageMode bool
	client    *http.Client
}

// NewGeminiTextModel constructs the chat variant, the provider default.
func NewGeminiTextModel(apiKey string) *GeminiModel {
	return &GeminiModel{
		apiKey: apiKey,
		client: &http.Client{Timeout: providerCallTimeout},
	}
}

// NewGeminiImageModel constructs the image-generation variant.
func NewGeminiImageModel(apiKey string) *GeminiModel {
	return &GeminiModel{
		apiKey:    apiKey,
		imageMode: true,
		client:    &http.Client{Timeout: providerCallTimeout},
	}
}

// Descriptor implements registry.Model.
func (m *GeminiModel) Descriptor() registry.Descriptor {
	if m.imageMode {
		return registry.Descriptor{
			Provider:     "Gemini",
			Version:      "2.0-flash-image",
			Description:  "Google Gemini image generation",
			Capabilities: []registry.Capability{registry.TextToImg},
			UserVisible:  true,
		}
	}
	return registry.Descriptor{
		Provider:     "Gemini",
		Version:      "2.0-flash",
		Description:  "Google Gemini chat",
		Capabilities: []registry.Capability{registry.TextToText},
		Default:      true,
		UserVisible:  true,
	}
}

// Execute implements registry.Model.
func (m *GeminiModel) Execute(ctx context.Context, in registry.Input) (registry.Output, error) {
	if in.Kind != registry.InputText {
		return registry.None(), nil
	}
	if m.imageMode {
		return m.generateImage(ctx, in.Text), nil
	}
	return m.generateText(ctx, in.Text), nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Config   *geminiConfig   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (m *GeminiModel) generateText(ctx context.Context, prompt string) registry.Output {
	resp, ok := m.call(ctx, geminiTextModel, geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if !ok || len(resp.Candidates) == 0 {
		return registry.None()
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			return registry.Output{Kind: registry.OutputText, Text: part.Text}
		}
	}
	return registry.None()
}

func (m *GeminiModel) generateImage(ctx context.Context, prompt string) registry.Output {
	resp, ok := m.call(ctx, geminiImageModel, geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		Config:   &geminiConfig{ResponseModalities: []string{"Text", "Image"}},
	})
	if !ok || len(resp.Candidates) == 0 {
		return registry.None()
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData == nil {
			continue
		}
		data, errDecode := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if errDecode != nil {
			log.WithError(errDecode).Warn("gemini: bad inline image payload")
			return registry.None()
		}
		return registry.Output{Kind: registry.OutputImage, Data: data}
	}
	return registry.None()
}

func (m *GeminiModel) call(ctx context.Context, model string, payload geminiRequest) (geminiResponse, bool) {
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("gemini: marshal request")
		return geminiResponse{}, false
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiBaseURL, model, m.apiKey)
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if errReq != nil {
		log.WithError(errReq).Warn("gemini: build request")
		return geminiResponse{}, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := m.client.Do(req)
	if errDo != nil {
		log.WithError(errDo).Warn("gemini: request failed")
		return geminiResponse{}, false
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("gemini: close response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warnf("gemini: unexpected status %d from %s", resp.StatusCode, model)
		return geminiResponse{}, false
	}

	raw, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		log.WithError(errRead).Warn("gemini: read response")
		return geminiResponse{}, false
	}

	var out geminiResponse
	if errUnmarshal := json.Unmarshal(raw, &out); errUnmarshal != nil {
		log.WithError(errUnmarshal).Warn("gemini: decode response")
		return geminiResponse{}, false
	}
	return out, true
}
