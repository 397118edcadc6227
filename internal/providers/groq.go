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

const (
	groqChatURL   = "https://api.groq.com/openai/v1/chat/completions"
	groqChatModel = "llama-3.1-8b-instant"
)

// GroqModel serves Llama text generation through Groq's OpenAI-compatible
// chat completions endpoint.
type GroqModel struct {
	apiKey string
	client *http.Client
}

// NewGroqModel constructs a GroqModel.
func NewGroqModel(apiKey string) *GroqModel {
	return &GroqModel{
		apiKey: apiKey,
		client: &http.Client{Timeout: providerCallTimeout},
	}
}

// Descriptor implements registry.Model.
func (m *GroqModel) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		Provider:     "Llama",
		Version:      groqChatModel,
		Description:  "Meta Llama via Groq",
		Capabilities: []registry.Capability{registry.TextToText},
		Default:      true,
		UserVisible:  true,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Execute implements registry.Model.
func (m *GroqModel) Execute(ctx context.Context, in registry.Input) (registry.Output, error) {
	if in.Kind != registry.InputText {
		return registry.None(), nil
	}

	payload := chatRequest{
		Model: groqChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: "you are a helpful assistant."},
			{Role: "user", Content: in.Text},
		},
		Temperature: 1,
		MaxTokens:   1024,
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("groq: marshal request")
		return registry.None(), nil
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, groqChatURL, bytes.NewReader(body))
	if errReq != nil {
		log.WithError(errReq).Warn("groq: build request")
		return registry.None(), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, errDo := m.client.Do(req)
	if errDo != nil {
		log.WithError(errDo).Warn("groq: request failed")
		return registry.None(), nil
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("groq: close response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warnf("groq: unexpected status %d", resp.StatusCode)
		return registry.None(), nil
	}

	raw, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		log.WithError(errRead).Warn("groq: read response")
		return registry.None(), nil
	}

	var out chatResponse
	if errUnmarshal := json.Unmarshal(raw, &out); errUnmarshal != nil {
		log.WithError(errUnmarshal).Warn("groq: decode response")
		return registry.None(), nil
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return registry.None(), nil
	}
	return registry.Output{Kind: registry.OutputText, Text: out.Choices[0].Message.Content}, nil
}
