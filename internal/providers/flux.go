package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/modelarena/modelarena/internal/registry"
	log "github.com/sirupsen/logrus"
)

// FluxModel serves image generation through a FLUX.1 inference endpoint that
// accepts a JSON prompt and answers with raw image bytes.
type FluxModel struct {
	endpoint string
	client   *http.Client
}

// NewFluxModel constructs a FluxModel.
func NewFluxModel(endpoint string) *FluxModel {
	return &FluxModel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: providerCallTimeout},
	}
}

// Descriptor implements registry.Model.
func (m *FluxModel) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		Provider:     "Flux",
		Version:      "schnell",
		Description:  "FLUX.1 [schnell] image generation",
		Capabilities: []registry.Capability{registry.TextToImg},
		Default:      true,
		UserVisible:  true,
	}
}

// Execute implements registry.Model.
func (m *FluxModel) Execute(ctx context.Context, in registry.Input) (registry.Output, error) {
	if in.Kind != registry.InputText {
		return registry.None(), nil
	}

	body, errMarshal := json.Marshal(map[string]string{"prompt": in.Text})
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("flux: marshal request")
		return registry.None(), nil
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if errReq != nil {
		log.WithError(errReq).Warn("flux: build request")
		return registry.None(), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := m.client.Do(req)
	if errDo != nil {
		log.WithError(errDo).Warn("flux: request failed")
		return registry.None(), nil
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("flux: close response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warnf("flux: unexpected status %d", resp.StatusCode)
		return registry.None(), nil
	}

	data, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		log.WithError(errRead).Warn("flux: read response")
		return registry.None(), nil
	}
	if len(data) == 0 {
		return registry.None(), nil
	}
	return registry.Output{Kind: registry.OutputImage, Data: data}, nil
}
