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

// midjourneyNegativePrompt suppresses the usual diffusion artifacts on every
// generation.
const midjourneyNegativePrompt = "(deformed iris, deformed pupils, semi-realistic, cgi, 3d, render, sketch, cartoon," +
	"drawing, anime:1.4), text, close up, cropped, out of frame, worst quality, low quality," +
	"jpeg artifacts, ugly, duplicate, morbid, mutilated, extra fingers, mutated hands," +
	"poorly drawn hands, poorly drawn face, mutation, deformed, blurry, dehydrated," +
	"bad anatomy, bad proportions, extra limbs, cloned face, disfigured, gross proportions," +
	"malformed limbs, missing arms, missing legs, extra arms, extra legs, fused fingers," +
	"too many fingers, long neck"

// MidJourneyModel serves image generation through a MidJourney-style hosted
// space. The space answers a generation request with the URL of the rendered
// image, which is then fetched in a second call.
type MidJourneyModel struct {
	endpoint string
	client   *http.Client
}

// NewMidJourneyModel constructs a MidJourneyModel.
func NewMidJourneyModel(endpoint string) *MidJourneyModel {
	return &MidJourneyModel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: providerCallTimeout},
	}
}

// Descriptor implements registry.Model.
func (m *MidJourneyModel) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		Provider:     "MidJourney",
		Version:      "midjourney",
		Description:  "MidJourney image generation (English prompts only)",
		Capabilities: []registry.Capability{registry.TextToImg},
		UserVisible:  true,
	}
}

type midjourneyRequest struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	UseNegativePrompt bool    `json:"use_negative_prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	GuidanceScale     float64 `json:"guidance_scale"`
	RandomizeSeed     bool    `json:"randomize_seed"`
}

type midjourneyResponse struct {
	URL string `json:"url"`
}

// Execute implements registry.Model.
func (m *MidJourneyModel) Execute(ctx context.Context, in registry.Input) (registry.Output, error) {
	if in.Kind != registry.InputText {
		return registry.None(), nil
	}

	body, errMarshal := json.Marshal(midjourneyRequest{
		Prompt:            in.Text,
		NegativePrompt:    midjourneyNegativePrompt,
		UseNegativePrompt: true,
		Width:             1024,
		Height:            1024,
		GuidanceScale:     6,
		RandomizeSeed:     true,
	})
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("midjourney: marshal request")
		return registry.None(), nil
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if errReq != nil {
		log.WithError(errReq).Warn("midjourney: build request")
		return registry.None(), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := m.client.Do(req)
	if errDo != nil {
		log.WithError(errDo).Warn("midjourney: request failed")
		return registry.None(), nil
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("midjourney: close response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warnf("midjourney: unexpected status %d", resp.StatusCode)
		return registry.None(), nil
	}

	var decoded midjourneyResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&decoded); errDecode != nil {
		log.WithError(errDecode).Warn("midjourney: decode response")
		return registry.None(), nil
	}
	if decoded.URL == "" {
		return registry.None(), nil
	}
	return m.fetchImage(ctx, decoded.URL)
}

// fetchImage downloads the rendered image the space pointed at.
func (m *MidJourneyModel) fetchImage(ctx context.Context, url string) (registry.Output, error) {
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if errReq != nil {
		log.WithError(errReq).Warn("midjourney: build image request")
		return registry.None(), nil
	}

	resp, errDo := m.client.Do(req)
	if errDo != nil {
		log.WithError(errDo).Warn("midjourney: image download failed")
		return registry.None(), nil
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("midjourney: close image body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warnf("midjourney: image download status %d", resp.StatusCode)
		return registry.None(), nil
	}

	data, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		log.WithError(errRead).Warn("midjourney: read image")
		return registry.None(), nil
	}
	if len(data) == 0 {
		return registry.None(), nil
	}
	return registry.Output{Kind: registry.OutputImage, Data: data}, nil
}
