package registry

import (
	"context"
	"fmt"
	"strings"
)

// Capability identifies one input/output modality a model supports.
type Capability string

// Capability tags supported by the dispatch and arena engines.
const (
	TextToText  Capability = "text-to-text"
	TextToImg   Capability = "text-to-img"
	ImgToText   Capability = "img-to-text"
	AudioToText Capability = "audio-to-text"
)

// InputKind identifies the modality of a request payload.
type InputKind int

const (
	InputText InputKind = iota
	InputImage
	InputAudio
)

// Input is the payload handed to a model invocation. Text carries the prompt
// for text input; Data carries raw bytes for image and audio input, with
// Prompt as an optional auxiliary caption.
type Input struct {
	Kind   InputKind
	Text   string
	Data   []byte
	Prompt string
}

// OutputKind identifies the modality of a model response.
type OutputKind int

const (
	// OutputNone is the absence sentinel: the provider produced no usable
	// result. It is not an error.
	OutputNone OutputKind = iota
	OutputText
	OutputImage
	OutputAudio
)

// Output is a normalized model response.
type Output struct {
	Kind OutputKind
	Text string
	Data []byte
}

// None returns the absence sentinel.
func None() Output { return Output{Kind: OutputNone} }

// Descriptor holds identity and metadata for one backend model instance.
// Immutable after registration.
type Descriptor struct {
	Provider     string
	Version      string
	Description  string
	Capabilities []Capability

	// Default marks the preferred model within its provider. Advisory; at
	// most one per provider.
	Default bool

	// UserVisible is false for infrastructure-only backends such as the
	// transcription model.
	UserVisible bool
}

// ID returns the canonical "provider:version" model id.
func (d Descriptor) ID() string {
	return fmt.Sprintf("%s:%s", strings.ToLower(d.Provider), d.Version)
}

// DisplayName returns the human-readable model name.
func (d Descriptor) DisplayName() string {
	return fmt.Sprintf("%s %s", d.Provider, d.Version)
}

// Supports reports whether the descriptor declares the given capability.
func (d Descriptor) Supports(tag Capability) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Model is the uniform interface every AI backend registers under.
//
// Execute must not return an error for recoverable provider failures: it
// returns the OutputNone sentinel and the caller decides on user-facing
// messaging. Errors are reserved for contract violations.
type Model interface {
	Descriptor() Descriptor
	Execute(ctx context.Context, in Input) (Output, error)
}

// ParseModelID splits a canonical "provider:version" id. The provider part is
// lowercased. A malformed id is a hard error (ErrMalformedModelID).
func ParseModelID(id string) (provider, version string, err error) {
	provider, version, ok := strings.Cut(strings.TrimSpace(id), ":")
	if !ok || provider == "" || version == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedModelID, id)
	}
	return strings.ToLower(provider), version, nil
}
