package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrDuplicateModel indicates a (provider, version) pair was registered twice.
// Duplicate registration is a bootstrap bug and is fatal at startup.
var ErrDuplicateModel = errors.New("registry: duplicate model")

// ErrMalformedModelID indicates a model id that is not "provider:version".
var ErrMalformedModelID = errors.New("registry: malformed model id")

// Registry is the process-wide model catalog, keyed by (provider, version).
// It is constructed explicitly at startup and injected into the dispatch and
// arena engines; models are never unregistered at runtime.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]map[string]Model

	// order preserves registration order so capability listings stay stable
	// across calls within a process lifetime.
	order []Model
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{providers: make(map[string]map[string]Model)}
}

// Register inserts a model into the catalog. Registering an existing
// (provider, version) fails with ErrDuplicateModel; there is no silent
// overwrite.
func (r *Registry) Register(m Model) error {
	if m == nil {
		return fmt.Errorf("registry: nil model")
	}
	desc := m.Descriptor()
	provider := strings.ToLower(strings.TrimSpace(desc.Provider))
	version := strings.TrimSpace(desc.Version)
	if provider == "" || version == "" {
		return fmt.Errorf("registry: descriptor missing provider or version")
	}
	if len(desc.Capabilities) == 0 {
		return fmt.Errorf("registry: model %s:%s declares no capabilities", provider, version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	versions := r.providers[provider]
	if versions == nil {
		versions = make(map[string]Model)
		r.providers[provider] = versions
	}
	if _, exists := versions[version]; exists {
		return fmt.Errorf("%w: %s:%s", ErrDuplicateModel, provider, version)
	}
	versions[version] = m
	r.order = append(r.order, m)
	log.Infof("registry: registered %s:%s", provider, version)
	return nil
}

// Lookup returns the model for (provider, version), or false when absent.
// Absence is not an error: callers handle stale user-supplied ids explicitly.
func (r *Registry) Lookup(provider, version string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.providers[strings.ToLower(provider)][version]
	return m, ok
}

// LookupID resolves a canonical "provider:version" id. A malformed id returns
// ErrMalformedModelID; an unknown id returns (nil, false, nil).
func (r *Registry) LookupID(id string) (Model, bool, error) {
	provider, version, err := ParseModelID(id)
	if err != nil {
		return nil, false, err
	}
	m, ok := r.Lookup(provider, version)
	return m, ok, nil
}

// Provider returns all models registered under a provider, in registration
// order.
func (r *Registry) Provider(provider string) []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := r.providers[strings.ToLower(provider)]
	out := make([]Model, 0, len(versions))
	for _, m := range r.order {
		if strings.EqualFold(m.Descriptor().Provider, provider) {
			out = append(out, m)
		}
	}
	return out
}

// Providers lists all provider names in first-registration order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.providers))
	out := make([]string, 0, len(r.providers))
	for _, m := range r.order {
		p := strings.ToLower(m.Descriptor().Provider)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// UserVisibleProviders lists providers that have at least one user-selectable
// model, excluding infrastructure-only backends such as transcription.
func (r *Registry) UserVisibleProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.providers))
	out := make([]string, 0, len(r.providers))
	for _, m := range r.order {
		desc := m.Descriptor()
		if !desc.UserVisible {
			continue
		}
		p := strings.ToLower(desc.Provider)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// ByCapability returns all models whose capability set contains tag, in
// registration order.
func (r *Registry) ByCapability(tag Capability) []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Model
	for _, m := range r.order {
		if m.Descriptor().Supports(tag) {
			out = append(out, m)
		}
	}
	return out
}

// All returns every registered model in registration order.
func (r *Registry) All() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Model, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultForProvider returns the provider's model flagged default, else the
// first registered one, else false.
func (r *Registry) DefaultForProvider(provider string) (Model, bool) {
	models := r.Provider(provider)
	if len(models) == 0 {
		return nil, false
	}
	for _, m := range models {
		if m.Descriptor().Default {
			return m, true
		}
	}
	return models[0], true
}
