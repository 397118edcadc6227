package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/modelarena/internal/registry"
)

// ModelsHandler serves the user-visible model catalog.
type ModelsHandler struct {
	reg *registry.Registry
}

// NewModelsHandler constructs a ModelsHandler.
func NewModelsHandler(reg *registry.Registry) *ModelsHandler {
	return &ModelsHandler{reg: reg}
}

// List returns the user-visible models grouped by provider.
func (h *ModelsHandler) List(c *gin.Context) {
	providers := h.reg.UserVisibleProviders()

	out := make([]gin.H, 0, len(providers))
	for _, provider := range providers {
		entries := make([]gin.H, 0)
		for _, m := range h.reg.Provider(provider) {
			d := m.Descriptor()
			if !d.UserVisible {
				continue
			}
			caps := make([]string, 0, len(d.Capabilities))
			for _, tag := range d.Capabilities {
				caps = append(caps, string(tag))
			}
			entries = append(entries, gin.H{
				"model_id":     d.ID(),
				"display_name": d.DisplayName(),
				"capabilities": caps,
				"default":      d.Default,
			})
		}
		out = append(out, gin.H{"provider": provider, "models": entries})
	}

	c.JSON(http.StatusOK, gin.H{"providers": out})
}
