// Package handlers implements the public JSON API: single-model dispatch,
// arena rounds and votes, the leaderboard and quota lookups.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/modelarena/internal/arena"
	"github.com/modelarena/modelarena/internal/dispatch"
	"github.com/modelarena/modelarena/internal/quota"
	"github.com/modelarena/modelarena/internal/ratelimit"
	"github.com/modelarena/modelarena/internal/registry"
)

// inputRequest is the wire form of a model input. Data is base64 in JSON.
type inputRequest struct {
	Kind   string `json:"kind"`
	Text   string `json:"text,omitempty"`
	Data   []byte `json:"data,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

func (r inputRequest) toInput() (registry.Input, error) {
	switch r.Kind {
	case "", "text":
		return registry.Input{Kind: registry.InputText, Text: r.Text}, nil
	case "image":
		if len(r.Data) == 0 {
			return registry.Input{}, errors.New("image input requires data")
		}
		return registry.Input{Kind: registry.InputImage, Data: r.Data, Prompt: r.Prompt}, nil
	case "audio":
		if len(r.Data) == 0 {
			return registry.Input{}, errors.New("audio input requires data")
		}
		return registry.Input{Kind: registry.InputAudio, Data: r.Data, Prompt: r.Prompt}, nil
	default:
		return registry.Input{}, fmt.Errorf("unknown input kind %q", r.Kind)
	}
}

// formatOutput converts a model output to a response payload. Absent
// outputs carry only their kind.
func formatOutput(out registry.Output) gin.H {
	switch out.Kind {
	case registry.OutputText:
		return gin.H{"kind": "text", "text": out.Text}
	case registry.OutputImage:
		return gin.H{"kind": "image", "data": out.Data}
	case registry.OutputAudio:
		return gin.H{"kind": "audio", "data": out.Data}
	default:
		return gin.H{"kind": "none"}
	}
}

// writeEngineError maps engine errors to HTTP statuses.
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrMalformedModelID),
		errors.Is(err, dispatch.ErrCapabilityMismatch),
		errors.Is(err, arena.ErrUnknownClass):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrModelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, quota.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "daily quota exceeded"})
	case errors.Is(err, arena.ErrNotEnoughModels),
		errors.Is(err, arena.ErrNoPendingPair):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// allowUser applies the request rate limit for a user. It writes the 429
// response and returns false when the limit is hit. A nil limiter allows
// everything.
func allowUser(c *gin.Context, limiter *ratelimit.Manager, userID uint64) bool {
	if limiter == nil {
		return true
	}
	res := limiter.AllowUser(c.Request.Context(), userID)
	if res.Allowed {
		return true
	}
	if res.RetryIn > 0 {
		c.Header("Retry-After", strconv.Itoa(int(res.RetryIn.Seconds())+1))
	}
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	return false
}
