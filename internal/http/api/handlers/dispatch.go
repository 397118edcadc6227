package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/modelarena/internal/dispatch"
	"github.com/modelarena/modelarena/internal/ratelimit"
)

// DispatchHandler handles single-model invocation requests.
type DispatchHandler struct {
	engine  *dispatch.Engine
	limiter *ratelimit.Manager
}

// NewDispatchHandler constructs a DispatchHandler.
func NewDispatchHandler(engine *dispatch.Engine, limiter *ratelimit.Manager) *DispatchHandler {
	return &DispatchHandler{engine: engine, limiter: limiter}
}

// dispatchRequest defines the request body for dispatching to one model.
type dispatchRequest struct {
	UserID  uint64       `json:"user_id"`
	ModelID string       `json:"model_id"`
	Input   inputRequest `json:"input"`
}

// Dispatch invokes the requested model with the request input.
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	var body dispatchRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if body.ModelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model_id is required"})
		return
	}
	input, errInput := body.Input.toInput()
	if errInput != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInput.Error()})
		return
	}

	if !allowUser(c, h.limiter, body.UserID) {
		return
	}

	res, errDispatch := h.engine.Dispatch(c.Request.Context(), dispatch.Request{
		UserID:  body.UserID,
		ModelID: body.ModelID,
		Input:   input,
	})
	if errDispatch != nil {
		writeEngineError(c, errDispatch)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model_id": res.ModelID,
		"output":   formatOutput(res.Output),
	})
}
