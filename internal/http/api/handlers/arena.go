package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/modelarena/modelarena/internal/arena"
	"github.com/modelarena/modelarena/internal/ratelimit"
)

// ArenaHandler handles arena round and vote endpoints.
type ArenaHandler struct {
	engine  *arena.Engine
	limiter *ratelimit.Manager
}

// NewArenaHandler constructs an ArenaHandler.
func NewArenaHandler(engine *arena.Engine, limiter *ratelimit.Manager) *ArenaHandler {
	return &ArenaHandler{engine: engine, limiter: limiter}
}

// startRoundRequest defines the request body for starting a round.
type startRoundRequest struct {
	SessionID string       `json:"session_id"`
	UserID    uint64       `json:"user_id"`
	Class     string       `json:"class"`
	Input     inputRequest `json:"input"`
}

// StartRound draws a blind pair and returns both outputs. A missing
// session_id mints a fresh session.
func (h *ArenaHandler) StartRound(c *gin.Context) {
	var body startRoundRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if body.SessionID == "" {
		body.SessionID = uuid.NewString()
	}
	input, errInput := body.Input.toInput()
	if errInput != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInput.Error()})
		return
	}

	if !allowUser(c, h.limiter, body.UserID) {
		return
	}

	round, errStart := h.engine.StartRound(c.Request.Context(), arena.RoundRequest{
		SessionID: body.SessionID,
		UserID:    body.UserID,
		Class:     arena.Class(body.Class),
		Input:     input,
	})
	if errStart != nil {
		writeEngineError(c, errStart)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": round.SessionID,
		"outputs": []gin.H{
			formatOutput(round.Outputs[0]),
			formatOutput(round.Outputs[1]),
		},
	})
}

// voteRequest defines the request body for resolving a round.
type voteRequest struct {
	SessionID string `json:"session_id"`
	Choice    string `json:"choice"`
}

// Vote resolves the session's pending pair and reveals the models.
func (h *ArenaHandler) Vote(c *gin.Context) {
	var body voteRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	choice := arena.Choice(body.Choice)
	switch choice {
	case arena.ChoiceFirst, arena.ChoiceSecond, arena.ChoiceTie:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "choice must be first, second or tie"})
		return
	}

	res, errVote := h.engine.Vote(c.Request.Context(), body.SessionID, choice)
	if errVote != nil {
		writeEngineError(c, errVote)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"first": gin.H{
			"model_id":   res.First,
			"old_rating": res.Result.OldA,
			"new_rating": res.Result.NewA,
		},
		"second": gin.H{
			"model_id":   res.Second,
			"old_rating": res.Result.OldB,
			"new_rating": res.Result.NewB,
		},
	})
}
