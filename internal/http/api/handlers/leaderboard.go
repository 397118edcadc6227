package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/modelarena/internal/rating"
)

// defaultLeaderboardLimit caps an unbounded leaderboard query.
const defaultLeaderboardLimit = 50

// LeaderboardHandler serves the arena rating leaderboard.
type LeaderboardHandler struct {
	ratings *rating.Store
}

// NewLeaderboardHandler constructs a LeaderboardHandler.
func NewLeaderboardHandler(ratings *rating.Store) *LeaderboardHandler {
	return &LeaderboardHandler{ratings: ratings}
}

// List returns models ordered by rating descending.
func (h *LeaderboardHandler) List(c *gin.Context) {
	limit := defaultLeaderboardLimit
	if limitQ := strings.TrimSpace(c.Query("limit")); limitQ != "" {
		if n, errParse := strconv.Atoi(limitQ); errParse == nil && n > 0 {
			limit = n
		}
	}

	rows, errList := h.ratings.ListSorted(c.Request.Context(), limit)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list ratings failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i, row := range rows {
		out = append(out, gin.H{
			"rank":         i + 1,
			"model_id":     row.ModelID,
			"display_name": row.DisplayName,
			"rating":       row.Rating,
		})
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": out})
}
