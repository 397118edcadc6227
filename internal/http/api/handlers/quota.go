package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/modelarena/internal/quota"
)

// QuotaHandler serves per-user quota lookups.
type QuotaHandler struct {
	quotas *quota.Store
}

// NewQuotaHandler constructs a QuotaHandler.
func NewQuotaHandler(quotas *quota.Store) *QuotaHandler {
	return &QuotaHandler{quotas: quotas}
}

// Get returns the user's daily budget and usage after the lazy reset.
func (h *QuotaHandler) Get(c *gin.Context) {
	userID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	info, errInfo := h.quotas.GetInfo(c.Request.Context(), userID)
	if errInfo != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota lookup failed"})
		return
	}

	remaining := info.Limit - info.Used
	if remaining < 0 {
		remaining = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"limit":     info.Limit,
		"used":      info.Used,
		"remaining": remaining,
	})
}
