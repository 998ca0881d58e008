package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/towerdefense/audit"
)

const maxAuditEntries = 500

// AuditHandler serves the recent intent trail.
type AuditHandler struct {
	trail *audit.Service
}

func NewAuditHandler(trail *audit.Service) *AuditHandler {
	return &AuditHandler{trail: trail}
}

// Recent handles GET /api/audit?limit=N.
func (h *AuditHandler) Recent(c *gin.Context) {
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxAuditEntries)
	}
	entries := h.trail.Recent(limit)
	c.JSON(http.StatusOK, gin.H{"entries": entries, "dropped": h.trail.Dropped()})
}
