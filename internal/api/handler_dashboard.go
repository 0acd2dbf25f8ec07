package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDashboardStats returns the dashboard snapshot.
func (h *Handler) GetDashboardStats(c *gin.Context) {
	stats, err := h.dashboard.Snapshot(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
