package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type accessRequest struct {
	Timestamp *time.Time `json:"timestamp"`
}

// PostAccess records an access signal. Duplicates within the debounce
// window are reported with accepted=false, not as an error.
func (h *Handler) PostAccess(c *gin.Context) {
	var req accessRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "timestamp must be RFC 3339")
			return
		}
	}
	at := h.now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}

	ctx := c.Request.Context()
	accepted, err := h.access.Record(ctx, at)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	total, err := h.access.CountToday(ctx, h.now())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted, "total_today": total})
}
