package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"parking-status-backend/internal/tracker"
)

type telemetryRequest struct {
	Message string `json:"message" binding:"required"`
}

type slotResponse struct {
	Slot      int       `json:"slot"`
	State     string    `json:"state"`
	Changed   bool      `json:"changed"`
	ChangedAt time.Time `json:"changed_at"`
}

func toSlotResponse(res tracker.Result) slotResponse {
	return slotResponse{
		Slot:      res.Slot.Number,
		State:     string(res.Slot.State),
		Changed:   res.Changed,
		ChangedAt: res.Slot.ChangedAt,
	}
}

// PostTelemetry applies one sensor message, sent as plain text or as {"message": "..."}.
func (h *Handler) PostTelemetry(c *gin.Context) {
	var raw string
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req telemetryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "message is required")
			return
		}
		raw = req.Message
	} else {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 512))
		if err != nil {
			badRequest(c, "unreadable body")
			return
		}
		raw = string(body)
	}

	res, err := h.tracker.Record(c.Request.Context(), raw)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSlotResponse(res))
}

// GetSlots returns every slot with its live state.
func (h *Handler) GetSlots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"slots":  h.tracker.Snapshot(),
		"counts": h.tracker.Counts(),
	})
}

// BlockSlot marks a slot as blocked.
func (h *Handler) BlockSlot(c *gin.Context) {
	h.changeSlot(c, h.tracker.Block)
}

// UnblockSlot frees a blocked slot.
func (h *Handler) UnblockSlot(c *gin.Context) {
	h.changeSlot(c, h.tracker.Unblock)
}

func (h *Handler) changeSlot(c *gin.Context, apply func(ctx context.Context, slot int) (tracker.Result, error)) {
	slot, err := strconv.Atoi(c.Param("n"))
	if err != nil || slot <= 0 {
		badRequest(c, "invalid slot number")
		return
	}
	res, err := apply(c.Request.Context(), slot)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSlotResponse(res))
}
