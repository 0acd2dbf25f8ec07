package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	actionEntry = "entry"
	actionExit  = "exit"
)

type detectRequest struct {
	QRCode string `json:"qr_code" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// Detect handles a gate reading: entry opens a session, exit bills it.
func (h *Handler) Detect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "qr_code and action are required")
		return
	}

	ctx := c.Request.Context()
	switch strings.ToLower(req.Action) {
	case actionEntry:
		v, err := h.sessions.Begin(ctx, req.QRCode)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message": "entry recorded",
			"vehicle": v,
			"action":  "open_gate",
		})
	case actionExit:
		v, err := h.sessions.End(ctx, req.QRCode)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "exit recorded, awaiting payment",
			"vehicle": v,
			"action":  "show_payment",
		})
	default:
		badRequest(c, `action must be "entry" or "exit"`)
	}
}

// GetVehicle returns the most recent session for a gate code.
func (h *Handler) GetVehicle(c *gin.Context) {
	v, err := h.sessions.Snapshot(c.Request.Context(), c.Param("qr_code"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicle": v})
}

type confirmPaymentRequest struct {
	VehicleID  int64            `json:"vehicle_id" binding:"required"`
	AmountPaid *decimal.Decimal `json:"amount_paid" binding:"required"`
	Method     string           `json:"method"`
}

// ConfirmPayment settles a session by its internal id.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "vehicle_id and amount_paid are required")
		return
	}
	if req.Method == "" {
		req.Method = "pix"
	}

	v, err := h.sessions.ConfirmPayment(c.Request.Context(), req.VehicleID, *req.AmountPaid, req.Method)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "payment confirmed",
		"vehicle_id": req.VehicleID,
		"vehicle":    v,
		"action":     "open_gate",
	})
}

// ListActive returns every vehicle currently inside.
func (h *Handler) ListActive(c *gin.Context) {
	views, err := h.sessions.ListActive(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": views, "total": len(views)})
}

// ListAll returns every retained session.
func (h *Handler) ListAll(c *gin.Context) {
	views, err := h.sessions.History(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": views, "total": len(views)})
}
