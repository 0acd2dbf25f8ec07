package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"parking-status-backend/internal/model"
)

type pricingRequest struct {
	Unit      string           `json:"unit" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price" binding:"required"`
	Minimum   *decimal.Decimal `json:"minimum"`
	Maximum   *decimal.Decimal `json:"maximum"`
}

// GetPricing returns the active pricing configuration.
func (h *Handler) GetPricing(c *gin.Context) {
	cfg, err := h.pricing.Get()
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// PutPricing validates and activates a new pricing configuration.
func (h *Handler) PutPricing(c *gin.Context) {
	var req pricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "unit and unit_price are required")
		return
	}
	unit, ok := model.ParseBillingUnit(req.Unit)
	if !ok {
		h.abortWithError(c, fmt.Errorf("%w: unknown billing unit %q", model.ErrInvalidConfig, req.Unit))
		return
	}

	cfg := model.PricingConfig{
		Unit:      unit,
		UnitPrice: *req.UnitPrice,
		Minimum:   decimal.Zero,
		Maximum:   req.Maximum,
	}
	if req.Minimum != nil {
		cfg.Minimum = *req.Minimum
	}

	if err := h.pricing.Set(c.Request.Context(), cfg); err != nil {
		h.abortWithError(c, err)
		return
	}
	active, err := h.pricing.Get()
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "pricing updated", "config": active})
}
