package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parking-status-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint        string `json:"endpoint" binding:"required"`
	P256DH          string `json:"p256dh" binding:"required"`
	Auth            string `json:"auth" binding:"required"`
	SubscribedSlots []int  `json:"subscribed_slots"`
}

// PutSubscription handles the creation or replacement of a subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.subscriptions.PutSubscription(c.Request.Context(), &subscription, req.SubscribedSlots); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	if err := h.subscriptions.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam reads key without URL decoding; push endpoints carry
// percent-encoded segments that must round-trip unchanged.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		badRequest(c, "endpoint is required")
		return
	}

	subscription, err := h.subscriptions.Subscription(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		h.abortWithError(c, err)
		return
	}

	slots := make([]int, len(subscription.Slots))
	for i, slot := range subscription.Slots {
		slots[i] = slot.Number
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_slots": slots})
}
