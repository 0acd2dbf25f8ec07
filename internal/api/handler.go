package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parking-status-backend/internal/access"
	"parking-status-backend/internal/dashboard"
	"parking-status-backend/internal/logging"
	"parking-status-backend/internal/model"
	"parking-status-backend/internal/pricing"
	"parking-status-backend/internal/session"
	"parking-status-backend/internal/store"
	"parking-status-backend/internal/tracker"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	sessions      *session.Service
	pricing       *pricing.Manager
	access        *access.Deduplicator
	tracker       *tracker.Tracker
	dashboard     *dashboard.Aggregator
	subscriptions store.SubscriptionStore
	webpush       *webpush.Options
	logger        *zap.Logger
	now           func() time.Time
}

// Deps lists the components the HTTP surface exposes.
type Deps struct {
	Sessions      *session.Service
	Pricing       *pricing.Manager
	Access        *access.Deduplicator
	Tracker       *tracker.Tracker
	Dashboard     *dashboard.Aggregator
	Subscriptions store.SubscriptionStore
	WebPush       *webpush.Options
	Logger        *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		sessions:      d.Sessions,
		pricing:       d.Pricing,
		access:        d.Access,
		tracker:       d.Tracker,
		dashboard:     d.Dashboard,
		subscriptions: d.Subscriptions,
		webpush:       d.WebPush,
		logger:        logging.OrNop(d.Logger),
		now:           time.Now,
	}
}

// statusFor maps an error class onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrMalformedMessage), errors.Is(err, model.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context(), h.logger).Error("request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": h.now().UTC()})
}
