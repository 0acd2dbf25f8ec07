// Package notification sends web push messages to subscribers when a slot
// they watch becomes free.
package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"parking-status-backend/internal/logging"
	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the persistence the workers need.
type SubscriptionStore interface {
	SubscriptionsForSlot(ctx context.Context, slot int) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan int
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, store SubscriptionStore, webpushOptions *webpush.Options, m *metrics.Metrics, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int, size*16),
		store:   store,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		metrics: m,
		logger:  logging.OrNop(logger),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case slot := <-wp.jobs:
			wp.sendNotificationsForSlot(ctx, slot)
		case <-ctx.Done():
			wp.logger.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a slot without blocking. It returns false when the queue is full.
func (wp *WorkerPool) Dispatch(slot int) bool {
	select {
	case wp.jobs <- slot:
		return true
	default:
		wp.metrics.RecordNotification("dropped")
		wp.logger.Warn("notification queue full, dropping slot", zap.Int("slot", slot))
		return false
	}
}

// OnTransition dispatches a job whenever a slot becomes free.
func (wp *WorkerPool) OnTransition(rec model.OccupationRecord) {
	if rec.Next == model.SlotFree {
		wp.Dispatch(rec.Slot)
	}
}

// sendNotificationsForSlot fetches subscriptions and sends notifications for a given slot.
func (wp *WorkerPool) sendNotificationsForSlot(ctx context.Context, slot int) {
	subscriptions, err := wp.store.SubscriptionsForSlot(ctx, slot)
	if err != nil {
		wp.metrics.RecordNotification("error")
		wp.logger.Error("failed to fetch subscriptions", zap.Int("slot", slot), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	wp.logger.Info("sending slot notifications", zap.Int("slot", slot), zap.Int("subscriptions", len(subscriptions)))
	message := []byte(fmt.Sprintf("Vaga %d está livre!", slot))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, message)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.metrics.RecordNotification("error")
		wp.logger.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.metrics.RecordNotification("expired")
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.logger.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return
	}
	wp.metrics.RecordNotification("sent")
}
