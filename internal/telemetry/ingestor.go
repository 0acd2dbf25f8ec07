// Package telemetry carries slot sensor messages from the transports into
// the tracker through a single ordered queue.
package telemetry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"parking-status-backend/internal/logging"
	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/model"
	"parking-status-backend/internal/tracker"
)

// Recorder applies one raw telemetry message.
type Recorder interface {
	Record(ctx context.Context, raw string) (tracker.Result, error)
}

type message struct {
	raw           string
	correlationID string
}

// Ingestor queues telemetry and feeds it to the recorder from one goroutine,
// so messages for a slot are applied in arrival order.
type Ingestor struct {
	recorder Recorder
	queue    chan message
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewIngestor creates an ingestor with a queue of the given size.
func NewIngestor(recorder Recorder, size int, m *metrics.Metrics, logger *zap.Logger) *Ingestor {
	if size <= 0 {
		size = 256
	}
	return &Ingestor{
		recorder: recorder,
		queue:    make(chan message, size),
		metrics:  m,
		logger:   logging.OrNop(logger),
	}
}

// Submit enqueues raw without blocking. It returns false when the queue is full.
func (i *Ingestor) Submit(ctx context.Context, raw string) bool {
	select {
	case i.queue <- message{raw: raw, correlationID: logging.CorrelationID(ctx)}:
		return true
	default:
		i.metrics.RecordTelemetry("dropped")
		i.logger.Warn("telemetry queue full, dropping message", zap.String("message", raw))
		return false
	}
}

// Run consumes the queue until ctx is cancelled.
func (i *Ingestor) Run(ctx context.Context) error {
	i.logger.Info("starting telemetry ingestor", zap.Int("queue_size", cap(i.queue)))
	for {
		select {
		case <-ctx.Done():
			i.logger.Info("telemetry ingestor shutting down", zap.Int("pending", len(i.queue)))
			return nil
		case msg := <-i.queue:
			i.process(ctx, msg)
		}
	}
}

func (i *Ingestor) process(ctx context.Context, msg message) {
	ctx = logging.WithCorrelationID(ctx, msg.correlationID)
	_, err := i.recorder.Record(ctx, msg.raw)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrMalformedMessage):
		logging.FromContext(ctx, i.logger).Warn("discarding malformed telemetry",
			zap.String("message", msg.raw), zap.Error(err))
	default:
		logging.FromContext(ctx, i.logger).Error("failed to apply telemetry",
			zap.String("message", msg.raw), zap.Error(err))
	}
}
