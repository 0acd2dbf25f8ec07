package logging

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"parking-status-backend/config"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// RequestIDHeader is read from and echoed on every HTTP response.
const RequestIDHeader = "X-Request-ID"

// New builds the process logger from the log configuration.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID retrieves the correlation ID from context, or generates a new one if not present
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// FromContext returns l annotated with the context's correlation ID.
func FromContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	return OrNop(l).With(zap.String("correlation_id", CorrelationID(ctx)))
}

// Middleware tags every request context with a correlation ID and logs the request outcome.
func Middleware(l *zap.Logger) gin.HandlerFunc {
	l = OrNop(l)
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Request = c.Request.WithContext(WithCorrelationID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)

		c.Next()

		l.Debug("request served",
			zap.String("correlation_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
