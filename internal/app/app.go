// Package app assembles the parking backend from its configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parking-status-backend/config"
	"parking-status-backend/internal/access"
	"parking-status-backend/internal/analytics"
	"parking-status-backend/internal/api"
	"parking-status-backend/internal/dashboard"
	"parking-status-backend/internal/db"
	"parking-status-backend/internal/logging"
	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/model"
	"parking-status-backend/internal/notification"
	"parking-status-backend/internal/payment"
	"parking-status-backend/internal/pricing"
	"parking-status-backend/internal/session"
	"parking-status-backend/internal/store"
	"parking-status-backend/internal/telemetry"
	"parking-status-backend/internal/tracker"
)

// openDB is replaced in tests to observe the connection lifecycle.
var openDB = db.Init

// App is a fully wired backend.
type App struct {
	Router   *gin.Engine
	Store    store.Store
	Tracker  *tracker.Tracker
	Ingestor *telemetry.Ingestor

	pool   *notification.WorkerPool
	close  func() error
	logger *zap.Logger
}

// New opens the store, restores state from it and builds the HTTP surface.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	loc, err := time.LoadLocation(cfg.Parking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", model.ErrInvalidConfig, cfg.Parking.Timezone, err)
	}

	a := &App{logger: logger, close: func() error { return nil }}
	if cfg.Database.Driver == "memory" {
		logger.Warn("using in-memory store, data is lost on restart")
		a.Store = store.NewMemoryStore()
	} else {
		gormDB, err := openDB(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, err
		}
		a.Store = store.NewGormStore(gormDB)
		a.close = sqlDB.Close
	}

	if err := a.wire(ctx, cfg, m, loc); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// wire builds every component on top of the opened store.
func (a *App) wire(ctx context.Context, cfg *config.Config, m *metrics.Metrics, loc *time.Location) error {
	fallback, err := pricing.FromConfig(cfg.Pricing)
	if err != nil {
		return err
	}
	prices := pricing.NewManager(a.Store, a.logger)
	if err := prices.Load(ctx, fallback); err != nil {
		return err
	}

	a.Tracker = tracker.New(a.Store, cfg.Parking.Slots, m, a.logger)
	if err := a.Tracker.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore slot states: %w", err)
	}

	dwell := analytics.NewDwellAnalyzer(time.Duration(cfg.Parking.MinDwellMS)*time.Millisecond, cfg.Parking.DwellWindow, m)
	recent, err := a.Store.RecentOccupations(ctx, cfg.Parking.ReplayLimit)
	if err != nil {
		return fmt.Errorf("failed to replay occupations: %w", err)
	}
	dwell.Replay(recent)

	usage := tracker.NewUsageCounter(loc)
	today, err := a.Store.OccupationsSince(ctx, model.StartOfDay(time.Now(), loc))
	if err != nil {
		return fmt.Errorf("failed to replay today's occupations: %w", err)
	}
	usage.Replay(today)

	a.Tracker.Subscribe(dwell)
	a.Tracker.Subscribe(usage)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		a.pool = notification.NewWorkerPool(cfg.WorkerPool.Size, a.Store, webpushOptions, m, a.logger)
		a.Tracker.Subscribe(a.pool)
	} else {
		a.logger.Info("VAPID keys not configured, push notifications disabled")
	}

	a.Ingestor = telemetry.NewIngestor(a.Tracker, cfg.Telemetry.QueueSize, m, a.logger)

	encoder, err := payment.NewEncoder(cfg.Payment)
	if err != nil {
		return err
	}
	sessions := session.NewService(a.Store, prices, a.logger, session.WithEncoder(encoder), session.WithMetrics(m))

	dedup := access.NewDeduplicator(a.Store, time.Duration(cfg.Parking.DebounceMS)*time.Millisecond, loc, m, a.logger)

	a.Router = api.NewRouter(cfg.Server, api.Deps{
		Sessions:      sessions,
		Pricing:       prices,
		Access:        dedup,
		Tracker:       a.Tracker,
		Dashboard:     dashboard.New(a.Store, a.Tracker, dwell, dedup, usage, loc),
		Subscriptions: a.Store,
		WebPush:       webpushOptions,
		Logger:        a.logger,
	}, telemetry.NewHandler(a.Ingestor, cfg.Server.AllowedOrigins, a.logger))

	a.logger.Info("backend assembled",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("slots", cfg.Parking.Slots),
		zap.String("timezone", loc.String()),
		zap.Int("dwell_samples", len(dwell.Durations())),
	)
	return nil
}

// Run drives the background workers until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Start(ctx)
	}
	return a.Ingestor.Run(ctx)
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.close()
}
