// Package dashboard composes the read-side figures served to the admin dashboard.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"parking-status-backend/internal/analytics"
	"parking-status-backend/internal/model"
)

type SessionStatser interface {
	SessionStats(ctx context.Context, since time.Time) (model.SessionStats, error)
}

type SlotCounter interface {
	Slots() int
	Counts() map[model.SlotStatus]int
}

type DwellAverager interface {
	Average() (time.Duration, bool)
}

type AccessLister interface {
	TodayTimestamps(ctx context.Context, now time.Time) ([]time.Time, error)
}

type UsageReader interface {
	Today(now time.Time) map[int]int
}

// SlotSummary counts slots by state.
type SlotSummary struct {
	Total    int `json:"total"`
	Free     int `json:"free"`
	Occupied int `json:"occupied"`
	Blocked  int `json:"blocked"`
}

// Stats is one dashboard snapshot.
type Stats struct {
	ActiveVehicles      int64           `json:"active_vehicles"`
	AwaitingPayment     int64           `json:"awaiting_payment"`
	EntriesToday        int64           `json:"entries_today"`
	ExitsToday          int64           `json:"exits_today"`
	RevenueToday        decimal.Decimal `json:"revenue_today"`
	AccessesToday       int             `json:"accesses_today"`
	OccupancyRate       float64         `json:"occupancy_rate"`
	Slots               SlotSummary     `json:"slots"`
	SlotUsageToday      map[int]int     `json:"slot_usage_today"`
	AverageDwellSeconds *float64        `json:"average_dwell_seconds"`
	AverageDwell        string          `json:"average_dwell"`
	AverageStaySeconds  *float64        `json:"average_stay_seconds"`
	AverageStay         string          `json:"average_stay"`
	PeakHour            *int            `json:"peak_hour"`
	PeakHourLabel       string          `json:"peak_hour_label"`
	HourlyAccesses      [24]int         `json:"hourly_accesses"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// Aggregator builds dashboard snapshots. It never mutates state.
type Aggregator struct {
	sessions SessionStatser
	slots    SlotCounter
	dwell    DwellAverager
	accesses AccessLister
	usage    UsageReader
	loc      *time.Location
	now      func() time.Time
}

// New creates an aggregator; loc decides where "today" starts.
func New(sessions SessionStatser, slots SlotCounter, dwell DwellAverager, accesses AccessLister, usage UsageReader, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		sessions: sessions,
		slots:    slots,
		dwell:    dwell,
		accesses: accesses,
		usage:    usage,
		loc:      loc,
		now:      time.Now,
	}
}

// Snapshot reads every source and composes the figures.
func (a *Aggregator) Snapshot(ctx context.Context) (Stats, error) {
	now := a.now()
	stats := Stats{GeneratedAt: now.UTC()}

	var (
		sessionStats model.SessionStats
		timestamps   []time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessionStats, err = a.sessions.SessionStats(gctx, model.StartOfDay(now, a.loc))
		if err != nil {
			return fmt.Errorf("failed to load session stats: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		timestamps, err = a.accesses.TodayTimestamps(gctx, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats.ActiveVehicles = sessionStats.Active
	stats.AwaitingPayment = sessionStats.AwaitingPayment
	stats.EntriesToday = sessionStats.EntriesToday
	stats.ExitsToday = sessionStats.ExitsToday
	stats.RevenueToday = sessionStats.RevenueToday
	if sessionStats.ExitsToday > 0 {
		avg := time.Duration(sessionStats.StaySecondsToday/sessionStats.ExitsToday) * time.Second
		seconds := avg.Seconds()
		stats.AverageStaySeconds = &seconds
		stats.AverageStay = analytics.FormatDuration(avg)
	}

	counts := a.slots.Counts()
	stats.Slots = SlotSummary{
		Total:    a.slots.Slots(),
		Free:     counts[model.SlotFree],
		Occupied: counts[model.SlotOccupied],
		Blocked:  counts[model.SlotBlocked],
	}
	stats.OccupancyRate = OccupancyRate(stats.Slots.Occupied, stats.Slots.Total)
	stats.SlotUsageToday = a.usage.Today(now)

	if avg, ok := a.dwell.Average(); ok {
		seconds := avg.Seconds()
		stats.AverageDwellSeconds = &seconds
		stats.AverageDwell = analytics.FormatDuration(avg)
	}

	stats.AccessesToday = len(timestamps)
	stats.HourlyAccesses = analytics.HourlyHistogram(timestamps, a.loc)
	if hour, ok := analytics.PeakHour(timestamps, a.loc); ok {
		stats.PeakHour = &hour
		stats.PeakHourLabel = analytics.PeakHourLabel(hour)
	}
	return stats, nil
}

// OccupancyRate is occupied/total as a percentage with one decimal.
// Blocked slots stay in the denominator.
func OccupancyRate(occupied, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(occupied)/float64(total)*1000) / 10
}
