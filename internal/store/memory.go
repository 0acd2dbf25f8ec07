package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"parking-status-backend/internal/model"
)

// memoryStore keeps everything in process memory. It is used for local
// development and as the reference backend in tests.
type memoryStore struct {
	mu sync.RWMutex

	sessions      []model.VehicleSession
	nextSessionID int64

	slots       map[int]model.SlotState
	occupations []model.OccupationRecord
	nextOccID   int64

	accesses     []model.AccessEvent
	nextAccessID int64

	pricing       []model.PricingConfig
	nextPricingID int64

	subscriptions map[string]model.PushSubscription
	subSlots      map[string][]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() Store {
	return &memoryStore{
		slots:         make(map[int]model.SlotState),
		subscriptions: make(map[string]model.PushSubscription),
		subSlots:      make(map[string][]int),
	}
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, model.ErrNotFound)
}

func cloneSession(s model.VehicleSession) model.VehicleSession {
	c := s
	if s.ExitAt != nil {
		v := *s.ExitAt
		c.ExitAt = &v
	}
	if s.ElapsedSeconds != nil {
		v := *s.ElapsedSeconds
		c.ElapsedSeconds = &v
	}
	if s.Charge != nil {
		v := *s.Charge
		c.Charge = &v
	}
	if s.PaidAmount != nil {
		v := *s.PaidAmount
		c.PaidAmount = &v
	}
	if s.PaidAt != nil {
		v := *s.PaidAt
		c.PaidAt = &v
	}
	return c
}

// --- Sessions ---

func (m *memoryStore) LatestSession(ctx context.Context, gateCode string) (*model.VehicleSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].GateCode == gateCode {
			s := cloneSession(m.sessions[i])
			return &s, nil
		}
	}
	return nil, notFound("latest session")
}

func (m *memoryStore) ActiveSession(ctx context.Context, gateCode string) (*model.VehicleSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].GateCode == gateCode && m.sessions[i].State == model.SessionActive {
			s := cloneSession(m.sessions[i])
			return &s, nil
		}
	}
	return nil, notFound("active session")
}

func (m *memoryStore) SessionByID(ctx context.Context, id int64) (*model.VehicleSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.ID == id {
			c := cloneSession(s)
			return &c, nil
		}
	}
	return nil, notFound("session by id")
}

func (m *memoryStore) ActiveSessions(ctx context.Context) ([]model.VehicleSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.VehicleSession
	for _, s := range m.sessions {
		if s.State == model.SessionActive {
			out = append(out, cloneSession(s))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EntryAt.After(out[j].EntryAt) })
	return out, nil
}

func (m *memoryStore) AllSessions(ctx context.Context) ([]model.VehicleSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.VehicleSession, 0, len(m.sessions))
	for i := len(m.sessions) - 1; i >= 0; i-- {
		out = append(out, cloneSession(m.sessions[i]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EntryAt.After(out[j].EntryAt) })
	return out, nil
}

func (m *memoryStore) CreateSession(ctx context.Context, s *model.VehicleSession, supersededID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if supersededID != 0 {
		for i, existing := range m.sessions {
			if existing.ID == supersededID {
				m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
				break
			}
		}
	}
	m.nextSessionID++
	s.ID = m.nextSessionID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.EntryAt
	}
	m.sessions = append(m.sessions, cloneSession(*s))
	return nil
}

func (m *memoryStore) UpdateSession(ctx context.Context, s *model.VehicleSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		if m.sessions[i].ID == s.ID {
			m.sessions[i] = cloneSession(*s)
			return nil
		}
	}
	return notFound("update session")
}

func (m *memoryStore) SessionStats(ctx context.Context, since time.Time) (model.SessionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stats model.SessionStats
	var paid []model.VehicleSession
	for _, s := range m.sessions {
		switch s.State {
		case model.SessionActive:
			stats.Active++
		case model.SessionAwaitingPayment:
			stats.AwaitingPayment++
		}
		if !s.EntryAt.Before(since) {
			stats.EntriesToday++
		}
		if s.ExitAt != nil && !s.ExitAt.Before(since) {
			stats.ExitsToday++
			if s.ElapsedSeconds != nil {
				stats.StaySecondsToday += *s.ElapsedSeconds
			}
		}
		if s.PaidAt != nil && !s.PaidAt.Before(since) {
			paid = append(paid, s)
		}
	}
	stats.RevenueToday = sumPaid(paid)
	return stats, nil
}

// --- Slots ---

func (m *memoryStore) EnsureSlots(ctx context.Context, n int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 1; i <= n; i++ {
		if _, ok := m.slots[i]; !ok {
			m.slots[i] = model.SlotState{Number: i, State: model.SlotFree, ChangedAt: at}
		}
	}
	return nil
}

func (m *memoryStore) SlotStates(ctx context.Context) ([]model.SlotState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.SlotState, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memoryStore) RecordTransition(ctx context.Context, rec *model.OccupationRecord, state model.SlotState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOccID++
	rec.ID = m.nextOccID
	m.occupations = append(m.occupations, *rec)
	m.slots[state.Number] = state
	return nil
}

func (m *memoryStore) RecentOccupations(ctx context.Context, limit int) ([]model.OccupationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sorted := m.sortedOccupations()
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted, nil
}

func (m *memoryStore) OccupationsSince(ctx context.Context, since time.Time) ([]model.OccupationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.OccupationRecord
	for _, r := range m.sortedOccupations() {
		if !r.At.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

// sortedOccupations returns a copy of the log ordered by (At, ID). Caller holds mu.
func (m *memoryStore) sortedOccupations() []model.OccupationRecord {
	out := make([]model.OccupationRecord, len(m.occupations))
	copy(out, m.occupations)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID < out[j].ID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// --- Accesses ---

func (m *memoryStore) CreateAccess(ctx context.Context, ev *model.AccessEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAccessID++
	ev.ID = m.nextAccessID
	m.accesses = append(m.accesses, *ev)
	return nil
}

func (m *memoryStore) AccessesSince(ctx context.Context, since time.Time) ([]model.AccessEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.AccessEvent
	for _, ev := range m.accesses {
		if !ev.At.Before(since) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// --- Pricing ---

func (m *memoryStore) ActivePricing(ctx context.Context) (*model.PricingConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.pricing) - 1; i >= 0; i-- {
		if m.pricing[i].Active {
			cfg := m.pricing[i]
			return &cfg, nil
		}
	}
	return nil, notFound("active pricing")
}

func (m *memoryStore) ReplacePricing(ctx context.Context, cfg *model.PricingConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.pricing {
		m.pricing[i].Active = false
	}
	m.nextPricingID++
	now := time.Now()
	cfg.ID = m.nextPricingID
	cfg.Active = true
	cfg.CreatedAt, cfg.UpdatedAt = now, now
	m.pricing = append(m.pricing, *cfg)
	return nil
}

// --- Subscriptions ---

func (m *memoryStore) PutSubscription(ctx context.Context, sub *model.PushSubscription, slots []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *sub
	stored.Slots = nil
	if existing, ok := m.subscriptions[sub.Endpoint]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.subscriptions[sub.Endpoint] = stored

	var kept []int
	for _, n := range slots {
		if _, ok := m.slots[n]; ok {
			kept = append(kept, n)
		}
	}
	m.subSlots[sub.Endpoint] = kept
	return nil
}

func (m *memoryStore) Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subscriptions[endpoint]
	if !ok {
		return nil, notFound("subscription")
	}
	for _, n := range m.subSlots[endpoint] {
		state := m.slots[n]
		sub.Slots = append(sub.Slots, &state)
	}
	return &sub, nil
}

func (m *memoryStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, endpoint)
	delete(m.subSlots, endpoint)
	return nil
}

func (m *memoryStore) SubscriptionsForSlot(ctx context.Context, slot int) ([]model.PushSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.PushSubscription
	for endpoint, slots := range m.subSlots {
		for _, n := range slots {
			if n == slot {
				out = append(out, m.subscriptions[endpoint])
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out, nil
}
