package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-status-backend/config"
	"parking-status-backend/internal/model"
)

type fakeConfigStore struct {
	active     *model.PricingConfig
	replaceErr error
	replaced   int
}

func (f *fakeConfigStore) ActivePricing(ctx context.Context) (*model.PricingConfig, error) {
	if f.active == nil {
		return nil, model.ErrNotFound
	}
	cfg := *f.active
	return &cfg, nil
}

func (f *fakeConfigStore) ReplacePricing(ctx context.Context, cfg *model.PricingConfig) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced++
	stored := *cfg
	f.active = &stored
	return nil
}

func TestManager_LoadSeedsDefault(t *testing.T) {
	store := &fakeConfigStore{}
	m := NewManager(store, nil)

	fallback, err := FromConfig(config.PricingConfig{Unit: "por_minuto", UnitPrice: 0.10, Minimum: 1})
	require.NoError(t, err)
	require.NoError(t, m.Load(context.Background(), fallback))

	cfg, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, model.PerMinute, cfg.Unit)
	assert.True(t, cfg.Active)
	assert.Equal(t, 1, store.replaced)

	charge, err := m.Charge(7230)
	require.NoError(t, err)
	assert.Equal(t, "12.1", charge.String())
}

func TestManager_LoadUsesStoredConfig(t *testing.T) {
	store := &fakeConfigStore{active: &model.PricingConfig{ID: 7, Unit: model.PerHour, UnitPrice: dec("4"), Minimum: dec("0"), Active: true}}
	m := NewManager(store, nil)

	require.NoError(t, m.Load(context.Background(), model.PricingConfig{}))
	cfg, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.ID)
	assert.Equal(t, 0, store.replaced)
}

func TestManager_SetRejectsInvalidAndKeepsPrevious(t *testing.T) {
	store := &fakeConfigStore{active: &model.PricingConfig{Unit: model.PerHour, UnitPrice: dec("4"), Minimum: dec("0"), Active: true}}
	m := NewManager(store, nil)
	require.NoError(t, m.Load(context.Background(), model.PricingConfig{}))

	err := m.Set(context.Background(), model.PricingConfig{Unit: model.PerHour, UnitPrice: dec("0"), Minimum: dec("0")})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	store.replaceErr = errors.New("boom")
	err = m.Set(context.Background(), model.PricingConfig{Unit: model.PerMinute, UnitPrice: dec("1"), Minimum: dec("0")})
	assert.Error(t, err)

	cfg, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, model.PerHour, cfg.Unit)
}

func TestManager_GetBeforeLoad(t *testing.T) {
	m := NewManager(&fakeConfigStore{}, nil)
	_, err := m.Get()
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestFromConfig_UnknownUnit(t *testing.T) {
	_, err := FromConfig(config.PricingConfig{Unit: "weekly", UnitPrice: 1})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}
