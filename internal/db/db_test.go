package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-status-backend/config"
	"parking-status-backend/internal/model"
)

func TestInit_SQLite(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file:dbinit?mode=memory&cache=shared"}, nil)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	for _, m := range []any{&model.VehicleSession{}, &model.OccupationRecord{}, &model.SlotState{}, &model.PricingConfig{}} {
		assert.True(t, gormDB.Migrator().HasTable(m))
	}
	assert.True(t, gormDB.Migrator().HasTable("subscription_slot_mapping"))
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "memory"}, nil)
	assert.Error(t, err)
}

func TestMigrate_ExistingSQLiteDatabase(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file:dbremigrate?mode=memory&cache=shared"}, nil)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	assert.NoError(t, Migrate(gormDB))
}
