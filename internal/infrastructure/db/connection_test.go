package db

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Disabled(t *testing.T) {
	manager, err := NewManager(DefaultConfig())
	require.NoError(t, err)

	assert.False(t, manager.IsEnabled())
	assert.Nil(t, manager.Repository())
	assert.Nil(t, manager.DB())
	require.NoError(t, manager.Close())

	health := manager.Health().Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Contains(t, health.Errors, "database persistence disabled")
	require.NoError(t, manager.Health().Ping(context.Background()))
}

func TestNewManager_EnabledRequiresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true

	_, err := NewManager(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}

func TestHealthChecker_Ping(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectPing()

	h := &healthChecker{
		enabled: true,
		db:      sqlx.NewDb(mockDB, "postgres"),
		timeout: 5 * time.Second,
	}

	require.NoError(t, h.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_HealthReportsPoolState(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectPing()

	h := &healthChecker{
		enabled: true,
		db:      sqlx.NewDb(mockDB, "postgres"),
		timeout: 5 * time.Second,
	}

	health := h.Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Empty(t, health.Errors)
	assert.Contains(t, health.ConnectionPool, "max_open")
	assert.Contains(t, health.ConnectionPool, "open")
	assert.False(t, health.LastCheck.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
