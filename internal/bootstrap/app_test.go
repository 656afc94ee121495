package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	unitsapp "roomstay/internal/app/handlers/units"
	"roomstay/internal/app/queries"
	"roomstay/internal/infra/config"
)

func memoryConfig() config.Config {
	return config.Config{
		Env:                "test",
		HTTPAddr:           "127.0.0.1:0",
		StorageDriver:      config.DriverMemory,
		LockDriver:         config.DriverMemory,
		IdempotencyTTL:     time.Hour,
		RetryBackoff:       []time.Duration{time.Millisecond},
		PaymentMaxAttempts: 2,
		PaymentTimeout:     time.Second,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: time.Second,
		HoldWindow:         15 * time.Minute,
		HoldSweepInterval:  time.Hour,
		ShutdownTimeout:    time.Second,
	}
}

const fixtures = `[
  {
    "owner_id": "owner-1",
    "name": "Harbour House",
    "currency": "USD",
    "tax_rate_bps": 1500,
    "policies": [{"id": "moderate", "tiers": [
      {"min_hours_before_checkin": 168, "refund_percent": 100},
      {"min_hours_before_checkin": 72, "refund_percent": 50},
      {"min_hours_before_checkin": 0, "refund_percent": 0}
    ]}],
    "units": [
      {"name": "Room 1", "base_rate_cents": 10000, "max_guests": 2, "check_in_hour": 15},
      {"name": "Room 2", "base_rate_cents": 12000, "max_guests": 3, "check_in_hour": 15}
    ]
  }
]`

func TestBuildMemoryApp(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(fixtures), 0o600))
	n, err := app.LoadFixtures(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := queries.Ask[unitsapp.ListUnitsQuery, unitsapp.UnitCollection](context.Background(), app.Buses.Queries, unitsapp.ListUnitsQuery{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)

	rec := httptest.NewRecorder()
	app.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	n, err = app.LoadFixtures(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunStopsWithContext(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	require.NoError(t, app.Close(context.Background()))
}

func TestBuildRejectsUnreachableRedis(t *testing.T) {
	cfg := memoryConfig()
	cfg.LockDriver = config.DriverRedis
	cfg.RedisAddr = "127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	app, err := Build(ctx, cfg, nil)
	assert.Error(t, err)
	assert.Nil(t, app)
}
