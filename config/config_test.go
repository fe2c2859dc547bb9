package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HMAC_SECRET", "test-secret")
	path := writeConfig(t, "redis:\n  addr: localhost:6379\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "test-secret", cfg.Secrets.HMACSecret)
	assert.Equal(t, StorageRedis, cfg.Storage.Driver)
	assert.Equal(t, BrokerKafka, cfg.Notifications.Broker)
	assert.Equal(t, "Australia/Brisbane", cfg.Booking.Timezone)
	assert.Equal(t, RateLimitPolicy{Limit: 5, WindowSeconds: 300}, cfg.RateLimits.Contact)
	assert.Equal(t, RateLimitPolicy{Limit: 10, WindowSeconds: 600}, cfg.RateLimits.ReservationIP)
	assert.Equal(t, RateLimitPolicy{Limit: 3, WindowSeconds: 3600}, cfg.RateLimits.ReservationPhone)
	assert.Equal(t, 30, cfg.Booking.SlotIndexTTLDays)
	assert.Equal(t, HTTPModeRelease, cfg.HTTP.Mode)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("HMAC_SECRET", "s")
	t.Setenv("TURNSTILE_SECRET_RESERVATIONS", "turnstile")
	path := writeConfig(t, `
storage:
  driver: postgres
notifications:
  broker: rabbitmq
rate_limits:
  reservation_phone:
    limit: 7
booking:
  timezone: Europe/Berlin
http:
  mode: debug
tracing:
  environment: production
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, BrokerRabbitMQ, cfg.Notifications.Broker)
	assert.Equal(t, 7, cfg.RateLimits.ReservationPhone.Limit)
	assert.Equal(t, 3600, cfg.RateLimits.ReservationPhone.WindowSeconds)
	assert.Equal(t, "turnstile", cfg.Secrets.TurnstileSecretReservations)
	assert.Equal(t, HTTPModeDebug, cfg.HTTP.Mode)

	loc, err := cfg.Booking.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		secret string
		body   string
	}{
		{name: "missing secret", secret: "", body: "http:\n  address: :8080\n"},
		{name: "unknown driver", secret: "s", body: "storage:\n  driver: sqlite\n"},
		{name: "unknown broker", secret: "s", body: "notifications:\n  broker: nats\n"},
		{name: "unknown http mode", secret: "s", body: "http:\n  mode: production\n"},
		{name: "bad timezone", secret: "s", body: "booking:\n  timezone: Mars/Olympus\n"},
		{name: "bad yaml", secret: "s", body: "http: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HMAC_SECRET", tc.secret)
			_, err := LoadConfig(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
