package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Lifecycle.ReservationWindow)
	assert.Equal(t, 30*24*time.Hour, cfg.Lifecycle.ReviewWindow)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	path := writeFile(t, `
app:
  name: order-service
  port: 9090
database:
  driver: sqlite
  dsn: file:test.db
lifecycle:
  reservationWindow: 5m
  reviewPolicy: "seller_id == 'vip' ? 5184000 : 0"
`)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RESERVATION_WINDOW", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 90*time.Second, cfg.Lifecycle.ReservationWindow)
	assert.Equal(t, 30*24*time.Hour, cfg.Lifecycle.ReviewWindow)
	assert.Equal(t, "seller_id == 'vip' ? 5184000 : 0", cfg.Lifecycle.ReviewPolicy)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad driver", env: map[string]string{"DB_DRIVER": "oracle"}},
		{name: "bad port", env: map[string]string{"HTTP_PORT": "abc"}},
		{name: "bad window", env: map[string]string{"REVIEW_WINDOW": "forever"}},
		{name: "zero window", file: "lifecycle:\n  reservationWindow: 0s\n"},
		{name: "zero batch", file: "lifecycle:\n  sweepBatchSize: 0\n"},
		{name: "zero processing timeout", file: "lifecycle:\n  processingTimeout: 0s\n"},
		{name: "zero code attempts", file: "lifecycle:\n  maxOrderCodeCollision: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
