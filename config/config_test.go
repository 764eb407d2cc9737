package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sivakumar999/village-eats/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
  path: /tracking
  heartbeat_interval: 15s
  write_timeout: 5s
auth:
  secret: super-secret
nats:
  url: nats://localhost:4222
  name: tracker-test
redis:
  addr: localhost:6379
  key_prefix: "test:agent:"
metrics:
  port: 9101
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/tracking", cfg.Server.Path)
	assert.Equal(t, 15*time.Second, cfg.Server.HeartbeatInterval.Std())
	assert.Equal(t, "super-secret", cfg.Auth.Secret)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 9101, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path, "defaults survive partial files")
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/ws", cfg.Server.Path)
	assert.Equal(t, 30*time.Second, cfg.Server.HeartbeatInterval.Std())
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.Empty(t, cfg.NATS.URL, "bridge stays disabled unless configured")
}

func TestLoad_EmptyFileEqualsDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TRACKER_TEST_SECRET", "from-env")

	path := writeConfig(t, `
auth:
  secret: ${TRACKER_TEST_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 80 }},
		{"empty path", func(c *Config) { c.Server.Path = "" }},
		{"heartbeat too short", func(c *Config) { c.Server.HeartbeatInterval = Duration(100 * time.Millisecond) }},
		{"metrics port clash", func(c *Config) { c.Metrics.Port = c.Server.Port }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestDuration_ParseFailure(t *testing.T) {
	path := writeConfig(t, `
server:
  heartbeat_interval: soon
`)

	_, err := Load(path)
	require.Error(t, err)
}
