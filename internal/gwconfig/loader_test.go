package gwconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHeartbeatSeconds, cfg.Perception.HeartbeatSeconds)
	assert.Equal(t, 9000, cfg.Perception.Port)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestLoadPartialOverridesOnlyGivenFields(t *testing.T) {
	path := writeTOML(t, `
[perception_service]
port = 9100
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Perception.Port)
	assert.Equal(t, DefaultHeartbeatSeconds, cfg.Perception.HeartbeatSeconds, "unset heartbeat_interval keeps the default")
	assert.Equal(t, "0.0.0.0", cfg.Perception.BindIP)
}

func TestLoadHeartbeatZeroMeansImmediateDeactivation(t *testing.T) {
	path := writeTOML(t, `
[perception_service]
heartbeat_interval = 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Perception.HeartbeatSeconds)
}

func TestLoadHeartbeatNegativeFallsBackToDefault(t *testing.T) {
	path := writeTOML(t, `
[perception_service]
heartbeat_interval = -5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultHeartbeatSeconds, cfg.Perception.HeartbeatSeconds)
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeTOML(t, `not = [valid toml`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRedisPasswordFromEnv(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "s3cret")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Redis.Password)
}
