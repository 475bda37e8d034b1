package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/transport"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replica.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	kind, err := cfg.TransportKind()
	require.NoError(t, err)
	assert.Equal(t, transport.KindTCP, kind)
	assert.Equal(t, time.Second/30, cfg.TickInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.ServerTick())

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, log.LevelInfo, level)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  host: game.example
  port: 7000
transport:
  kind: websocket
  websocket_path: /socket
  response_timeout: 2s
client:
  tick_rate: 60
  server_time_step_ms: 50
credentials:
  user_name: alice
  password: secret
transform:
  position_threshold: 0.5
  easing: in_out_sine
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "game.example", cfg.Server.Host)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/socket", cfg.Transport.WebSocketPath)
	assert.Equal(t, 2*time.Second, cfg.Transport.ResponseTimeout)
	assert.Equal(t, 5*time.Second, cfg.Transport.WriteTimeout, "unset keys keep their default")
	assert.Equal(t, "alice", cfg.Credentials.UserName)
	assert.Equal(t, "secret", cfg.Credentials.Password)

	tc, err := cfg.InterpTransformConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.5, tc.PositionThreshold)
	assert.Equal(t, 0.01, tc.RotationThreshold)
	assert.Equal(t, 50*time.Millisecond, tc.ServerTick)
	assert.NotNil(t, tc.Easing)

	d, err := cfg.Dialer()
	require.NoError(t, err)
	assert.IsType(t, &transport.WebSocketDialer{}, d)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 7000\n")
	t.Setenv("REPLICA_SERVER_PORT", "7100")
	t.Setenv("REPLICA_TRANSPORT_KIND", "quic")
	t.Setenv("REPLICA_TRANSPORT_QUIC_ALPN", "a,b")
	t.Setenv("REPLICA_CREDENTIALS_USER_NAME", "bob")
	t.Setenv("REPLICA_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port)
	assert.Equal(t, "quic", cfg.Transport.Kind)
	assert.Equal(t, []string{"a", "b"}, cfg.Transport.QUICALPN)
	assert.Equal(t, "bob", cfg.Credentials.UserName)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, log.LevelDebug, level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server:\n  hots: typo\n"))
	assert.ErrorContains(t, err, "parse config")

	t.Setenv("REPLICA_CLIENT_TICK_RATE", "fast")
	_, err = Load("")
	assert.ErrorContains(t, err, "parse env")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Transport.Kind = "smoke-signals"
	cfg.Client.TickRate = 0
	cfg.Log.Level = "loud"
	cfg.Transform.Easing = "wobbly"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, transport.ErrUnsupportedTransport)
	assert.ErrorContains(t, err, "server.port")
	assert.ErrorContains(t, err, "client.tick_rate")
	assert.ErrorContains(t, err, "unknown log level")
}
