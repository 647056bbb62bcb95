package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-nav2d/pkg/scene"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nav2d.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ws://localhost:9090", cfg.Bridge.URL)
	assert.Equal(t, DefaultPort, cfg.Web.Port)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
bridge:
  url: ws://robot.local:9090
  reconnect_interval: 500ms
web:
  port: "9000"
  zoom: 25
overlay:
  goal:
    action_server: /nav
    timeout: 30s
  path:
    topic: /global_plan
    color: "#ff0000"
  pose:
    with_trace: false
    max_trace_length: 0
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://robot.local:9090", cfg.Bridge.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Bridge.ReconnectInterval)
	// Unset fields keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Bridge.HandshakeTimeout)
	assert.Equal(t, "9000", cfg.Web.Port)
	assert.Equal(t, 25.0, cfg.Web.Zoom)
	assert.Equal(t, DefaultWidth, cfg.Web.Width)

	assert.Equal(t, "/nav", cfg.Overlay.Goal.ActionServer)
	assert.Equal(t, 30*time.Second, cfg.Overlay.Goal.Timeout)
	assert.Equal(t, "/global_plan", cfg.Overlay.Path.Topic)
	require.NotNil(t, cfg.Overlay.Path.Color)
	assert.Equal(t, scene.RGB(255, 0, 0, 1), *cfg.Overlay.Path.Color)

	require.NotNil(t, cfg.Overlay.Pose.WithTrace)
	assert.False(t, *cfg.Overlay.Pose.WithTrace)
	require.NotNil(t, cfg.Overlay.Pose.MaxTraceLength)
	assert.Equal(t, 0, *cfg.Overlay.Pose.MaxTraceLength)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvBridgeURL, "wss://bridge.example:443")
	t.Setenv(EnvPort, "7070")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(writeFile(t, "web:\n  port: \"9000\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "wss://bridge.example:443", cfg.Bridge.URL)
	assert.Equal(t, "7070", cfg.Web.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Web, cfg.Web)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bridge: [not, a, map]"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad bridge scheme", func(c *Config) { c.Bridge.URL = "http://localhost:9090" }},
		{"bad port", func(c *Config) { c.Web.Port = "http" }},
		{"port out of range", func(c *Config) { c.Web.Port = "70000" }},
		{"zero size", func(c *Config) { c.Web.Width = 0 }},
		{"zero zoom", func(c *Config) { c.Web.Zoom = 0 }},
		{"zero frame interval", func(c *Config) { c.Web.FrameInterval = 0 }},
		{"negative trace length", func(c *Config) { n := -1; c.Overlay.Pose.MaxTraceLength = &n }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
