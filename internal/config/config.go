// Package config loads the nav2d server configuration from a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-nav2d/pkg/nav2d"
	"github.com/teslashibe/go-nav2d/pkg/rosbridge"
)

// Environment overrides.
const (
	EnvBridgeURL = "ROSBRIDGE_URL"
	EnvPort      = "NAV2D_PORT"
	EnvLogLevel  = "LOG_LEVEL"
)

// Default web settings.
const (
	DefaultPort          = "8090"
	DefaultWidth         = 800
	DefaultHeight        = 600
	DefaultZoom          = 50 // pixels per meter
	DefaultFrameInterval = 200 * time.Millisecond
)

// Config is the complete server configuration.
type Config struct {
	Bridge   rosbridge.Config `yaml:"bridge"`
	Web      WebConfig        `yaml:"web"`
	Overlay  nav2d.Config     `yaml:"overlay"`
	LogLevel string           `yaml:"log_level"`
}

// WebConfig configures the HTTP server and the rendered view.
type WebConfig struct {
	Port string `yaml:"port"`

	// Width and Height are the view size in pixels.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Zoom is the initial scale in pixels per meter.
	Zoom float64 `yaml:"zoom"`

	// FrameInterval is how often the scene is pushed to viewers.
	FrameInterval time.Duration `yaml:"frame_interval"`

	// InitScale captures the view scale for every overlay component at
	// startup instead of waiting for POST /api/scale/init.
	InitScale bool `yaml:"init_scale"`
}

// DefaultConfig returns the defaults. Overlay fields left zero take the
// component defaults.
func DefaultConfig() Config {
	return Config{
		Bridge: rosbridge.DefaultConfig(),
		Web: WebConfig{
			Port:          DefaultPort,
			Width:         DefaultWidth,
			Height:        DefaultHeight,
			Zoom:          DefaultZoom,
			FrameInterval: DefaultFrameInterval,
			InitScale:     true,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	c.Bridge.URL = envOr(EnvBridgeURL, c.Bridge.URL)
	c.Web.Port = envOr(EnvPort, c.Web.Port)
	c.LogLevel = envOr(EnvLogLevel, c.LogLevel)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Bridge.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bridge: %w", err))
	}
	if port, err := strconv.Atoi(c.Web.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("web: invalid port %q", c.Web.Port))
	}
	if c.Web.Width <= 0 || c.Web.Height <= 0 {
		errs = append(errs, fmt.Errorf("web: view size must be positive, got %dx%d", c.Web.Width, c.Web.Height))
	}
	if c.Web.Zoom <= 0 {
		errs = append(errs, fmt.Errorf("web: zoom must be positive"))
	}
	if c.Web.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("web: frame_interval must be positive"))
	}
	if m := c.Overlay.Pose.MaxTraceLength; m != nil && *m < 0 {
		errs = append(errs, fmt.Errorf("overlay: max_trace_length must not be negative"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// envOr returns the value of key, or def if it is unset or empty.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
