package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	JWTSecret      string        `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	BoardPasscode  string        `envconfig:"BOARD_PASSCODE" default:""`
	AllowedOrigins string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	SampleBoard    bool          `envconfig:"SAMPLE_BOARD" default:"true"`
	FrameInterval  time.Duration `envconfig:"FRAME_INTERVAL" default:"16ms"`
	AssetDir       string        `envconfig:"ASSET_DIR" default:"./data/assets"`

	// Viewport and routing
	MinScale       float64 `envconfig:"MIN_SCALE" default:"0.1"`
	MaxScale       float64 `envconfig:"MAX_SCALE" default:"8"`
	ZoomFactor     float64 `envconfig:"ZOOM_FACTOR" default:"1.1"`
	RouteClearance float64 `envconfig:"ROUTE_CLEARANCE" default:"8"`
	TextMetrics    string  `envconfig:"TEXT_METRICS" default:"gofont"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CORSOrigins returns ALLOWED_ORIGINS as full origins for CORS headers.
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Origins splits ALLOWED_ORIGINS into host patterns usable by the websocket
// origin check (scheme stripped).
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		o = strings.TrimPrefix(o, "http://")
		o = strings.TrimPrefix(o, "https://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
