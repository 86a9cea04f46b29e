package config

import (
	"log/slog"
	"slices"
	"testing"
	"time"
)

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FRAME_INTERVAL", "32ms")
	t.Setenv("ALLOWED_ORIGINS", "https://canvas.example.com, http://localhost:5173")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 || cfg.FrameInterval != 32*time.Millisecond {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.MaxScale != 8 || cfg.RouteClearance != 8 || !cfg.SampleBoard {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	if got, want := cfg.Origins(), []string{"canvas.example.com", "localhost:5173"}; !slices.Equal(got, want) {
		t.Errorf("Origins: expected %v, got %v", want, got)
	}
	if got, want := cfg.CORSOrigins(), []string{"https://canvas.example.com", "http://localhost:5173"}; !slices.Equal(got, want) {
		t.Errorf("CORSOrigins: expected %v, got %v", want, got)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	if _, err := Load(); err == nil {
		t.Error("expected an error for a non-numeric port")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c := &Config{LogLevel: tt.in}
			if got := c.SlogLevel(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
