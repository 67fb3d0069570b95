package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNewManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}

	cfg := mgr.Get()
	want := Defaults()
	if cfg.Backend != want.Backend {
		t.Fatalf("expected backend %q, got %q", want.Backend, cfg.Backend)
	}
	if cfg.Window.TickIntervalMS != 50 {
		t.Fatalf("expected 50ms tick, got %d", cfg.Window.TickIntervalMS)
	}
	if cfg.Window.ClearColor != [3]uint8{80, 80, 80} {
		t.Fatalf("unexpected clear color %v", cfg.Window.ClearColor)
	}
}

func TestManagerReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("backend: term\nwindow:\n  width: 320\n  height: 240\n  clear_color: [1, 2, 300]\nremote:\n  listen: ':9999'\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	cfg := mgr.Get()
	if cfg.Backend != "term" {
		t.Fatalf("expected term backend, got %q", cfg.Backend)
	}
	if cfg.Window.Width != 320 || cfg.Window.Height != 240 {
		t.Fatalf("unexpected size %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.ClearColor != [3]uint8{1, 2, 255} {
		t.Fatalf("expected clamped clear color, got %v", cfg.Window.ClearColor)
	}
	if cfg.Remote.Listen != ":9999" {
		t.Fatalf("unexpected listen address %q", cfg.Remote.Listen)
	}
	// Unset keys fall back to defaults.
	if cfg.Remote.JPEGQuality != 90 {
		t.Fatalf("expected default jpeg quality, got %d", cfg.Remote.JPEGQuality)
	}
}

func TestManagerSetAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if err := mgr.Set("window.tick_interval_ms", 16); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mgr.Get().Window.TickIntervalMS; got != 16 {
		t.Fatalf("live view not updated, got %d", got)
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.Get().Window.TickInterval().Milliseconds(); got != 16 {
		t.Fatalf("expected 16ms after reload, got %d", got)
	}
}

func TestSetDoesNotPersistOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	t.Setenv("PIXVIEW_LOG_LEVEL", "debug")
	mgr.GetViper().Set("backend", "term")
	if cfg := mgr.Get(); cfg.Backend != "term" || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not visible: %+v", cfg)
	}

	if err := mgr.Set("window.width", 321); err != nil {
		t.Fatalf("set: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var saved Config
	if err := yaml.Unmarshal(data, &saved); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if saved.Window.Width != 321 {
		t.Fatalf("expected width 321 in file, got %d", saved.Window.Width)
	}
	if saved.Backend != "x11" || saved.LogLevel != "info" {
		t.Fatalf("overrides leaked into file: backend=%q log_level=%q", saved.Backend, saved.LogLevel)
	}
}
