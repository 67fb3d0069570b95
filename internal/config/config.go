package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/pixview/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Backend  string       `json:"backend" yaml:"backend" mapstructure:"backend"`
	LogLevel string       `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	Window   WindowConfig `json:"window" yaml:"window" mapstructure:"window"`
	Remote   RemoteConfig `json:"remote" yaml:"remote" mapstructure:"remote"`
}

// WindowConfig holds defaults for new window sessions
type WindowConfig struct {
	Width          int      `json:"width" yaml:"width" mapstructure:"width"`
	Height         int      `json:"height" yaml:"height" mapstructure:"height"`
	TickIntervalMS int      `json:"tick_interval_ms" yaml:"tick_interval_ms" mapstructure:"tick_interval_ms"`
	ClearColor     [3]uint8 `json:"clear_color" yaml:"clear_color,flow" mapstructure:"clear_color"`
}

// TickInterval returns the managed render interval as a duration.
func (w WindowConfig) TickInterval() time.Duration {
	return time.Duration(w.TickIntervalMS) * time.Millisecond
}

// RemoteConfig configures the browser-backed surface
type RemoteConfig struct {
	Listen      string `json:"listen" yaml:"listen" mapstructure:"listen"`
	JPEGQuality int    `json:"jpeg_quality" yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Backend:  "x11",
		LogLevel: "info",
		Window: WindowConfig{
			Width:          800,
			Height:         600,
			TickIntervalMS: 50,
			ClearColor:     [3]uint8{80, 80, 80},
		},
		Remote: RemoteConfig{
			Listen:      "127.0.0.1:8080",
			JPEGQuality: 90,
		},
	}
}

// Manager handles configuration
type Manager struct {
	configPath string
	v          *viper.Viper
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/pixview/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "pixview", "config.yaml"), nil
}

// NewManager loads configFile (or the default path), creating it with
// defaults when it does not exist yet.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: path,
		v:          newViper(),
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.WithComponent("config").Info().
			Str("path", path).
			Msg("Config file not found, creating new config")
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	m.v.SetConfigFile(path)
	m.v.SetConfigType("yaml")
	if err := m.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", path).
		Str("backend", m.v.GetString("backend")).
		Msg("Config loaded")

	return m, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PIXVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("backend", d.Backend)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("window.width", d.Window.Width)
	v.SetDefault("window.height", d.Window.Height)
	v.SetDefault("window.tick_interval_ms", d.Window.TickIntervalMS)
	v.SetDefault("window.clear_color", []int{int(d.Window.ClearColor[0]), int(d.Window.ClearColor[1]), int(d.Window.ClearColor[2])})
	v.SetDefault("remote.listen", d.Remote.Listen)
	v.SetDefault("remote.jpeg_quality", d.Remote.JPEGQuality)
}

// fileView reads the config file alone, without env or flag overrides.
func (m *Manager) fileView() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		return v, nil
	}
	v.SetConfigFile(m.configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

// Get returns a snapshot of the merged configuration (file, env, bound flags).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return configFrom(m.v)
}

func configFrom(v *viper.Viper) *Config {
	cfg := &Config{
		Backend:  v.GetString("backend"),
		LogLevel: v.GetString("log_level"),
		Window: WindowConfig{
			Width:          v.GetInt("window.width"),
			Height:         v.GetInt("window.height"),
			TickIntervalMS: v.GetInt("window.tick_interval_ms"),
		},
		Remote: RemoteConfig{
			Listen:      v.GetString("remote.listen"),
			JPEGQuality: v.GetInt("remote.jpeg_quality"),
		},
	}
	cfg.Window.ClearColor = clearColor(v.GetIntSlice("window.clear_color"))
	return cfg
}

func clearColor(values []int) [3]uint8 {
	out := Defaults().Window.ClearColor
	for i := 0; i < len(values) && i < 3; i++ {
		v := values[i]
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		out[i] = uint8(v)
	}
	return out
}

// Set stores value under key in the config file and in the live view.
// Other keys keep their file values; flag and env overrides are not saved.
func (m *Manager) Set(key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fv, err := m.fileView()
	if err != nil {
		return err
	}
	fv.Set(key, value)
	if err := m.write(configFrom(fv)); err != nil {
		return err
	}
	m.v.Set(key, value)
	return nil
}

// Save rewrites the config file from its own contents and the defaults.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fv, err := m.fileView()
	if err != nil {
		return err
	}
	return m.write(configFrom(fv))
}

func (m *Manager) write(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// GetViper exposes the underlying viper instance for flag binding and
// key-based get/set.
func (m *Manager) GetViper() *viper.Viper {
	return m.v
}

// GetConfigPath returns the config file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
