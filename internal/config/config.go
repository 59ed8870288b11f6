// Package config handles loading and hot-reloading quire's
// configuration from defaults, a YAML file, and QUIRE_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Home  string      `mapstructure:"home"`
	Log   LogConfig   `mapstructure:"log"`
	Cache CacheConfig `mapstructure:"cache"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
}

// CacheConfig tunes the extraction cache.
type CacheConfig struct {
	ImmediateWindow  int           `mapstructure:"immediate_window"`
	BackgroundWindow int           `mapstructure:"background_window"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	MaxCachedPages   int           `mapstructure:"max_cached_pages"`
	PacingDelay      time.Duration `mapstructure:"pacing_delay"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Cache: CacheConfig{
			ImmediateWindow:  2,
			BackgroundWindow: 10,
			MaxConcurrent:    4,
			MaxCachedPages:   25,
			PacingDelay:      25 * time.Millisecond,
		},
	}
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	// Per-key defaults: a struct-valued default would be replaced
	// wholesale by a partial section in the config file, zeroing every
	// key the file does not set.
	defaults := DefaultConfig()
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("cache.immediate_window", defaults.Cache.ImmediateWindow)
	viper.SetDefault("cache.background_window", defaults.Cache.BackgroundWindow)
	viper.SetDefault("cache.max_concurrent", defaults.Cache.MaxConcurrent)
	viper.SetDefault("cache.max_cached_pages", defaults.Cache.MaxCachedPages)
	viper.SetDefault("cache.pacing_delay", defaults.Cache.PacingDelay)

	// Environment variables with QUIRE_ prefix
	viper.SetEnvPrefix("QUIRE")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.quire")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}
