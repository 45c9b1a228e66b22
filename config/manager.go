package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playlab/roomserver/channel"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// ChannelConfig mirrors the JSON schema for a channel configuration file.
type ChannelConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	PoolSize       int    `json:"pool_size"`
	MaxWaitMS      int    `json:"max_wait_ms"`
	StartDate      string `json:"start_date,omitempty"` // RFC3339, optional
	DispatchPolicy string `json:"dispatch_policy"`
	Closed         bool   `json:"closed"`

	GameName     string `json:"game_name"`
	GameCapacity int    `json:"game_capacity"`
}

// Validate checks required fields. Missing required fields are configuration
// errors, fatal at load time rather than silently defaulted.
func (c *ChannelConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.DispatchPolicy == "" {
		return fmt.Errorf("%w: dispatch_policy is required", ErrInvalidConfig)
	}
	if c.MaxWaitMS < 0 {
		return fmt.Errorf("%w: max_wait_ms must not be negative", ErrInvalidConfig)
	}
	if c.StartDate != "" {
		if _, err := time.Parse(time.RFC3339, c.StartDate); err != nil {
			return fmt.Errorf("%w: start_date: %v", ErrInvalidConfig, err)
		}
	}
	pool, err := c.Pool()
	if err != nil {
		return err
	}
	if err := pool.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Pool converts the file schema into the channel's pool configuration.
func (c *ChannelConfig) Pool() (channel.PoolConfig, error) {
	cfg := channel.PoolConfig{
		PoolSize:    c.PoolSize,
		MaxWaitTime: time.Duration(c.MaxWaitMS) * time.Millisecond,
		Policy:      channel.DispatchPolicy(c.DispatchPolicy),
		Closed:      c.Closed,
		Game: channel.RoomConfig{
			Name:     c.GameName,
			Capacity: c.GameCapacity,
		},
	}
	if c.StartDate != "" {
		start, err := time.Parse(time.RFC3339, c.StartDate)
		if err != nil {
			return channel.PoolConfig{}, fmt.Errorf("%w: start_date: %v", ErrInvalidConfig, err)
		}
		cfg.StartDate = start
	}
	return cfg, nil
}

// Manager handles channel configuration loading and caching.
type Manager struct {
	configDir     string
	defaultConfig *ChannelConfig
	configs       map[string]*ChannelConfig
	mu            sync.RWMutex
}

// NewManager creates a configuration manager rooted at configDir. The
// directory must exist and contain a valid default configuration.
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*ChannelConfig),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// DefaultConfig returns the default channel configuration.
func (m *Manager) DefaultConfig() *ChannelConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// LoadConfig loads a configuration by name, consulting the cache first.
func (m *Manager) LoadConfig(name string) (*ChannelConfig, error) {
	m.mu.RLock()
	if cfg, exists := m.configs[name]; exists {
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg, exists := m.configs[name]; exists {
		return cfg, nil
	}

	cfg, err := m.loadFromFile(name)
	if err != nil {
		return nil, err
	}
	m.configs[name] = cfg
	return cfg, nil
}

// ListConfigs returns the names of every configuration file in the directory.
func (m *Manager) ListConfigs() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(m.configDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan config directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(filepath.Base(f), ".json"))
	}
	return names, nil
}

func (m *Manager) loadDefaultConfig() error {
	cfg, err := m.loadFromFile("default")
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = cfg
	m.configs["default"] = cfg
	return nil
}

func (m *Manager) loadFromFile(name string) (*ChannelConfig, error) {
	path := filepath.Join(m.configDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
		}
		return nil, fmt.Errorf("failed to read config %s: %w", name, err)
	}

	var cfg ChannelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}

	return &cfg, nil
}
