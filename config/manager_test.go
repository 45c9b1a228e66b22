package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playlab/roomserver/channel"
)

func writeConfigFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func testConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeConfigFile(t, dir, "default", `{
		"name": "default",
		"pool_size": 2,
		"dispatch_policy": "WAIT_FOR_N_PLAYERS",
		"game_name": "game",
		"game_capacity": 2
	}`)
	return dir
}

func TestNewManager(t *testing.T) {
	t.Run("requires an existing directory", func(t *testing.T) {
		if _, err := NewManager("/non/existent/dir"); err == nil {
			t.Error("Expected error for missing directory")
		}
	})

	t.Run("requires a default config", func(t *testing.T) {
		if _, err := NewManager(t.TempDir()); err == nil {
			t.Error("Expected error when default.json is absent")
		}
	})

	t.Run("loads the default config", func(t *testing.T) {
		m, err := NewManager(testConfigDir(t))
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		def := m.DefaultConfig()
		if def == nil || def.Name != "default" {
			t.Errorf("Unexpected default config: %+v", def)
		}
	})
}

func TestManager_LoadConfig(t *testing.T) {
	dir := testConfigDir(t)
	writeConfigFile(t, dir, "tournament", `{
		"name": "tournament",
		"pool_size": 4,
		"max_wait_ms": 60000,
		"dispatch_policy": "WAIT_FOR_N_PLAYERS",
		"game_name": "round",
		"game_capacity": 4
	}`)
	writeConfigFile(t, dir, "broken", `{"name": "broken"}`)

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	t.Run("loads by name", func(t *testing.T) {
		cfg, err := m.LoadConfig("tournament")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.PoolSize != 4 || cfg.MaxWaitMS != 60000 {
			t.Errorf("Unexpected config: %+v", cfg)
		}
	})

	t.Run("caches loaded configs", func(t *testing.T) {
		first, _ := m.LoadConfig("tournament")
		second, _ := m.LoadConfig("tournament")
		if first != second {
			t.Error("Expected the cached instance on the second load")
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		if _, err := m.LoadConfig("nope"); !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("Expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid config rejected at load", func(t *testing.T) {
		if _, err := m.LoadConfig("broken"); err == nil {
			t.Error("Expected validation error for config without policy")
		}
	})
}

func TestManager_ListConfigs(t *testing.T) {
	dir := testConfigDir(t)
	writeConfigFile(t, dir, "extra", `{"name":"extra","pool_size":1,"dispatch_policy":"MANUAL","game_name":"g","game_capacity":1}`)

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	names, err := m.ListConfigs()
	if err != nil {
		t.Fatalf("ListConfigs failed: %v", err)
	}
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["default"] || !found["extra"] {
		t.Errorf("Expected default and extra, got %v", names)
	}
}

func TestChannelConfig_Validate(t *testing.T) {
	valid := ChannelConfig{
		Name:           "x",
		PoolSize:       2,
		DispatchPolicy: "WAIT_FOR_N_PLAYERS",
		GameName:       "g",
		GameCapacity:   2,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*ChannelConfig)
	}{
		{"missing name", func(c *ChannelConfig) { c.Name = "" }},
		{"missing policy", func(c *ChannelConfig) { c.DispatchPolicy = "" }},
		{"negative wait", func(c *ChannelConfig) { c.MaxWaitMS = -1 }},
		{"bad start date", func(c *ChannelConfig) { c.StartDate = "tomorrow" }},
		{"unknown policy", func(c *ChannelConfig) { c.DispatchPolicy = "SOON" }},
		{"zero pool for wait-for-n", func(c *ChannelConfig) { c.PoolSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tc.name)
			}
		})
	}
}

func TestChannelConfig_Pool(t *testing.T) {
	cfg := ChannelConfig{
		Name:           "x",
		PoolSize:       3,
		MaxWaitMS:      1500,
		StartDate:      "2030-05-01T12:00:00Z",
		DispatchPolicy: "TIMEOUT",
		Closed:         true,
		GameName:       "quiz",
		GameCapacity:   4,
	}

	pool, err := cfg.Pool()
	if err != nil {
		t.Fatalf("Pool conversion failed: %v", err)
	}
	if pool.PoolSize != 3 {
		t.Errorf("Expected pool size 3, got %d", pool.PoolSize)
	}
	if pool.MaxWaitTime != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s wait, got %s", pool.MaxWaitTime)
	}
	if pool.Policy != channel.DispatchTimeout {
		t.Errorf("Expected TIMEOUT policy, got %s", pool.Policy)
	}
	if !pool.Closed {
		t.Error("Expected closed pool")
	}
	want, _ := time.Parse(time.RFC3339, cfg.StartDate)
	if !pool.StartDate.Equal(want) {
		t.Errorf("Expected start date %s, got %s", want, pool.StartDate)
	}
	if pool.Game.Name != "quiz" || pool.Game.Capacity != 4 {
		t.Errorf("Unexpected game config: %+v", pool.Game)
	}
}
