package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes body to a temp file whose base name matches name and
// returns its path.
func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestValidateConfig_ValidConfig(t *testing.T) {
	validConfig := `{
		"name": "duel",
		"description": "Two player channel",
		"pool_size": 2,
		"max_wait_ms": 60000,
		"dispatch_policy": "WAIT_FOR_N_PLAYERS",
		"closed": false,
		"game_name": "duel-game",
		"game_capacity": 2
	}`

	path := writeConfig(t, "duel", validConfig)

	result := validateConfig(path)
	if !result.Valid {
		t.Errorf("Expected valid config, but got errors: %v", result.Errors)
	}

	if result.File != filepath.Base(path) {
		t.Errorf("Expected file name %s, got %s", filepath.Base(path), result.File)
	}
}

func TestValidateConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, "broken", `{"name": "test", invalid json}`)

	result := validateConfig(path)
	if result.Valid {
		t.Error("Expected invalid config due to bad JSON")
	}

	found := false
	for _, err := range result.Errors {
		if contains(err, "Invalid JSON") {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected 'Invalid JSON' error")
	}
}

func TestValidateConfig_MissingFile(t *testing.T) {
	result := validateConfig("/non/existent/file.json")
	if result.Valid {
		t.Error("Expected invalid result for missing file")
	}

	found := false
	for _, err := range result.Errors {
		if contains(err, "Failed to read file") {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected 'Failed to read file' error")
	}
}

func TestValidateConfig_UnknownPolicy(t *testing.T) {
	config := `{
		"name": "weird",
		"pool_size": 2,
		"dispatch_policy": "WHENEVER",
		"game_name": "g",
		"game_capacity": 2
	}`

	path := writeConfig(t, "weird", config)

	result := validateConfig(path)
	if result.Valid {
		t.Error("Expected invalid config due to unknown dispatch policy")
	}

	found := false
	for _, err := range result.Errors {
		if contains(err, "unknown dispatch policy") {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected 'unknown dispatch policy' error")
	}
}

func TestValidateConfig_NameFileMismatch(t *testing.T) {
	config := `{
		"name": "duel",
		"pool_size": 2,
		"dispatch_policy": "WAIT_FOR_N_PLAYERS",
		"game_name": "g",
		"game_capacity": 2
	}`

	path := writeConfig(t, "tournament", config)

	result := validateConfig(path)
	if result.Valid {
		t.Error("Expected invalid config due to name/file mismatch")
	}

	found := false
	for _, err := range result.Errors {
		if contains(err, "does not match file name") {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected name mismatch error")
	}
}

func TestValidateConfig_CapacityTooSmall(t *testing.T) {
	config := `{
		"name": "crowded",
		"pool_size": 8,
		"dispatch_policy": "WAIT_FOR_N_PLAYERS",
		"game_name": "g",
		"game_capacity": 4
	}`

	path := writeConfig(t, "crowded", config)

	result := validateConfig(path)
	if result.Valid {
		t.Error("Expected invalid config due to game_capacity smaller than pool_size")
	}

	found := false
	for _, err := range result.Errors {
		if contains(err, "cannot hold a full dispatch") {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected 'cannot hold a full dispatch' error")
	}
}

func TestValidateConfig_TimeoutPolicyNeedsDeadline(t *testing.T) {
	config := `{
		"name": "slow",
		"pool_size": 2,
		"max_wait_ms": 0,
		"dispatch_policy": "TIMEOUT",
		"game_name": "g",
		"game_capacity": 2
	}`

	path := writeConfig(t, "slow", config)

	result := validateConfig(path)
	if result.Valid {
		t.Error("Expected invalid config: TIMEOUT policy without a deadline")
	}
}

func TestValidateConfig_PastStartDateIsAdvisory(t *testing.T) {
	config := `{
		"name": "retro",
		"pool_size": 2,
		"dispatch_policy": "WAIT_FOR_N_PLAYERS",
		"start_date": "2020-01-01T00:00:00Z",
		"game_name": "g",
		"game_capacity": 2
	}`

	path := writeConfig(t, "retro", config)

	result := validateConfig(path)
	if !result.Valid {
		t.Errorf("A past start_date should be advisory, got errors: %v", result.Errors)
	}

	found := false
	for _, msg := range result.Errors {
		if contains(msg, "in the past") {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected a past start_date note")
	}
}

// Helper function to check if a string contains a substring
func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
