// Command validate provides a small CLI that validates channel configuration
// JSON files in the configs directory. It checks:
//   - JSON structure and required fields
//   - Dispatch policy against the known policies and its required companions
//     (pool size for WAIT_FOR_N_PLAYERS, a deadline for TIMEOUT)
//   - start_date format and whether the date is already in the past
//   - Game room settings (name present, capacity able to hold a dispatch)
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playlab/roomserver/config"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateConfig loads and validates a single channel configuration file.
// Structural checks are delegated to the config package; on top of those it
// adds advisory checks an operator cares about before pointing a server at
// the file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var cfg config.ChannelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	if err := cfg.Validate(); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	// File name and config name should agree: LoadConfig resolves by file
	// name, and a mismatch is almost always a copy-paste slip.
	base := strings.TrimSuffix(result.File, filepath.Ext(result.File))
	if cfg.Name != "" && cfg.Name != base {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("name %q does not match file name %q", cfg.Name, base))
	}

	if cfg.GameName == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "game_name is required")
	}

	if cfg.GameCapacity > 0 && cfg.PoolSize > cfg.GameCapacity {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("game_capacity (%d) cannot hold a full dispatch of %d players", cfg.GameCapacity, cfg.PoolSize))
	}

	if cfg.StartDate != "" {
		if start, err := time.Parse(time.RFC3339, cfg.StartDate); err == nil && start.Before(time.Now()) {
			result.Errors = append(result.Errors, fmt.Sprintf("note: start_date %s is in the past, the pool will dispatch immediately", cfg.StartDate))
		}
	}

	if cfg.Closed {
		result.Errors = append(result.Errors, "note: channel is closed, connecting players will be turned away")
	}

	// Add informational data
	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", cfg.Name))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Policy: %s", cfg.DispatchPolicy))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Pool size: %d", cfg.PoolSize))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Game: %s (capacity %d)", cfg.GameName, cfg.GameCapacity))
		if cfg.MaxWaitMS > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("✓ Max wait: %s", time.Duration(cfg.MaxWaitMS)*time.Millisecond))
		}
	}

	return result
}

// main scans ../configs for *.json files and validates each one, printing a
// concise report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}
	files, err := filepath.Glob(filepath.Join(configDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
