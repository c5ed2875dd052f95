// Package config loads the optional --config JSON file into a
// policy.Config, ready to merge over policy.DefaultConfig() (spec.md §6).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/contextguard/contextguard/internal/policy"
)

// jsonPolicyConfig mirrors policy.Config with JSON tags; the wire shape
// uses the field names from spec.md §3's PolicyConfig exactly.
type jsonPolicyConfig struct {
	MaxToolCallsPerMinute          int      `json:"maxToolCallsPerMinute"`
	BlockedPatterns                []string `json:"blockedPatterns"`
	AllowedFilePaths               []string `json:"allowedFilePaths"`
	AlertThreshold                 int      `json:"alertThreshold"`
	EnablePromptInjectionDetection *bool    `json:"enablePromptInjectionDetection"`
	EnableSensitiveDataDetection   *bool    `json:"enableSensitiveDataDetection"`
	LogPath                        string   `json:"logPath"`
}

// Load reads and parses path as a PolicyConfig. A missing or malformed
// file is fatal to the caller (spec.md §6: "missing file → fatal").
func Load(path string) (policy.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return policy.Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw jsonPolicyConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return policy.Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg := policy.Config{
		MaxToolCallsPerMinute: raw.MaxToolCallsPerMinute,
		BlockedPatterns:       raw.BlockedPatterns,
		AllowedFilePaths:      raw.AllowedFilePaths,
		AlertThreshold:        raw.AlertThreshold,
		LogPath:               raw.LogPath,
		// A JSON file that omits these keys leaves the pointer nil, which
		// Merge (policy.Config.Merge) treats as "not set" rather than
		// "explicitly disabled" — detection stays on by default.
		EnablePromptInjectionDetection: raw.EnablePromptInjectionDetection,
		EnableSensitiveDataDetection:   raw.EnableSensitiveDataDetection,
	}
	return cfg, nil
}
