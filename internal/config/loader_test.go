package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/contextguard/contextguard/internal/policy"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	content := `{
		"maxToolCallsPerMinute": 10,
		"allowedFilePaths": ["/home/user"],
		"enableSensitiveDataDetection": false
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxToolCallsPerMinute != 10 {
		t.Fatalf("expected 10, got %d", cfg.MaxToolCallsPerMinute)
	}
	if cfg.EnableSensitiveDataDetection == nil || *cfg.EnableSensitiveDataDetection {
		t.Fatalf("expected sensitive-data detection explicitly disabled, got %v", cfg.EnableSensitiveDataDetection)
	}
	if cfg.EnablePromptInjectionDetection != nil {
		t.Fatalf("expected prompt-injection detection left unset by an absent JSON key, got %v", *cfg.EnablePromptInjectionDetection)
	}

	merged := policy.DefaultConfig().Merge(cfg)
	if merged.EnablePromptInjectionDetection == nil || !*merged.EnablePromptInjectionDetection {
		t.Fatalf("expected prompt-injection detection to default true once merged over DefaultConfig")
	}
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load("/nonexistent/path/policy.json")
	if err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoad_MalformedJSONIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for malformed config")
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	if err := os.WriteFile(path, []byte(`{"alertThreshold": 2}`), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	merged := policy.DefaultConfig().Merge(loaded)
	if merged.AlertThreshold != 2 {
		t.Fatalf("expected overridden alert threshold 2, got %d", merged.AlertThreshold)
	}
	if merged.MaxToolCallsPerMinute != 30 {
		t.Fatalf("expected default MaxToolCallsPerMinute preserved, got %d", merged.MaxToolCallsPerMinute)
	}
}
