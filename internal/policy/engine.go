// Package policy implements ContextGuard's stateless inspection predicates:
// prompt-injection and sensitive-data pattern banks, file-path policy, and
// the rate-limit predicate over externally-owned timestamps. Every check
// here is referentially transparent — no suspension, no shared state.
package policy

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config is the gateway's PolicyConfig (spec.md §3), with defaults applied.
// The two detection flags are *bool, not bool, so Merge can distinguish
// "override explicitly set this" from "override left this unset" — a
// zero-value Config{} must not be read as "detection disabled".
type Config struct {
	MaxToolCallsPerMinute          int
	BlockedPatterns                []string
	AllowedFilePaths               []string
	AlertThreshold                 int
	EnablePromptInjectionDetection *bool
	EnableSensitiveDataDetection   *bool
	LogPath                        string
}

func boolPtr(b bool) *bool { return &b }

// DefaultConfig returns the documented defaults from spec.md §3.
func DefaultConfig() Config {
	return Config{
		MaxToolCallsPerMinute:          30,
		AlertThreshold:                 5,
		EnablePromptInjectionDetection: boolPtr(true),
		EnableSensitiveDataDetection:   boolPtr(true),
		LogPath:                        "mcp_security.log",
	}
}

// Merge overlays the fields override explicitly sets onto the receiver,
// returning a new Config. Used both for local-config-over-defaults and
// for remote-policy-over-local (remote wins; spec.md §4.E step 3). The
// detection flags only overwrite when override's pointer is non-nil, so
// an unset override (e.g. no --config, or a Config{} built directly) never
// silently disables detection that DefaultConfig turned on.
func (c Config) Merge(override Config) Config {
	out := c
	if override.MaxToolCallsPerMinute > 0 {
		out.MaxToolCallsPerMinute = override.MaxToolCallsPerMinute
	}
	if override.BlockedPatterns != nil {
		out.BlockedPatterns = override.BlockedPatterns
	}
	if override.AllowedFilePaths != nil {
		out.AllowedFilePaths = override.AllowedFilePaths
	}
	if override.AlertThreshold > 0 {
		out.AlertThreshold = override.AlertThreshold
	}
	if override.EnablePromptInjectionDetection != nil {
		out.EnablePromptInjectionDetection = override.EnablePromptInjectionDetection
	}
	if override.EnableSensitiveDataDetection != nil {
		out.EnableSensitiveDataDetection = override.EnableSensitiveDataDetection
	}
	if override.LogPath != "" {
		out.LogPath = override.LogPath
	}
	return out
}

// promptInjectionEnabled reports whether prompt-injection detection is
// active: enabled unless explicitly turned off.
func (c Config) promptInjectionEnabled() bool {
	return c.EnablePromptInjectionDetection == nil || *c.EnablePromptInjectionDetection
}

// sensitiveDataEnabled reports whether sensitive-data detection is
// active: enabled unless explicitly turned off.
func (c Config) sensitiveDataEnabled() bool {
	return c.EnableSensitiveDataDetection == nil || *c.EnableSensitiveDataDetection
}

// sensitive-data pattern bank, spec.md §4.A.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|secret|api[_-]?key|token)\s*[:=]\s*['"]?[\w\-.]+['"]?`),
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`sk_(live|test)_[a-zA-Z0-9]{24,}`),
}

// prompt-injection pattern bank, spec.md §4.A.
var promptInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|all)\s+(instructions|prompts)`),
	regexp.MustCompile(`(?i)system:\s*you\s+are\s+now`),
	regexp.MustCompile(`(?i)forget\s+(everything|all)`),
	regexp.MustCompile(`(?i)new\s+instructions:`),
	regexp.MustCompile(`(?is)\[INST\].*?\[/INST\]`),
	regexp.MustCompile(`(?i)<\|im_start\|>`),
	regexp.MustCompile(`(?i)disregard\s+previous`),
	regexp.MustCompile(`(?i)override\s+previous`),
}

var dangerousPathPrefixes = []string{"/etc", "/root", "/sys", "/proc", `C:\Windows\System32`}

// Engine evaluates the compiled pattern banks and path/rate policy against
// a single Config. It holds no mutable state of its own; the rate window
// lives in the caller's session state (see internal/gateway).
type Engine struct {
	cfg Config
}

// New returns an Engine bound to cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine's bound configuration.
func (e *Engine) Config() Config { return e.cfg }

// CheckPromptInjection returns a violation string for each pattern in the
// prompt-injection bank that matches text. Empty if detection is disabled.
func (e *Engine) CheckPromptInjection(text string) []string {
	if !e.cfg.promptInjectionEnabled() {
		return nil
	}
	var violations []string
	for _, re := range promptInjectionPatterns {
		if m := re.FindString(text); m != "" {
			violations = append(violations, fmt.Sprintf(
				"Potential prompt injection detected: %q...", truncate(m, 50)))
		}
	}
	return violations
}

// CheckSensitiveData returns a violation string for each pattern in the
// sensitive-data bank that matches text. The matched value itself is never
// included, only the leading portion of the pattern's source, so the
// violation string cannot leak the secret into the log.
func (e *Engine) CheckSensitiveData(text string) []string {
	if !e.cfg.sensitiveDataEnabled() {
		return nil
	}
	var violations []string
	for _, re := range sensitivePatterns {
		if re.MatchString(text) {
			violations = append(violations, fmt.Sprintf(
				"Sensitive data pattern detected (redacted): %s...", truncate(re.String(), 30)))
		}
	}
	return violations
}

// CheckFileAccess returns path-policy violations in the fixed order defined
// by spec.md §4.A: traversal, dangerous system paths, then allow-list.
func (e *Engine) CheckFileAccess(path string) []string {
	var violations []string

	if strings.Contains(path, "..") {
		violations = append(violations, fmt.Sprintf("Path traversal attempt detected: %s", path))
	}

	for _, prefix := range dangerousPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			violations = append(violations, fmt.Sprintf("Access to dangerous path detected: %s", path))
			break
		}
	}

	if len(e.cfg.AllowedFilePaths) > 0 {
		allowed := false
		for _, prefix := range e.cfg.AllowedFilePaths {
			if strings.HasPrefix(path, prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			violations = append(violations, fmt.Sprintf("File path not in allowed list: %s", path))
		}
	}

	return violations
}

// CheckRateLimit reports whether the number of timestamps newer than
// now-60s is strictly below MaxToolCallsPerMinute. Equality is a violation.
func (e *Engine) CheckRateLimit(timestamps []int64, now int64) bool {
	cutoff := now - 60000
	count := 0
	for _, ts := range timestamps {
		if ts > cutoff {
			count++
		}
	}
	return count < e.cfg.MaxToolCallsPerMinute
}

// PruneWindow returns the subset of timestamps newer than now-60s, in the
// original order, for callers maintaining a rolling rate-limit window.
func PruneWindow(timestamps []int64, now int64) []int64 {
	cutoff := now - 60000
	out := timestamps[:0:0]
	for _, ts := range timestamps {
		if ts > cutoff {
			out = append(out, ts)
		}
	}
	return out
}

// NowMillis returns the current wall-clock time in Unix milliseconds.
func NowMillis() int64 { return time.Now().UnixMilli() }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
