package gateway

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/contextguard/contextguard/internal/policy"
)

func TestNewSessionID_DeterministicLength(t *testing.T) {
	id := NewSessionID(time.Unix(1234567890, 0))
	if len(id) != 8 {
		t.Fatalf("expected 8-character session id, got %q", id)
	}
}

func TestNewSessionID_DifferentTimestampsDiffer(t *testing.T) {
	a := NewSessionID(time.Unix(1, 0))
	b := NewSessionID(time.Unix(2, 0))
	if a == b {
		t.Fatalf("expected different session ids for different timestamps")
	}
}

func TestRecordToolCall_RateLimit(t *testing.T) {
	// CheckRateLimit is evaluated after the current call's timestamp has
	// already been appended (spec.md §4.F step 3a), so with a limit of 2
	// the 1st call is within limit (count 1 < 2) and the 2nd already
	// trips it (count 2 not < 2).
	cfg := policy.DefaultConfig()
	cfg.MaxToolCallsPerMinute = 2
	s := &SessionState{Policy: policy.New(cfg)}

	now := policy.NowMillis()
	if ok := s.RecordToolCall(now); !ok {
		t.Fatalf("expected 1st call within limit")
	}
	if ok := s.RecordToolCall(now); ok {
		t.Fatalf("expected 2nd call to exceed limit")
	}
}

func TestBuild_SpawnsChildAndLogsStart(t *testing.T) {
	dir := t.TempDir()
	cfg := policy.Config{LogPath: filepath.Join(dir, "events.jsonl")}

	keyPath := filepath.Join(dir, "test.key")

	s, err := Build([]string{"cat"}, cfg, "default-agent", keyPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Shutdown(0)

	stats := s.Log.Stats()
	if stats.EventsByType["SERVER_START"] != 1 {
		t.Fatalf("expected 1 SERVER_START event, got %d", stats.EventsByType["SERVER_START"])
	}
	if stats.EventsByType["SESSION_GENESIS"] != 1 {
		t.Fatalf("expected 1 SESSION_GENESIS event establishing the integrity chain, got %d", stats.EventsByType["SESSION_GENESIS"])
	}
}

func TestBuild_SpawnFailureLogsServerError(t *testing.T) {
	dir := t.TempDir()
	cfg := policy.Config{LogPath: filepath.Join(dir, "events.jsonl")}
	keyPath := filepath.Join(dir, "test.key")

	_, err := Build([]string{"definitely-not-a-real-program-xyz"}, cfg, "default-agent", keyPath)
	if err == nil {
		t.Fatalf("expected spawn error")
	}

	data, err := os.ReadFile(cfg.LogPath)
	if err != nil {
		t.Fatalf("reading event log: %v", err)
	}
	if !strings.Contains(string(data), `"event_type":"SERVER_ERROR"`) {
		t.Fatalf("expected a SERVER_ERROR event in the log, got %s", data)
	}
}
