// Package gateway holds the per-session state machine shared by both
// interceptor pipelines: the rate-limit window, the session id, and the
// startup sequence that wires policy, event log, child process, and the
// optional remote adapter together (spec.md §4.E).
package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/contextguard/contextguard/internal/childproc"
	"github.com/contextguard/contextguard/internal/crypto"
	"github.com/contextguard/contextguard/internal/eventlog"
	"github.com/contextguard/contextguard/internal/policy"
	"github.com/contextguard/contextguard/internal/remote"
)

// SessionState is the shared, serialized state consulted by both
// interceptor pipelines (spec.md §2, §4.E). All mutation of
// toolCallTimestamps happens under mu.
type SessionState struct {
	mu                 sync.Mutex
	toolCallTimestamps []int64

	SessionID string
	Policy    *policy.Engine
	Log       *eventlog.Log
	Child     *childproc.Supervisor
	Remote    *remote.Adapter
}

// NewSessionID generates the session id: SHA-256 of the startup
// timestamp's decimal representation, first 8 hex characters (spec.md
// §4.E).
func NewSessionID(startup time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", startup.UnixNano())))
	return hex.EncodeToString(sum[:])[:8]
}

// RecordToolCall appends now to the rate-limit window, prunes entries
// older than now-60000ms, and reports whether the call is within the
// configured rate limit. Serializes concurrent access from both
// pipelines, though only the client→server pipeline calls this today
// (spec.md §5, "Shared resources").
func (s *SessionState) RecordToolCall(now int64) (withinLimit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.toolCallTimestamps = append(s.toolCallTimestamps, now)
	s.toolCallTimestamps = policy.PruneWindow(s.toolCallTimestamps, now)
	return s.Policy.CheckRateLimit(s.toolCallTimestamps, now)
}

// Build runs the startup sequence from spec.md §4.E steps 1-4 and
// returns a ready-to-use SessionState. argv is the child invocation.
// keyPath names the Ed25519 signing key used for the event log's
// integrity chain (SPEC_FULL.md §3); a missing key file is generated in
// place, matching crypto.NewSigner's own idiom.
func Build(argv []string, localCfg policy.Config, agentID, keyPath string) (*SessionState, error) {
	cfg := policy.DefaultConfig().Merge(localCfg)
	sessionID := NewSessionID(time.Now())

	adapter := remote.FromEnv()
	if adapter != nil {
		remoteCfg, ok, err := adapter.FetchPolicy(agentID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] remote policy fetch failed, using local config: %v\n", err)
		} else if ok {
			cfg = cfg.Merge(remoteCfg)
			fmt.Fprintf(os.Stderr, "[INFO] remote policy loaded for agent %s\n", agentID)
		}
		adapter.UpdateAgentStatus(agentID, remote.StatusOnline)
	}

	var opts []eventlog.Option
	if adapter != nil {
		opts = append(opts, eventlog.WithRemoteSink(adapter))
	}
	if signer, err := crypto.NewSigner(keyPath); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] event log integrity chain disabled, signer unavailable: %v\n", err)
	} else {
		opts = append(opts, eventlog.WithSigner(signer))
	}
	log := eventlog.New(sessionID, cfg.LogPath, opts...)

	child, err := childproc.Spawn(argv, sessionID)
	if err != nil {
		log.Log(eventlog.TypeServerError, eventlog.SeverityHigh, map[string]interface{}{
			"error": err.Error(),
		})
		_ = log.Close()
		if adapter != nil {
			adapter.Close()
		}
		return nil, err
	}

	log.Log(eventlog.TypeServerStart, eventlog.SeverityLow, map[string]interface{}{
		"argv": argv,
		"pid":  child.Pid(),
	})

	return &SessionState{
		SessionID: sessionID,
		Policy:    policy.New(cfg),
		Log:       log,
		Child:     child,
		Remote:    adapter,
	}, nil
}

// Shutdown prints final statistics and closes owned resources. Called on
// child exit (spec.md §4.D, §4.E).
func (s *SessionState) Shutdown(exitCode int) {
	s.Log.Log(eventlog.TypeServerExit, eventlog.SeverityMedium, map[string]interface{}{
		"exit_code": exitCode,
	})

	stats := s.Log.Stats()
	fmt.Fprintf(os.Stderr, "[STATS] total_events=%d by_type=%v by_severity=%v\n",
		stats.TotalEvents, stats.EventsByType, stats.EventsBySeverity)

	if s.Remote != nil {
		s.Remote.Close()
	}
	_ = s.Log.Close()
}
