// Package eventlog implements ContextGuard's append-only security event
// log: an in-memory bounded ring, a best-effort JSON-lines file appender,
// stderr alerting for high-severity events, and an optional async remote
// sink. See spec.md §3 (SecurityEvent) and §4.B.
package eventlog

import "time"

// Severity is one of the four levels defined in spec.md §3.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Event type taxonomy, spec.md §4.B. Names are emitted on the wire exactly
// as written here.
const (
	TypeServerStart       = "SERVER_START"
	TypeServerExit        = "SERVER_EXIT"
	TypeServerError       = "SERVER_ERROR"
	TypeClientRequest     = "CLIENT_REQUEST"
	TypeToolCall          = "TOOL_CALL"
	TypeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	TypeSecurityViolation = "SECURITY_VIOLATION"
	TypeSensitiveDataLeak = "SENSITIVE_DATA_LEAK"
	TypeServerResponse    = "SERVER_RESPONSE"
	TypeParseError        = "PARSE_ERROR"
	TypeServerParseError  = "SERVER_PARSE_ERROR"
	TypeSessionGenesis    = "SESSION_GENESIS" // (NEW) integrity chain anchor, see SPEC_FULL.md §3
)

// SecurityEvent is the unit of logged observation (spec.md §3), extended
// with the hash-chain integrity fields described in SPEC_FULL.md §3.
type SecurityEvent struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	EventType   string                 `json:"event_type"`
	Severity    Severity               `json:"severity"`
	Details     map[string]interface{} `json:"details"`
	SessionID   string                 `json:"session_id"`
	PrevHash    string                 `json:"prev_hash,omitempty"`
	CurrentHash string                 `json:"current_hash,omitempty"`
	Signature   string                 `json:"signature,omitempty"`
}

// reset clears an event to its zero value for reuse from a pool. Timestamp
// is zeroed too, so no monotonic clock reading is retained.
func (e *SecurityEvent) reset() {
	e.ID = ""
	e.Timestamp = time.Time{}
	e.EventType = ""
	e.Severity = ""
	e.SessionID = ""
	e.PrevHash = ""
	e.CurrentHash = ""
	e.Signature = ""
	for k := range e.Details {
		delete(e.Details, k)
	}
}

// Stats is the on-demand statistics view, spec.md §4.B, computed over the
// in-memory ring only.
type Stats struct {
	TotalEvents      int             `json:"total_events"`
	EventsByType     map[string]int  `json:"events_by_type"`
	EventsBySeverity map[string]int  `json:"events_by_severity"`
	RecentEvents     []SecurityEvent `json:"recent_events"`
}
