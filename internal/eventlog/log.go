package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contextguard/contextguard/internal/crypto"
	"github.com/contextguard/contextguard/internal/logging"
	"github.com/contextguard/contextguard/internal/ring"
)

const ringCapacity = 1000

// genesisHash is the 64-character all-zero anchor for the integrity chain,
// mirroring the teacher's ledger genesis block (SPEC_FULL.md §3).
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// RemoteSink is the subset of the Remote Collaborator Adapter (spec.md
// §4.G) the event log depends on. Implemented by internal/remote.Adapter.
type RemoteSink interface {
	ReportEvent(event SecurityEvent)
}

// Log is the append-only structured event log (spec.md §4.B): an
// in-memory ring, a best-effort file appender, stderr alerting, and an
// optional async remote sink. Safe for concurrent use.
type Log struct {
	sessionID string
	logPath   string
	ring      *ring.Buffer[SecurityEvent]
	remote    RemoteSink
	signer    *crypto.Signer

	mu       sync.Mutex // serializes file writes and hash-chain state
	file     *os.File
	writer   *bufio.Writer
	lastHash string
}

// Option configures optional Log features.
type Option func(*Log)

// WithRemoteSink attaches a remote sink for async event dispatch.
func WithRemoteSink(sink RemoteSink) Option {
	return func(l *Log) { l.remote = sink }
}

// WithSigner attaches an Ed25519 signer for the event integrity chain
// (SPEC_FULL.md §3). Without a signer, events are appended unsigned.
func WithSigner(signer *crypto.Signer) Option {
	return func(l *Log) { l.signer = signer }
}

// New creates a Log for sessionID, appending to logPath (best-effort; a
// file-open failure is reported to stderr and logging degrades to
// in-memory + stderr only, per spec.md §7's fail-open principle).
func New(sessionID, logPath string, opts ...Option) *Log {
	rb, err := ring.New[SecurityEvent](ringCapacity)
	if err != nil {
		// Capacity is a positive constant; this cannot fail in practice.
		rb = &ring.Buffer[SecurityEvent]{}
	}

	l := &Log{
		sessionID: sessionID,
		logPath:   logPath,
		ring:      rb,
		lastHash:  genesisHash,
	}
	for _, opt := range opts {
		opt(l)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] event log: failed to open %s: %v\n", logPath, err)
	} else {
		l.file = f
		l.writer = bufio.NewWriter(f)
	}

	// Emitted regardless of whether logPath opened: a signer present with
	// a degraded (ring/stderr-only) log must still anchor the chain, or
	// every subsequent signed event would start from the bare genesis
	// constant with no genesis record ever having existed.
	if l.signer != nil {
		l.emitGenesis()
	}
	return l
}

// emitGenesis records the session's integrity-chain anchor event.
func (l *Log) emitGenesis() {
	l.Log(TypeSessionGenesis, SeverityLow, map[string]interface{}{
		"public_key": l.signer.GetPublicKey(),
	})
}

// Log stamps, rings, persists, alerts, and optionally forwards a
// SecurityEvent. It never blocks the gateway: file and remote-sink
// failures are reported to stderr and swallowed (spec.md §4.B, §7).
func (l *Log) Log(eventType string, severity Severity, details map[string]interface{}) SecurityEvent {
	e := getEvent()
	e.ID = uuid.New().String()[:8]
	e.Timestamp = time.Now().UTC()
	e.EventType = eventType
	e.Severity = severity
	e.SessionID = l.sessionID
	for k, v := range details {
		e.Details[k] = v
	}

	l.mu.Lock()
	if l.signer != nil {
		l.chain(e)
	}
	recorded := l.snapshot(e)
	l.appendLine(recorded)
	l.mu.Unlock()

	l.ring.PushEvict(recorded)

	if severity == SeverityHigh || severity == SeverityCritical {
		fmt.Fprintf(os.Stderr, "[SECURITY ALERT] %s: %v\n", eventType, recorded.Details)
	}

	if l.remote != nil {
		l.remote.ReportEvent(recorded)
	}

	putEvent(e)
	return recorded
}

// snapshot returns a caller-independent copy of e: the Details map is
// cloned so the pooled event can be reset and reused without aliasing the
// copy retained in the ring, on disk, or dispatched to the remote sink.
func (l *Log) snapshot(e *SecurityEvent) SecurityEvent {
	details := make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		details[k] = v
	}
	return SecurityEvent{
		ID:          e.ID,
		Timestamp:   e.Timestamp,
		EventType:   e.EventType,
		Severity:    e.Severity,
		Details:     details,
		SessionID:   e.SessionID,
		PrevHash:    e.PrevHash,
		CurrentHash: e.CurrentHash,
		Signature:   e.Signature,
	}
}

// chain computes and signs the hash-chain fields for e. Must be called
// with l.mu held (lastHash is shared mutable state).
func (l *Log) chain(e *SecurityEvent) {
	e.PrevHash = l.lastHash
	payload := map[string]interface{}{
		"timestamp":  e.Timestamp.Format(time.RFC3339Nano),
		"event_type": e.EventType,
		"severity":   string(e.Severity),
		"session_id": e.SessionID,
		"details":    e.Details,
	}
	hash, err := crypto.CalculateEventHash(e.PrevHash, payload)
	if err != nil {
		logging.Warn("event_hash_failed", logging.Fields{Component: "eventlog", Error: err.Error()})
		return
	}
	e.CurrentHash = hash
	l.lastHash = hash

	sig, err := l.signer.SignHash(hash)
	if err != nil {
		logging.Warn("event_sign_failed", logging.Fields{Component: "eventlog", Error: err.Error()})
		return
	}
	e.Signature = sig
}

// appendLine writes one JSON line to logPath. Must be called with l.mu
// held. A write failure is reported to stderr and otherwise ignored —
// the gateway must keep running even if the filesystem is unavailable.
func (l *Log) appendLine(e SecurityEvent) {
	if l.writer == nil {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] event log: marshal failed: %v\n", err)
		return
	}
	line = append(line, '\n')
	if _, err := l.writer.Write(line); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] event log: write failed: %v\n", err)
		return
	}
	if err := l.writer.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] event log: flush failed: %v\n", err)
	}
}

// Close flushes and closes the underlying log file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		_ = l.writer.Flush()
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Stats computes the on-demand statistics view over the in-memory ring.
func (l *Log) Stats() Stats {
	events := l.ring.Snapshot()
	s := Stats{
		EventsByType:     make(map[string]int),
		EventsBySeverity: make(map[string]int),
	}
	s.TotalEvents = len(events)
	for _, e := range events {
		s.EventsByType[e.EventType]++
		s.EventsBySeverity[string(e.Severity)]++
	}
	start := 0
	if len(events) > 10 {
		start = len(events) - 10
	}
	s.RecentEvents = append([]SecurityEvent(nil), events[start:]...)
	return s
}
