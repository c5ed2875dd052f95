package interceptor

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/contextguard/contextguard/internal/policy"
	"github.com/contextguard/contextguard/internal/pool"
)

// SyncWriter serializes concurrent writes to a shared destination, so
// synthetic error responses and genuine forwarded lines never interleave
// mid-line (spec.md §5, "Writes to the client stdout stream are
// serialized").
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w for concurrent use.
func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// stderrWriter is the destination for user-visible security warnings
// (spec.md §4.F steps 4a, server-to-client step 3a). Overridable in
// tests.
var stderrWriter io.Writer = os.Stderr

// policyNowMillis is policy.NowMillis, indirected so tests can observe a
// fixed clock if needed.
var policyNowMillis = policy.NowMillis

// syntheticError is the exact wire shape required by spec.md §4.F and
// §6 ("Synthetic JSON-RPC error codes").
type syntheticError struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      interface{}      `json:"id"`
	Error   syntheticErrBody `json:"error"`
}

type syntheticErrBody struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func writeSyntheticError(w io.Writer, jsonrpcVersion string, id interface{}, code int, message string, violations []string) error {
	body := syntheticError{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Error: syntheticErrBody{
			Code:    code,
			Message: message,
			Data:    map[string]interface{}{"violations": violations},
		},
	}
	return writeJSON(w, body)
}

// writeJSON marshals v into a pooled buffer rather than letting
// json.Marshal's own allocation escape per call. Every synthesized error
// goes through here; forwarded frames go through writeLine.
func writeJSON(w io.Writer, v interface{}) error {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	enc := json.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// writeLine writes line plus its trailing newline through a pooled
// buffer, avoiding fmt.Fprintf's per-call allocation on the forwarding
// hot path.
func writeLine(w io.Writer, line string) error {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	buf.WriteString(line)
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
