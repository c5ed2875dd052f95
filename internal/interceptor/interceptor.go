// Package interceptor implements the two directional pipelines that
// consume framed JSON-RPC lines, run them through the policy engine, and
// either forward or block-and-synthesize a JSON-RPC error (spec.md §4.F).
package interceptor

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/contextguard/contextguard/internal/eventlog"
	"github.com/contextguard/contextguard/internal/gateway"
	"github.com/contextguard/contextguard/internal/jsonrpc"
)

const (
	codeRequestBlocked  = -32000
	codeResponseBlocked = -32001
)

// ClientToServer implements spec.md §4.F's client→server pipeline: one
// frame in, at most one frame forwarded to the child plus at most one
// synthetic error written to the client.
type ClientToServer struct {
	Session  *gateway.SessionState
	ToChild  io.Writer
	ToClient io.Writer
}

// Handle processes one raw frame line (without its trailing newline).
func (p *ClientToServer) Handle(line string) error {
	msg, parseErr := jsonrpc.Parse(line)
	if parseErr != nil {
		p.Session.Log.Log(eventlog.TypeParseError, eventlog.SeverityMedium, map[string]interface{}{
			"snippet": truncate(line, 100),
		})
		return writeLine(p.ToChild, line)
	}

	p.Session.Log.Log(eventlog.TypeClientRequest, eventlog.SeverityLow, map[string]interface{}{
		"method": msg.Method,
		"id":     msg.ID,
	})

	var violations []string
	shouldBlock := false

	if msg.Method == "tools/call" {
		now := policyNowMillis()
		if !p.Session.RecordToolCall(now) {
			violations = append(violations, "Rate limit exceeded for tool calls")
			shouldBlock = true
			p.Session.Log.Log(eventlog.TypeRateLimitExceeded, eventlog.SeverityHigh, map[string]interface{}{
				"method": msg.Method,
			})
		}

		paramsJSON, err := json.Marshal(msg.Params)
		if err != nil {
			paramsJSON = []byte("{}")
		}
		violations = append(violations, p.Session.Policy.CheckPromptInjection(string(paramsJSON))...)
		violations = append(violations, p.Session.Policy.CheckSensitiveData(string(paramsJSON))...)

		for _, path := range candidateFilePaths(msg.Params) {
			violations = append(violations, p.Session.Policy.CheckFileAccess(path)...)
		}

		toolName, _ := msg.Params["name"].(string)
		severity := eventlog.SeverityLow
		if len(violations) > 0 {
			severity = eventlog.SeverityHigh
		}
		p.Session.Log.Log(eventlog.TypeToolCall, severity, map[string]interface{}{
			"toolName":      toolName,
			"hasViolations": len(violations) > 0,
			"violations":    violations,
		})
	}

	if len(violations) > 0 {
		p.Session.Log.Log(eventlog.TypeSecurityViolation, eventlog.SeverityCritical, map[string]interface{}{
			"violations": violations,
			"message":    "Security violation detected in client request",
			"blocked":    shouldBlock,
		})
		fmt.Fprintf(stderrWriter, "[SECURITY WARNING] Request flagged: %v\n", violations)

		if shouldBlock {
			if msg.HasID() {
				return writeSyntheticError(p.ToClient, msg.JSONRPC, msg.ID, codeRequestBlocked,
					"Security violation: Request blocked", violations)
			}
			return nil
		}
	}

	return writeLine(p.ToChild, line)
}

// ServerToClient implements spec.md §4.F's server→client pipeline.
type ServerToClient struct {
	Session  *gateway.SessionState
	ToClient io.Writer
}

// Handle processes one raw frame line from the child.
func (p *ServerToClient) Handle(line string) error {
	msg, parseErr := jsonrpc.Parse(line)
	if parseErr != nil {
		p.Session.Log.Log(eventlog.TypeServerParseError, eventlog.SeverityLow, map[string]interface{}{
			"snippet": truncate(line, 100),
		})
		return writeLine(p.ToClient, line)
	}

	resultJSON, err := msg.ResultOrWhole()
	if err != nil {
		resultJSON = line
	}
	violations := p.Session.Policy.CheckSensitiveData(resultJSON)

	if len(violations) > 0 {
		p.Session.Log.Log(eventlog.TypeSensitiveDataLeak, eventlog.SeverityCritical, map[string]interface{}{
			"violations": violations,
			"responseId": msg.ID,
		})
		fmt.Fprintf(stderrWriter, "[SECURITY WARNING] Response flagged: %v\n", violations)

		if msg.HasID() {
			return writeSyntheticError(p.ToClient, msg.JSONRPC, msg.ID, codeResponseBlocked,
				"Security violation: Response contains sensitive data", violations)
		}
		return nil
	}

	p.Session.Log.Log(eventlog.TypeServerResponse, eventlog.SeverityLow, map[string]interface{}{
		"id": msg.ID,
	})
	return writeLine(p.ToClient, line)
}

func candidateFilePaths(params map[string]interface{}) []string {
	if params == nil {
		return nil
	}
	var out []string
	if args, ok := params["arguments"].(map[string]interface{}); ok {
		for _, key := range []string{"path", "filePath", "file", "directory"} {
			if v, ok := args[key].(string); ok {
				out = append(out, v)
			}
		}
	}
	for _, key := range []string{"path", "filePath"} {
		if v, ok := params[key].(string); ok {
			out = append(out, v)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
