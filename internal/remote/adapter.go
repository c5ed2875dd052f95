// Package remote implements the optional Remote Collaborator Adapter
// (spec.md §4.G): a thin boundary layer backed by a Supabase PostgREST
// API, consumed by the gateway through three operations only.
package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/contextguard/contextguard/internal/eventlog"
	"github.com/contextguard/contextguard/internal/logging"
	"github.com/contextguard/contextguard/internal/policy"
)

// AgentStatus is one of the three states reportable via UpdateAgentStatus.
type AgentStatus string

const (
	StatusOnline  AgentStatus = "online"
	StatusOffline AgentStatus = "offline"
	StatusError   AgentStatus = "error"
)

// Adapter is the Supabase-backed implementation of the three remote
// operations consumed by the gateway (spec.md §4.G). It never blocks the
// gateway: ReportEvent is fire-and-forget via an internal worker.
type Adapter struct {
	baseURL    string
	serviceKey string
	agentID    string
	httpClient *http.Client

	events chan eventlog.SecurityEvent
	done   chan struct{}
}

// New returns an Adapter backed by Supabase PostgREST at baseURL.
func New(baseURL, serviceKey, agentID string) *Adapter {
	a := &Adapter{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		agentID:    agentID,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		events:     make(chan eventlog.SecurityEvent, 256),
		done:       make(chan struct{}),
	}
	go a.dispatchLoop()
	return a
}

// FromEnv returns an Adapter if SUPABASE_URL, SUPABASE_SERVICE_KEY, and
// AGENT_ID are all present in the environment; otherwise nil, enabled
// false — matching spec.md §4.G's enablement rule exactly.
func FromEnv() *Adapter {
	url := os.Getenv("SUPABASE_URL")
	key := os.Getenv("SUPABASE_SERVICE_KEY")
	agent := os.Getenv("AGENT_ID")
	if agent == "" {
		agent = "default-agent"
	}
	if url == "" || key == "" || os.Getenv("AGENT_ID") == "" {
		return nil
	}
	return New(url, key, agent)
}

// dispatchLoop drains queued events to Supabase one at a time. Send
// failures are logged and otherwise swallowed (spec.md §4.G).
func (a *Adapter) dispatchLoop() {
	for {
		select {
		case e := <-a.events:
			if err := a.postEvent(e); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] remote: report_event failed: %v\n", err)
			}
		case <-a.done:
			return
		}
	}
}

// ReportEvent queues e for asynchronous, fire-and-forget delivery. If the
// queue is full the event is dropped rather than blocking the gateway.
func (a *Adapter) ReportEvent(e eventlog.SecurityEvent) {
	select {
	case a.events <- e:
	default:
		fmt.Fprintln(os.Stderr, "[WARN] remote: event queue full, dropping event")
	}
}

func (a *Adapter) postEvent(e eventlog.SecurityEvent) error {
	body, err := json.Marshal(struct {
		eventlog.SecurityEvent
		AgentID string `json:"agent_id"`
	}{SecurityEvent: e, AgentID: a.agentID})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return a.post("/rest/v1/security_events", body)
}

// remotePolicyRow's detection fields are *bool, not bool: a PostgREST row
// that omits these columns must decode to "unset" (nil), not to an
// explicit false that would silently disable detection once merged into
// the local policy.Config.
type remotePolicyRow struct {
	MaxToolCallsPerMinute          int      `json:"max_tool_calls_per_minute"`
	BlockedPatterns                []string `json:"blocked_patterns"`
	AllowedFilePaths               []string `json:"allowed_file_paths"`
	AlertThreshold                 int      `json:"alert_threshold"`
	EnablePromptInjectionDetection *bool    `json:"enable_prompt_injection_detection"`
	EnableSensitiveDataDetection   *bool    `json:"enable_sensitive_data_detection"`
	LogPath                        string   `json:"log_path"`
}

// FetchPolicy attempts a one-time remote policy fetch for agentID at
// startup (spec.md §4.E step 3). An empty result set returns (zero value,
// false, nil); a transport failure, a status other than 200, or an
// undecodable body returns (zero value, false, err). In every case other
// than ok == true the caller proceeds with local config, per spec.
func (a *Adapter) FetchPolicy(agentID string) (policy.Config, bool, error) {
	url := fmt.Sprintf("%s/rest/v1/agent_policies?agent_id=eq.%s&limit=1", a.baseURL, agentID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return policy.Config{}, false, err
	}
	a.setHeaders(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return policy.Config{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return policy.Config{}, false, fmt.Errorf("fetch_policy: status %d", resp.StatusCode)
	}

	var rows []remotePolicyRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return policy.Config{}, false, fmt.Errorf("decoding policy: %w", err)
	}
	if len(rows) == 0 {
		return policy.Config{}, false, nil
	}

	row := rows[0]
	return policy.Config{
		MaxToolCallsPerMinute:          row.MaxToolCallsPerMinute,
		BlockedPatterns:                row.BlockedPatterns,
		AllowedFilePaths:               row.AllowedFilePaths,
		AlertThreshold:                 row.AlertThreshold,
		EnablePromptInjectionDetection: row.EnablePromptInjectionDetection,
		EnableSensitiveDataDetection:   row.EnableSensitiveDataDetection,
		LogPath:                        row.LogPath,
	}, true, nil
}

// UpdateAgentStatus best-effort reports status for agentID. Failures are
// logged, never returned as fatal (spec.md §4.G: "best-effort").
func (a *Adapter) UpdateAgentStatus(agentID string, status AgentStatus) {
	body, err := json.Marshal(map[string]string{
		"agent_id": agentID,
		"status":   string(status),
	})
	if err != nil {
		logging.Warn("agent_status_marshal_failed", logging.Fields{Component: "remote", Error: err.Error()})
		return
	}
	if err := a.post("/rest/v1/agent_status", body); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] remote: update_agent_status failed: %v\n", err)
	}
}

func (a *Adapter) post(path string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	a.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("apikey", a.serviceKey)
	req.Header.Set("Authorization", "Bearer "+a.serviceKey)
}

// Close stops the dispatch worker. Queued-but-undelivered events are
// dropped; Close does not wait for in-flight HTTP calls.
func (a *Adapter) Close() {
	close(a.done)
}
