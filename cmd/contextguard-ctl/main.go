// Command contextguard-ctl inspects an append-only ContextGuard event
// log: verifying the hash chain's integrity and summarizing its
// contents. It operates only on the JSON-lines file produced by
// internal/eventlog — it never opens a live gateway session.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/contextguard/contextguard/internal/crypto"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "verify":
		verifyCommand()
	case "stats":
		statsCommand()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("contextguard-ctl - inspect a ContextGuard event log")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  contextguard-ctl verify <log-file>   Validate the hash chain end-to-end")
	fmt.Println("  contextguard-ctl stats <log-file>    Summarize event counts by type/severity")
}

// loggedEvent mirrors the JSON shape written by eventlog.Log.
type loggedEvent struct {
	ID          string                 `json:"id"`
	EventType   string                 `json:"event_type"`
	Severity    string                 `json:"severity"`
	Details     map[string]interface{} `json:"details"`
	SessionID   string                 `json:"session_id"`
	PrevHash    string                 `json:"prev_hash"`
	CurrentHash string                 `json:"current_hash"`
	Signature   string                 `json:"signature"`
	Timestamp   string                 `json:"timestamp"`
}

func readEvents(path string) ([]loggedEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var events []loggedEvent
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e loggedEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parsing event: %w", err)
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func verifyCommand() {
	if len(os.Args) < 3 {
		fmt.Println("usage: contextguard-ctl verify <log-file>")
		os.Exit(1)
	}
	path := os.Args[2]

	events, err := readEvents(path)
	if err != nil {
		fmt.Printf("Failed to read log: %v\n", err)
		os.Exit(1)
	}

	signed := 0
	for _, e := range events {
		if e.Signature != "" {
			signed++
		}
	}
	if signed == 0 {
		fmt.Println("Log contains no signed events; nothing to verify.")
		return
	}

	fmt.Printf("Verifying %d signed events...\n", signed)

	prevHash := ""
	for i, e := range events {
		if e.Signature == "" {
			continue
		}
		// A SESSION_GENESIS event starts a new chain (one per gateway run
		// appending to the same file); every other event must link to the
		// hash of the signed event before it.
		if prevHash != "" && e.EventType != "SESSION_GENESIS" && e.PrevHash != prevHash {
			fmt.Printf("✗ Chain verification failed at event %d (%s): broken link to previous event\n", i, e.ID)
			os.Exit(1)
		}
		payload := map[string]interface{}{
			"timestamp":  e.Timestamp,
			"event_type": e.EventType,
			"severity":   e.Severity,
			"session_id": e.SessionID,
			"details":    e.Details,
		}
		expected, err := crypto.CalculateEventHash(e.PrevHash, payload)
		if err != nil {
			fmt.Printf("✗ Chain verification failed at event %d (%s): %v\n", i, e.ID, err)
			os.Exit(1)
		}
		if expected != e.CurrentHash {
			fmt.Printf("✗ Chain verification failed at event %d (%s): hash mismatch\n", i, e.ID)
			os.Exit(1)
		}
		prevHash = e.CurrentHash
	}

	fmt.Printf("✓ Chain is valid (%d events verified)\n", signed)
}

func statsCommand() {
	if len(os.Args) < 3 {
		fmt.Println("usage: contextguard-ctl stats <log-file>")
		os.Exit(1)
	}
	path := os.Args[2]

	events, err := readEvents(path)
	if err != nil {
		fmt.Printf("Failed to read log: %v\n", err)
		os.Exit(1)
	}

	byType := make(map[string]int)
	bySeverity := make(map[string]int)
	for _, e := range events {
		byType[e.EventType]++
		bySeverity[e.Severity]++
	}

	fmt.Printf("Total events: %d\n", len(events))
	fmt.Println("By type:")
	for t, c := range byType {
		fmt.Printf("  %-24s %d\n", t, c)
	}
	fmt.Println("By severity:")
	for s, c := range bySeverity {
		fmt.Printf("  %-24s %d\n", s, c)
	}
}
