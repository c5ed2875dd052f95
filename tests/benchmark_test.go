package tests

import (
	"testing"

	"github.com/contextguard/contextguard/internal/jsonrpc"
	"github.com/contextguard/contextguard/internal/policy"
)

// BenchmarkFramer_Feed measures the accumulate-and-split framing step that
// every byte read from a child or client stdio stream passes through.
func BenchmarkFramer_Feed(b *testing.B) {
	line := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"read_file","arguments":{"path":"/tmp/notes.txt"}}}` + "\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f := jsonrpc.NewFramer()
		if _, err := f.Feed(line); err != nil {
			b.Fatalf("feed failed: %v", err)
		}
	}
}

// BenchmarkEngine_CheckPromptInjection measures the cost of running the
// full prompt-injection pattern bank over a single tool-call payload, the
// hottest path in the client→server interceptor.
func BenchmarkEngine_CheckPromptInjection(b *testing.B) {
	eng := policy.New(policy.DefaultConfig())
	text := `{"name":"read_file","arguments":{"path":"/tmp/notes.txt","content":"please summarize this document for me"}}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.CheckPromptInjection(text)
	}
}

// BenchmarkEngine_CheckSensitiveData measures the sensitive-data pattern
// bank applied to a response payload, the hot path in the
// server→client interceptor.
func BenchmarkEngine_CheckSensitiveData(b *testing.B) {
	eng := policy.New(policy.DefaultConfig())
	text := `{"contents":"the quarterly report is attached, see notes.txt for details"}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.CheckSensitiveData(text)
	}
}

// BenchmarkSessionRateLimit measures the rolling 60s window maintenance
// (append + prune + evaluate) under sustained high-frequency tool calls.
func BenchmarkSessionRateLimit(b *testing.B) {
	eng := policy.New(policy.DefaultConfig())
	var timestamps []int64
	now := int64(1_700_000_000_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		now++
		timestamps = append(timestamps, now)
		timestamps = policy.PruneWindow(timestamps, now)
		eng.CheckRateLimit(timestamps, now)
	}
	b.ReportMetric(float64(len(timestamps)), "window-size")
}
