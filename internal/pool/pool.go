// Package pool provides a reusable byte-buffer pool used by the
// interceptor's frame and error writers, keeping the hot path
// allocation-light per spec.md §9 ("Hot-path allocations").
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/contextguard/contextguard/internal/assert"
)

// Metrics tracks pool hit/miss counters. Higher hit rates indicate better
// memory reuse on the hot path.
type Metrics struct {
	BufferHits   uint64
	BufferMisses uint64
}

var globalMetrics Metrics

// GetMetrics returns a snapshot of current pool metrics. Safe for
// concurrent access.
func GetMetrics() Metrics {
	return Metrics{
		BufferHits:   atomic.LoadUint64(&globalMetrics.BufferHits),
		BufferMisses: atomic.LoadUint64(&globalMetrics.BufferMisses),
	}
}

var bufferPool sync.Pool

const maxBufferSize = 1024 * 1024 // 1MB limit for pooling

// GetBuffer acquires a bytes.Buffer from the pool, pre-allocated with 4KB
// capacity. Always pair with PutBuffer to avoid leaking capacity back to
// the allocator.
func GetBuffer() *bytes.Buffer {
	if b, ok := bufferPool.Get().(*bytes.Buffer); ok {
		atomic.AddUint64(&globalMetrics.BufferHits, 1)
		return b
	}
	atomic.AddUint64(&globalMetrics.BufferMisses, 1)
	return bytes.NewBuffer(make([]byte, 0, 4096))
}

// PutBuffer returns a buffer to the pool after resetting it. Safe to call
// with nil (no-op). Buffers that grew past maxBufferSize are dropped
// rather than pooled, to avoid bloating the pool with one-off large frames.
func PutBuffer(b *bytes.Buffer) {
	if b == nil {
		return
	}
	if err := assert.Check(b.Cap() >= 0, "buffer capacity must not be negative"); err != nil {
		return
	}
	if b.Cap() > maxBufferSize {
		return
	}
	b.Reset()
	bufferPool.Put(b)
}
