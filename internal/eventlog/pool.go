package eventlog

import "sync"

var eventPool = sync.Pool{
	New: func() interface{} {
		return &SecurityEvent{Details: make(map[string]interface{}, 4)}
	},
}

// getEvent acquires a SecurityEvent from the pool for zero-allocation
// logging on the hot path. Callers must not retain the event past putEvent.
func getEvent() *SecurityEvent {
	return eventPool.Get().(*SecurityEvent)
}

// putEvent clears and returns an event to the pool. Safe to call with nil.
func putEvent(e *SecurityEvent) {
	if e == nil {
		return
	}
	e.reset()
	eventPool.Put(e)
}
