package core

import (
	"reflect"
	"runtime"
	"strings"
	"sync"
)

const defaultHistoryCapacity = 100

// switchHistory keeps the last context switches in a fixed ring. Slot
// written%len(ring) receives the next record. Readers outside the scheduler
// take the lock.
type switchHistory struct {
	mu      sync.Mutex
	ring    []SwitchRecord
	written uint64
}

func newSwitchHistory(capacity int) *switchHistory {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return &switchHistory{ring: make([]SwitchRecord, capacity)}
}

func (h *switchHistory) Add(record SwitchRecord) {
	h.mu.Lock()
	h.ring[h.written%uint64(len(h.ring))] = record
	h.written++
	h.mu.Unlock()
}

// Recent returns up to limit records, newest first. A limit <= 0 returns all.
func (h *switchHistory) Recent(limit int) []SwitchRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := min(h.written, uint64(len(h.ring)))
	if kept == 0 {
		return nil
	}
	n := kept
	if limit > 0 && uint64(limit) < kept {
		n = uint64(limit)
	}

	out := make([]SwitchRecord, n)
	for i := range n {
		out[i] = h.ring[(h.written-1-i)%uint64(len(h.ring))]
	}
	return out
}

// resolveEntryName names a thread after its entry function, for logs and snapshots.
func resolveEntryName(fn ThreadFunc) string {
	if fn == nil {
		return "anonymous"
	}
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "anonymous"
	}
	name := f.Name()
	if name == "" {
		return "anonymous"
	}
	// Entry points of commands are shown without the main. prefix.
	return strings.TrimPrefix(name, "main.")
}
