package logpipeline

import "github.com/acidprime/garden/pkg/common"

// DefaultDedupCapacity is the default per-key sliding window size (spec
// §4.2: sized for a typical 10s re-fetch window). Re-exported from
// pkg/common, the single source of truth for this default.
const DefaultDedupCapacity = common.DefaultDedupCapacity

// dedupEntry is one remembered (message, timeMs) pair.
type dedupEntry struct {
	message string
	timeMs  int64
}

// dedupWindow is a bounded FIFO sliding window of recently emitted entries
// for a single (pod, container) key. It is never cleared on reconnect,
// only at process exit — overlap across reconnects is exactly what it
// exists to suppress.
type dedupWindow struct {
	capacity int
	entries  []dedupEntry
}

func newDedupWindow(capacity int) *dedupWindow {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &dedupWindow{capacity: capacity}
}

// accept reports whether (message, timeMs) is new, appending it to the
// window and evicting the oldest entry once capacity is exceeded.
func (w *dedupWindow) accept(message string, timeMs int64) bool {
	for _, e := range w.entries {
		if e.message == message && e.timeMs == timeMs {
			return false
		}
	}
	w.entries = append(w.entries, dedupEntry{message: message, timeMs: timeMs})
	if len(w.entries) > w.capacity {
		w.entries = w.entries[len(w.entries)-w.capacity:]
	}
	return true
}

// DedupBuffer is the per-key registry of dedup windows. It is owned and
// mutated only by the follower's single control goroutine, so it carries
// no internal locking (spec §5: "no explicit locking is required in an
// executor that runs one callback at a time").
type DedupBuffer struct {
	capacity int
	windows  map[string]*dedupWindow
}

// NewDedupBuffer builds an empty dedup registry. capacity <= 0 uses
// DefaultDedupCapacity.
func NewDedupBuffer(capacity int) *DedupBuffer {
	return &DedupBuffer{capacity: capacity, windows: make(map[string]*dedupWindow)}
}

// Accept decides whether an incoming (message, timestamp) pair for key is
// new. A missing timestamp must be passed as timeMs=0 by the caller, which
// deliberately collapses distinct untimestamped heartbeats sharing a
// message within one window (spec §4.2).
func (d *DedupBuffer) Accept(key, message string, timeMs int64) bool {
	w, ok := d.windows[key]
	if !ok {
		w = newDedupWindow(d.capacity)
		d.windows[key] = w
	}
	return w.accept(message, timeMs)
}
