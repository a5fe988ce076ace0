package common

import "time"

// Defaults mirrors the spec's fixed constants: the values the follower and
// one-shot collector fall back to when the caller leaves an option unset.
const (
	// DefaultRetryInterval is the reconcile cadence.
	DefaultRetryInterval = 10 * time.Second
	// DefaultDedupCapacity is the per-key sliding window size.
	DefaultDedupCapacity = 500
	// DefaultIdleTimeout is the per-stream socket idle timeout.
	DefaultIdleTimeout = 30 * time.Second
	// DefaultKeepAlive is the per-stream keepalive probe interval.
	DefaultKeepAlive = 15 * time.Second
	// RetrySinceWindow is the "since" override applied on reconnect,
	// bounding reconnect overlap instead of re-fetching the original
	// since window.
	RetrySinceWindow = 10 * time.Second
	// MaxLogLinesInMemory is the one-shot collector's total buffered-line
	// budget across every container.
	MaxLogLinesInMemory = 100000
)
