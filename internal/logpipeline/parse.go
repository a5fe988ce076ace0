package logpipeline

import (
	"strings"
	"time"
)

// nowFunc is overridden in tests so "now" timestamps are deterministic.
var nowFunc = time.Now

// ParsedLine is the pure-parser output: a candidate timestamp and message.
//
// HasTimestamp distinguishes "the line carried a timestamp we parsed" from
// "the line carried no parseable timestamp, so Timestamp is just now()" —
// the dedup buffer (spec §4.2) treats the latter case as timeMs=0, not as
// the wall-clock instant it happened to be received at.
type ParsedLine struct {
	Timestamp    time.Time
	Message      string
	HasTimestamp bool
}

// Parse splits one received line into a timestamp and message.
//
// The line is trimmed of trailing whitespace first; an all-whitespace line
// parses to ok=false and must not produce an entry. Otherwise the first
// space splits the line into a timestamp candidate and the remainder. If
// the candidate parses as RFC 3339, that instant and the remainder are
// returned; otherwise the whole (trimmed) line becomes the message and the
// timestamp is "now".
func Parse(line string) (ParsedLine, bool) {
	trimmed := strings.TrimRight(line, " \t\r\n")
	if trimmed == "" {
		return ParsedLine{}, false
	}

	idx := strings.IndexByte(trimmed, ' ')
	if idx < 0 {
		return ParsedLine{Timestamp: nowFunc(), Message: trimmed}, true
	}

	candidate, rest := trimmed[:idx], trimmed[idx+1:]
	ts, err := time.Parse(time.RFC3339, candidate)
	if err != nil {
		return ParsedLine{Timestamp: nowFunc(), Message: trimmed}, true
	}
	return ParsedLine{Timestamp: ts, Message: rest, HasTimestamp: true}, true
}

// DedupTimeMs returns the millisecond value the dedup buffer should key on
// for this parsed line: the parsed timestamp in milliseconds, or 0 if no
// timestamp was actually present on the line (spec §4.2).
func (p ParsedLine) DedupTimeMs() int64 {
	if !p.HasTimestamp {
		return 0
	}
	return p.Timestamp.UnixMilli()
}

// SplitLines splits a received chunk on newlines, dropping a trailing empty
// element produced by a chunk that ends in "\n" (the common case for a
// streaming write).
func SplitLines(chunk []byte) []string {
	text := string(chunk)
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
