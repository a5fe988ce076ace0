package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSince parses a duration string as used by the follower's and the
// one-shot collector's "since" option. It accepts everything
// time.ParseDuration does, plus a bare "d" (days) suffix, since client-go's
// SinceSeconds/SinceTime log options are commonly expressed in days by
// operators ("5d" for "the last five days") and time.ParseDuration has no
// notion of a day.
func ParseSince(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		numeric := strings.TrimSuffix(s, "d")
		days, err := strconv.ParseFloat(numeric, 64)
		if err != nil {
			return 0, fmt.Errorf("common.ParseSince(%q): %w", s, err)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("common.ParseSince(%q): %w", s, err)
	}
	return d, nil
}
