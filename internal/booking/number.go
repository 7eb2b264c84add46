package booking

import (
	"fmt"
	"time"
)

const numberPrefix = "RL"

// FormatNumber builds a human-readable booking number like RL-20260829-0042.
// seq is 1-based within the day.
func FormatNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", numberPrefix, day.UTC().Format("20060102"), seq)
}

// FallbackNumber is used when the sequential number collides under
// concurrency. Still unique, just not pretty.
func FallbackNumber(now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", numberPrefix, now.UTC().Format("20060102"), now.UnixNano()%1000000)
}
