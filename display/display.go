// Package display formats counts and timestamps for terminal output.
package display

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Count abbreviates large counts: 1234 -> "1.2K", 5600000 -> "5.6M".
func Count(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.Itoa(n)
	}
}

// OptionalCount renders a count that may be unknown.
func OptionalCount(n *int) string {
	if n == nil {
		return "N/A"
	}
	return Count(*n)
}

// Ago describes how long before now t was, rounding up to whole days,
// weeks (7 days), months (30 days) or years (365 days).
func Ago(now, t time.Time) string {
	days := int(math.Ceil(math.Abs(now.Sub(t).Hours()) / 24))

	switch {
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return fmt.Sprintf("%d weeks ago", ceilDiv(days, 7))
	case days < 365:
		return fmt.Sprintf("%d months ago", ceilDiv(days, 30))
	default:
		return fmt.Sprintf("%d years ago", ceilDiv(days, 365))
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
