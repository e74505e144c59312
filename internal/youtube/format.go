package youtube

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	durationPattern = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)
	leadingInt      = regexp.MustCompile(`^[+-]?\d+`)
)

// FormatCount abbreviates a decimal count: 1500000 becomes "1.5M", 2000
// becomes "2K". Only the leading digits are read, so "12abc" is 12; values
// without any render as "0".
func FormatCount(raw string) string {
	n, err := strconv.ParseInt(leadingInt.FindString(strings.TrimSpace(raw)), 10, 64)
	if err != nil {
		return "0"
	}
	switch {
	case n >= 1_000_000:
		return abbreviate(float64(n)/1_000_000) + "M"
	case n >= 1_000:
		return abbreviate(float64(n)/1_000) + "K"
	}
	return strconv.FormatInt(n, 10)
}

func abbreviate(v float64) string {
	return strings.TrimSuffix(strconv.FormatFloat(v, 'f', 1, 64), ".0")
}

// FormatDuration renders an ISO-8601 video duration (PT1H2M30S) as 1:02:30,
// or m:ss when shorter than an hour.
func FormatDuration(iso string) string {
	m := durationPattern.FindStringSubmatch(iso)
	if m == nil {
		return "0:00"
	}
	hours, minutes, seconds := atoi(m[1]), atoi(m[2]), atoi(m[3])
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
