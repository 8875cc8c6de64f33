package itinerary

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTime is returned when a time-of-day string cannot be parsed.
var ErrInvalidTime = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time in seconds since midnight. Values past
// 24:00 are kept as-is; routes that run past midnight read e.g. "25:10".
type TimeOfDay int

// ParseTimeOfDay parses "H:MM" or "HH:MM". A trailing ":SS" is accepted and ignored.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	hours, ok := parseDigits(parts[0])
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minutes, ok := parseDigits(parts[1])
	if !ok || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if len(parts) == 3 {
		if sec, ok := parseDigits(parts[2]); !ok || sec > 59 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	}

	return TimeOfDay(hours*3600 + minutes*60), nil
}

// parseDigits accepts one to four ASCII digits; signs and spaces are rejected.
func parseDigits(s string) (int, bool) {
	if len(s) == 0 || len(s) > 4 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// Add returns t advanced by seconds and truncated to the whole minute.
func (t TimeOfDay) Add(seconds float64) TimeOfDay {
	total := math.Floor((float64(t) + seconds) / 60)
	return TimeOfDay(int(total) * 60)
}

// Seconds returns the number of seconds since midnight.
func (t TimeOfDay) Seconds() int {
	return int(t)
}

// String formats t as zero-padded "HH:MM".
func (t TimeOfDay) String() string {
	minutes := int(t) / 60
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
