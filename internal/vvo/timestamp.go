package vvo

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// dateRe matches the WCF JSON date wrapper, e.g. /Date(1644840600000-0000)/.
var dateRe = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// ParseMillis extracts the millisecond epoch embedded in a schedule time.
// The offset suffix is informational; the epoch is always UTC.
func ParseMillis(s string) (int64, error) {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrBadTimestamp, s, err)
	}
	return ms, nil
}

// ParseSeconds returns the embedded epoch truncated to whole seconds.
func ParseSeconds(s string) (int64, error) {
	ms, err := ParseMillis(s)
	if err != nil {
		return 0, err
	}
	return ms / 1000, nil
}

// ParseTime returns the schedule time as a time.Time.
func ParseTime(s string) (time.Time, error) {
	ms, err := ParseMillis(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// TravelSeconds returns the whole seconds between two schedule times.
// Each time is truncated to seconds before subtracting.
func TravelSeconds(from, to string) (int, error) {
	a, err := ParseSeconds(from)
	if err != nil {
		return 0, err
	}
	b, err := ParseSeconds(to)
	if err != nil {
		return 0, err
	}
	return int(b - a), nil
}
