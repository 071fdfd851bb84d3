package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "05:12", "5:12", "05:12 (BST)", "05:12 +03"
	clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?:\s*(?:\([^)]*\)|[+-]\d{2}(?::?\d{2})?|[A-Za-z]{2,5}))?$`)
)

// Clock is a wall-clock time of day without a date or timezone.
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns the minutes elapsed since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// String formats the clock as zero-padded "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock extracts a 24-hour time of day from raw. A trailing timezone
// annotation such as " (BST)" is tolerated and discarded.
func ParseClock(raw string) (Clock, error) {
	s := strings.TrimSpace(raw)
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("unable to parse clock time: %q", raw)
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return Clock{}, fmt.Errorf("invalid hour in %q: %w", raw, err)
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil {
		return Clock{}, fmt.Errorf("invalid minute in %q: %w", raw, err)
	}
	if hour > 23 || minute > 59 {
		return Clock{}, fmt.Errorf("clock time out of range: %q", raw)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}
