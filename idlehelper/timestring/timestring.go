// Package timestring parses and formats the compact durations used by the game and by commands,
// e.g. "1d 2h 30m" or "45s".
package timestring

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/idlehelper/bot/idlehelper/config"
)

var (
	ErrInvalid = errors.New("invalid timestring")
	ErrTooLong = errors.New("timestring exceeds the maximum duration")
)

var units = []struct {
	suffix  byte
	seconds int64
}{
	{'w', 7 * 86400},
	{'d', 86400},
	{'h', 3600},
	{'m', 60},
	{'s', 1},
}

var (
	componentRe = regexp.MustCompile(`^(\d+)([wdhms])`)
	// game output puts the clock emoji before the remaining time
	clockRe = regexp.MustCompile(`🕓\s*[*` + "`" + `]*\s*((?:\d+\s*[wdhms]\s*)+)`)
)

// Parse converts a timestring into a duration. Components must appear in
// decreasing order (w, d, h, m, s), each at most once.
func Parse(s string) (time.Duration, error) {
	cleaned := strings.ToLower(strings.Join(strings.Fields(s), ""))
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalid)
	}

	var total int64
	last := -1
	for cleaned != "" {
		match := componentRe.FindStringSubmatch(cleaned)
		if match == nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		idx := unitIndex(match[2][0])
		if idx <= last {
			return 0, fmt.Errorf("%w: units out of order in %q", ErrInvalid, s)
		}
		last = idx

		if len(match[1]) > 10 {
			return 0, ErrTooLong
		}
		amount, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		total += amount * units[idx].seconds
		if total > config.MaxTimestringSeconds {
			return 0, ErrTooLong
		}
		cleaned = cleaned[len(match[0]):]
	}
	return time.Duration(total) * time.Second, nil
}

// Format renders d as "1d 2h 3m 4s", skipping zero components. Weeks are folded
// into days. A zero duration renders as "0m 0s".
func Format(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0m 0s"
	}

	var parts []string
	for _, u := range units[1:] {
		if n := seconds / u.seconds; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%c", n, u.suffix))
			seconds -= n * u.seconds
		}
	}
	return strings.Join(parts, " ")
}

// Canonical parses s and formats it again.
func Canonical(s string) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(d), nil
}

// FindAfterClock returns the first timestring printed after the clock emoji in text.
func FindAfterClock(text string) (time.Duration, bool) {
	match := clockRe.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	d, err := Parse(match[1])
	if err != nil {
		return 0, false
	}
	return d, true
}

// FindAllAfterClock returns every clock-prefixed timestring in text in order.
func FindAllAfterClock(text string) []time.Duration {
	var found []time.Duration
	for _, match := range clockRe.FindAllStringSubmatch(text, -1) {
		if d, err := Parse(match[1]); err == nil {
			found = append(found, d)
		}
	}
	return found
}

func unitIndex(suffix byte) int {
	for i, u := range units {
		if u.suffix == suffix {
			return i
		}
	}
	return -1
}
