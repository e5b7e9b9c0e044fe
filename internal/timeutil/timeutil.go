// Package timeutil provides time formatting and capture-time helpers.
package timeutil

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// FormatSeconds converts seconds to HH:MM:SS.MS format.
//
// Example:
//
//	FormatSeconds(0)      // "00:00:00.00"
//	FormatSeconds(90)     // "00:01:30.00"
//	FormatSeconds(30.53)  // "00:00:30.53"
func FormatSeconds(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := seconds - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("%02d:%02d:%05.2f", hours, minutes, secs)
}

// FormatClock renders whole seconds as "00h01m05s". It contains no colons or
// quotes, so it can be embedded in an ffmpeg filter graph without escaping.
func FormatClock(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02dh%02dm%02ds", total/3600, (total%3600)/60, total%60)
}

// SpanName renders an epoch range as "20240102T030405--20240102T040506".
func SpanName(start, end int64, loc *time.Location) string {
	const layout = "20060102T150405"
	return time.Unix(start, 0).In(loc).Format(layout) + "--" + time.Unix(end, 0).In(loc).Format(layout)
}

// Filename date/time stamps as written by cameras, phones and screen recorders.
// Go's regexp has no lookbehind, so digit boundaries are matched explicitly.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|\D)(\d{4})[._-]?([01]\d)[._-]?([0-3]\d)[ T_-]?([0-2]\d)[.:_-]?([0-5]\d)[.:_-]?([0-5]\d)(?:\D|$)`),
	regexp.MustCompile(`(?:^|\D)(\d{2})[._-]?([01]\d)[._-]?([0-3]\d)[ T_-]?([0-2]\d)[.:_-]?([0-5]\d)[.:_-]?([0-5]\d)(?:\D|$)`),
	regexp.MustCompile(`(\d{4})[-_]?([01]\d)[-_]?([0-3]\d)T([0-2]\d)([0-5]\d)([0-5]\d)`),
	regexp.MustCompile(`(?i)(\d{4})-(\d{2})-(\d{2})\s+at\s+([0-2]\d)\.([0-5]\d)\.([0-5]\d)`),
}

// EpochFromName extracts a capture time from a file's base name, interpreted
// in loc. Two-digit years map to 1970-2069.
func EpochFromName(name string, loc *time.Location) (int64, bool) {
	base := filepath.Base(name)
	for _, rx := range namePatterns {
		m := rx.FindStringSubmatch(base)
		if m == nil {
			continue
		}

		var parts [6]int
		for i := range parts {
			parts[i], _ = strconv.Atoi(m[i+1])
		}
		year := parts[0]
		if len(m[1]) == 2 {
			if year < 70 {
				year += 2000
			} else {
				year += 1900
			}
		}

		t := time.Date(year, time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, loc)
		// time.Date normalizes out-of-range fields; reject instead.
		if t.Year() != year || int(t.Month()) != parts[1] || t.Day() != parts[2] ||
			t.Hour() != parts[3] || t.Minute() != parts[4] || t.Second() != parts[5] {
			continue
		}
		return t.Unix(), true
	}
	return 0, false
}

// BaseEpoch returns the capture time of a source: the stamp in its name when
// present, otherwise its modification time.
func BaseEpoch(name string, modTime time.Time, loc *time.Location) int64 {
	if epoch, ok := EpochFromName(name, loc); ok {
		return epoch
	}
	return modTime.Unix()
}
