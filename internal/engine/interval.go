package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

// Interval is a half-open time range [Start, End) in minutes since
// midnight on a named day. Ranges on different days never overlap.
type Interval struct {
	Day   string
	Start int
	End   int
}

// Overlaps reports whether two intervals share any instant. An interval
// ending exactly when another begins does not overlap.
func Overlaps(a, b Interval) bool {
	if a.Day != b.Day {
		return false
	}
	return a.Start < b.End && b.Start < a.End
}

var rangeLabelPattern = regexp.MustCompile(`\[\s*([^\[\]]+?)\s+to\s+([^\[\]]+?)\s*\]`)

// ParseClock converts a time-of-day label into minutes since midnight.
// Accepted forms: "8am", "12:30pm", "14:00", "9". Bare hours without a
// meridiem are read on the 24-hour clock.
func ParseClock(label string) (int, error) {
	raw := strings.ToLower(strings.TrimSpace(label))
	if raw == "" {
		return 0, appErrors.Clone(appErrors.ErrParse, "empty time label")
	}

	meridiem := ""
	for _, suffix := range []string{"am", "pm"} {
		if strings.HasSuffix(raw, suffix) {
			meridiem = suffix
			raw = strings.TrimSpace(strings.TrimSuffix(raw, suffix))
			break
		}
	}

	hourPart, minutePart := raw, "0"
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		hourPart, minutePart = raw[:idx], raw[idx+1:]
	}

	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, fmt.Sprintf("non-numeric hour in %q", label))
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, fmt.Sprintf("non-numeric minute in %q", label))
	}
	if minute < 0 || minute > 59 {
		return 0, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("minute out of range in %q", label))
	}

	switch meridiem {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("hour out of range in %q", label))
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("hour out of range in %q", label))
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
			return 0, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("hour out of range in %q", label))
		}
	}

	return hour*60 + minute, nil
}

// ParseRangeLabel extracts the start and end minutes from an
// unavailability column header such as " [1am to 2am]". The bracketed
// range is required; anything outside the brackets is ignored.
func ParseRangeLabel(header string) (start, end int, err error) {
	m := rangeLabelPattern.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("column %q has no recognisable time range", header))
	}
	start, err = ParseClock(m[1])
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, fmt.Sprintf("column %q: bad range start", header))
	}
	end, err = ParseClock(m[2])
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, fmt.Sprintf("column %q: bad range end", header))
	}
	if start >= end {
		return 0, 0, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("column %q: range start must precede end", header))
	}
	return start, end, nil
}

// FormatMinutes renders minutes since midnight as H:MM.
func FormatMinutes(m int) string {
	return fmt.Sprintf("%d:%02d", m/60, m%60)
}

var canonicalDays = map[string]string{
	"monday":    "Monday",
	"mon":       "Monday",
	"tuesday":   "Tuesday",
	"tue":       "Tuesday",
	"tues":      "Tuesday",
	"wednesday": "Wednesday",
	"wed":       "Wednesday",
	"thursday":  "Thursday",
	"thu":       "Thursday",
	"thur":      "Thursday",
	"thurs":     "Thursday",
	"friday":    "Friday",
	"fri":       "Friday",
	"saturday":  "Saturday",
	"sat":       "Saturday",
	"sunday":    "Sunday",
	"sun":       "Sunday",
}

// NormalizeDay maps free-form day spellings onto their canonical names.
func NormalizeDay(raw string) (string, bool) {
	day, ok := canonicalDays[strings.ToLower(strings.TrimSpace(raw))]
	return day, ok
}
