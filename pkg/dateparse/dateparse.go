// Package dateparse normalizes the date encodings found in order exports
// into midnight-UTC instants. Unparseable input degrades to the zero time,
// which sorts before every real date and therefore never wins a "most
// recent" comparison.
package dateparse

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Parse resolves a raw date string to a midnight-UTC instant. Hyphenated
// values with a 4-digit first segment are read as year-month-day; other
// hyphenated values as day-month-year when the first part exceeds 12 and
// month-day-year otherwise. That heuristic is ambiguous whenever both day
// and month are 12 or less; the source data does not distinguish these, so
// it is kept as-is. Slash-delimited values are day-month-year. A trailing
// time-of-day component ("2024-01-02 15:04:05", "2024-01-02T15:04:05") is
// dropped before parsing. Empty input yields the zero time; anything
// unrecognized yields the zero time plus a warning diagnostic.
func Parse(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	datePart := raw
	if idx := strings.IndexAny(datePart, " T"); idx != -1 {
		datePart = datePart[:idx]
	}

	if strings.Contains(datePart, "-") {
		parts := splitNumeric(datePart, "-")
		if parts == nil {
			return unknown(raw)
		}
		first := strings.SplitN(datePart, "-", 2)[0]
		if len(first) == 4 {
			return makeDate(parts[0], parts[1], parts[2], raw)
		}
		if parts[0] > 12 {
			return makeDate(parts[2], parts[1], parts[0], raw)
		}
		return makeDate(parts[2], parts[0], parts[1], raw)
	}

	if strings.Contains(datePart, "/") {
		parts := splitNumeric(datePart, "/")
		if parts == nil {
			return unknown(raw)
		}
		return makeDate(parts[2], parts[1], parts[0], raw)
	}

	return unknown(raw)
}

// DaysBetween returns whole days from then to now, comparing date-only
// values so time-of-day noise never produces a spurious day. The result is
// clamped to zero for unknown dates and for dates after now.
func DaysBetween(now, then time.Time) int {
	if then.IsZero() {
		return 0
	}
	nowDay := DateOnly(now)
	thenDay := DateOnly(then)
	if thenDay.After(nowDay) {
		return 0
	}
	return int(nowDay.Sub(thenDay).Hours() / 24)
}

// DateOnly truncates an instant to midnight in its own location.
func DateOnly(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}

func splitNumeric(raw, sep string) []int {
	fields := strings.Split(raw, sep)
	if len(fields) != 3 {
		return nil
	}
	parts := make([]int, 3)
	for i, field := range fields {
		value, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil
		}
		parts[i] = value
	}
	return parts
}

func makeDate(year, month, day int, raw string) time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1 {
		return unknown(raw)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func unknown(raw string) time.Time {
	log.Warn().Str("value", raw).Msg("unparseable order date, treating as unknown")
	return time.Time{}
}
