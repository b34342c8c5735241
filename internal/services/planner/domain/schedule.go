package domain

import (
	"fmt"
	"strings"
	"time"
)

// Intent describes how concretely a task is scheduled.
type Intent string

const (
	IntentUnscheduled Intent = "unscheduled"
	IntentDateOnly    Intent = "date_only"
	IntentTimeWindow  Intent = "time_window"
	IntentExactTime   Intent = "exact_time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// ParseIntent normalizes a raw intent name. Empty means unscheduled.
func ParseIntent(raw string) (Intent, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	switch Intent(value) {
	case "", IntentUnscheduled:
		return IntentUnscheduled, nil
	case IntentDateOnly, IntentTimeWindow, IntentExactTime:
		return Intent(value), nil
	default:
		return "", InvalidSchedule("unknown schedule intent " + strings.TrimSpace(raw))
	}
}

// Schedule is a task's scheduling intent and its date/time fields. Dates are
// YYYY-MM-DD and times are HH:MM, both in the configured planner timezone.
type Schedule struct {
	Intent      Intent
	Date        string
	Time        string
	WindowStart string
	WindowEnd   string
}

// Normalize canonicalizes the fields and enforces the intent rules:
// unscheduled carries nothing, date_only carries a date and no time,
// time_window carries a date and an ordered start/end, and exact_time carries
// a date and a time.
func (s Schedule) Normalize() (Schedule, error) {
	intent, err := ParseIntent(string(s.Intent))
	if err != nil {
		return Schedule{}, err
	}
	out := Schedule{Intent: intent}

	date, hasDate, err := parseDate(s.Date)
	if err != nil {
		return Schedule{}, err
	}
	exact, hasExact, err := parseClock("time", s.Time)
	if err != nil {
		return Schedule{}, err
	}
	start, hasStart, err := parseClock("window_start", s.WindowStart)
	if err != nil {
		return Schedule{}, err
	}
	end, hasEnd, err := parseClock("window_end", s.WindowEnd)
	if err != nil {
		return Schedule{}, err
	}

	switch intent {
	case IntentUnscheduled:
		if hasDate || hasExact || hasStart || hasEnd {
			return Schedule{}, InvalidSchedule("unscheduled intent must not carry a date or time")
		}
	case IntentDateOnly:
		if !hasDate {
			return Schedule{}, InvalidSchedule("date_only intent requires a date")
		}
		if hasExact || hasStart || hasEnd {
			return Schedule{}, InvalidSchedule("date_only intent must not carry a time")
		}
		out.Date = date
	case IntentTimeWindow:
		if !hasDate || !hasStart || !hasEnd {
			return Schedule{}, InvalidSchedule("time_window intent requires a date, window_start and window_end")
		}
		if hasExact {
			return Schedule{}, InvalidSchedule("time_window intent must not carry an exact time")
		}
		if start >= end {
			return Schedule{}, InvalidSchedule("time_window start must be before end")
		}
		out.Date, out.WindowStart, out.WindowEnd = date, start, end
	case IntentExactTime:
		if !hasDate || !hasExact {
			return Schedule{}, InvalidSchedule("exact_time intent requires both a date and a time")
		}
		if hasStart || hasEnd {
			return Schedule{}, InvalidSchedule("exact_time intent must not carry a time window")
		}
		out.Date, out.Time = date, exact
	}
	return out, nil
}

// HasExplicitTime reports whether the intent pins a time of day, which is
// what a reminder attachment requires.
func (s Schedule) HasExplicitTime() bool {
	return s.Intent == IntentExactTime || s.Intent == IntentTimeWindow
}

// IsZero reports whether the schedule is unscheduled.
func (s Schedule) IsZero() bool {
	return s.Intent == "" || s.Intent == IntentUnscheduled
}

// Start returns the instant the schedule begins in loc, if it has one.
func (s Schedule) Start(loc *time.Location) (time.Time, bool) {
	clock := s.Time
	if s.Intent == IntentTimeWindow {
		clock = s.WindowStart
	}
	if !s.HasExplicitTime() || s.Date == "" || clock == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(dateLayout+" "+clockLayout, s.Date+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return start, true
}

func parseDate(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return "", false, InvalidSchedule(fmt.Sprintf("date %q must be YYYY-MM-DD", raw))
	}
	return parsed.Format(dateLayout), true, nil
}

func parseClock(field, raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, nil
	}
	for _, layout := range []string{clockLayout, "15:04:05", "3:04PM", "3:04pm"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.Format(clockLayout), true, nil
		}
	}
	return "", false, InvalidSchedule(fmt.Sprintf("%s %q must be HH:MM", field, raw))
}

// ParseInstant reads an instant either as RFC 3339 or as a local date-time in
// loc ("2006-01-02T15:04:05", "2006-01-02T15:04" or "2006-01-02 15:04").
func ParseInstant(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("instant is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if parsed, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("instant %q must be RFC 3339 or YYYY-MM-DDTHH:MM[:SS]", raw)
}
