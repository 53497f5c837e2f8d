package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidTime    = errors.New("invalid time of day")
	ErrInvalidWeekday = errors.New("invalid weekday")
	ErrInvalidZone    = errors.New("invalid timezone")
)

var offsetRe = regexp.MustCompile(`^(?:UTC)?([+-])(\d{1,2})(?::?(\d{2}))?$`)

// ParseHHMM parses "HH:MM" into minutes since midnight (0..1439).
func ParseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: expected HH:MM, got %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: hour %q", ErrInvalidTime, parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: minute %q", ErrInvalidTime, parts[1])
	}
	return h*60 + m, nil
}

// NormalizeHHMM returns the zero-padded form of a valid time of day ("7:05" -> "07:05").
func NormalizeHHMM(s string) (string, error) {
	mins, err := ParseHHMM(s)
	if err != nil {
		return "", err
	}
	return FormatMinutes(mins), nil
}

// FormatMinutes returns HH:MM for minutes since midnight, wrapping into 00:00..23:59.
func FormatMinutes(mins int) string {
	mins %= minutesPerDay
	if mins < 0 {
		mins += minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// ParseWeekdays accepts labels like "mon", "Tue" or "wednesday" and returns a set.
// Duplicates are collapsed.
func ParseWeekdays(labels []string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if len(l) < 3 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, l)
		}
		d, ok := weekdayByLabel[l[:3]]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, l)
		}
		set = set.With(d)
	}
	return set, nil
}

// ParseZone accepts a fixed offset ("+09:00", "UTC-5", "+0530") or an IANA name.
func ParseZone(s string) (Zone, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultZone(), nil
	}
	if m := offsetRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[2])
		mm := 0
		if m[3] != "" {
			mm, _ = strconv.Atoi(m[3])
		}
		if h > 14 || mm > 59 {
			return Zone{}, fmt.Errorf("%w: offset %q out of range", ErrInvalidZone, s)
		}
		secs := h*3600 + mm*60
		if m[1] == "-" {
			secs = -secs
		}
		return FixedZone(secs), nil
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return Zone{}, fmt.Errorf("%w: %v", ErrInvalidZone, err)
	}
	return Zone{loc: loc}, nil
}
