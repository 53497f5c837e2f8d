package domain

import (
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// DefaultOffsetSeconds is the civil offset digests are scheduled in unless configured otherwise (UTC+9).
const DefaultOffsetSeconds = 9 * 60 * 60

// Zone is the civil timezone used to turn an instant into a schedule slot.
// The zero value behaves like DefaultZone.
type Zone struct {
	loc *time.Location
}

// DefaultZone returns the fixed UTC+09:00 zone.
func DefaultZone() Zone {
	return FixedZone(DefaultOffsetSeconds)
}

// FixedZone returns a zone with a constant offset, independent of the host's TZ settings.
func FixedZone(offsetSeconds int) Zone {
	sign := '+'
	abs := offsetSeconds
	if abs < 0 {
		sign = '-'
		abs = -abs
	}
	name := fmt.Sprintf("UTC%c%02d:%02d", sign, abs/3600, (abs%3600)/60)
	return Zone{loc: time.FixedZone(name, offsetSeconds)}
}

// Location returns the underlying location.
func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return DefaultZone().loc
	}
	return z.loc
}

func (z Zone) String() string {
	return z.Location().String()
}

// Slot is one schedule minute in a zone: the unit a preference is matched against.
type Slot struct {
	Minute      string // zero-padded HH:MM
	MinuteOfDay int
	Weekday     Weekday
}

// SlotAt converts an instant into the civil minute and weekday of the zone.
func (z Zone) SlotAt(t time.Time) Slot {
	lt := t.In(z.Location())
	mod := lt.Hour()*60 + lt.Minute()
	return Slot{
		Minute:      FormatMinutes(mod),
		MinuteOfDay: mod,
		Weekday:     FromTimeWeekday(lt.Weekday()),
	}
}

// Lookback returns the minute labels from slot back through `window` earlier minutes
// of the same civil day, newest first. A zero window yields only the slot's own minute.
func (s Slot) Lookback(window int) []string {
	if window < 0 {
		window = 0
	}
	if window > s.MinuteOfDay {
		window = s.MinuteOfDay
	}
	out := make([]string, 0, window+1)
	for i := 0; i <= window; i++ {
		out = append(out, FormatMinutes(s.MinuteOfDay-i))
	}
	return out
}

func (s Slot) String() string {
	return s.Weekday.String() + " " + s.Minute
}

// NextMinute returns the first whole-minute boundary strictly after t.
func NextMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute).Add(time.Minute)
}
