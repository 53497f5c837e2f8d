package domain

import (
	"strings"
	"time"
)

// Weekday is a civil weekday with Monday first.
type Weekday uint8

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayLabels = [...]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

var weekdayByLabel = map[string]Weekday{
	"mon": Monday, "tue": Tuesday, "wed": Wednesday, "thu": Thursday,
	"fri": Friday, "sat": Saturday, "sun": Sunday,
}

func (d Weekday) String() string {
	if int(d) < len(weekdayLabels) {
		return weekdayLabels[d]
	}
	return "?"
}

// FromTimeWeekday maps time.Weekday (Sunday=0) onto Weekday (Monday=0).
func FromTimeWeekday(w time.Weekday) Weekday {
	return Weekday((int(w) + 6) % 7)
}

// WeekdaySet is a bitmask of weekdays.
type WeekdaySet uint8

// AllWeekdays contains every day of the week.
const AllWeekdays WeekdaySet = 1<<7 - 1

func (s WeekdaySet) With(d Weekday) WeekdaySet { return s | 1<<d }

func (s WeekdaySet) Contains(d Weekday) bool { return s&(1<<d) != 0 }

func (s WeekdaySet) Empty() bool { return s&AllWeekdays == 0 }

// Labels returns the set members in week order.
func (s WeekdaySet) Labels() []string {
	out := make([]string, 0, 7)
	for d := Monday; d <= Sunday; d++ {
		if s.Contains(d) {
			out = append(out, d.String())
		}
	}
	return out
}

// String is the storage form, e.g. "mon,wed,fri".
func (s WeekdaySet) String() string {
	return strings.Join(s.Labels(), ",")
}

// ParseWeekdaySet parses the storage form produced by String.
func ParseWeekdaySet(s string) (WeekdaySet, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return ParseWeekdays(strings.Split(s, ","))
}

// Preference is a user's digest delivery setting.
type Preference struct {
	UserID    string
	Enabled   bool
	TimeOfDay string // HH:MM in the scheduler zone
	Weekdays  WeekdaySet
	UpdatedAt time.Time
}

// Matches reports whether the preference is due at the slot.
// A disabled preference never matches.
func (p Preference) Matches(s Slot) bool {
	return p.Enabled && p.TimeOfDay == s.Minute && p.Weekdays.Contains(s.Weekday)
}

// MatchesWithin is Matches widened to the window minutes preceding the slot on the same day.
// A window of zero or less is Matches.
func (p Preference) MatchesWithin(s Slot, window int) bool {
	if window <= 0 {
		return p.Matches(s)
	}
	if !p.Enabled || !p.Weekdays.Contains(s.Weekday) {
		return false
	}
	for _, m := range s.Lookback(window) {
		if p.TimeOfDay == m {
			return true
		}
	}
	return false
}
