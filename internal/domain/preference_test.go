package domain

import (
	"errors"
	"testing"
)

func mondayOnly() WeekdaySet { return WeekdaySet(0).With(Monday) }

func TestPreferenceMatches_ExactMinuteAndWeekday(t *testing.T) {
	p := Preference{UserID: "u1", Enabled: true, TimeOfDay: "07:00", Weekdays: mondayOnly()}

	if !p.Matches(Slot{Minute: "07:00", MinuteOfDay: 420, Weekday: Monday}) {
		t.Fatal("want match on mon 07:00")
	}
	if p.Matches(Slot{Minute: "07:00", MinuteOfDay: 420, Weekday: Tuesday}) {
		t.Fatal("tue must not match")
	}
	if p.Matches(Slot{Minute: "07:01", MinuteOfDay: 421, Weekday: Monday}) {
		t.Fatal("07:01 must not match a 07:00 preference")
	}
	if p.Matches(Slot{Minute: "06:59", MinuteOfDay: 419, Weekday: Monday}) {
		t.Fatal("06:59 must not match a 07:00 preference")
	}
}

func TestPreferenceMatches_DisabledNeverMatches(t *testing.T) {
	p := Preference{Enabled: false, TimeOfDay: "07:00", Weekdays: AllWeekdays}
	s := Slot{Minute: "07:00", MinuteOfDay: 420, Weekday: Monday}
	if p.Matches(s) || p.MatchesWithin(s, 10) {
		t.Fatal("disabled preference matched")
	}
}

func TestPreferenceMatchesWithin(t *testing.T) {
	p := Preference{Enabled: true, TimeOfDay: "07:00", Weekdays: mondayOnly()}
	late := Slot{Minute: "07:02", MinuteOfDay: 422, Weekday: Monday}
	if p.MatchesWithin(late, 1) {
		t.Fatal("window 1 must not reach back two minutes")
	}
	if !p.MatchesWithin(late, 2) {
		t.Fatal("window 2 should catch up 07:00")
	}
	early := Slot{Minute: "06:59", MinuteOfDay: 419, Weekday: Monday}
	if p.MatchesWithin(early, 5) {
		t.Fatal("window only looks backwards")
	}
}

func TestWeekdaySetRoundTrip(t *testing.T) {
	set, err := ParseWeekdays([]string{"Fri", "monday", "wed", "mon"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := set.String(); got != "mon,wed,fri" {
		t.Fatalf("want mon,wed,fri, got %s", got)
	}
	back, err := ParseWeekdaySet(set.String())
	if err != nil || back != set {
		t.Fatalf("round trip: %v %v", back, err)
	}
	if empty, err := ParseWeekdaySet(""); err != nil || !empty.Empty() {
		t.Fatalf("empty: %v %v", empty, err)
	}
}

func TestParseWeekdays_Invalid(t *testing.T) {
	if _, err := ParseWeekdays([]string{"funday"}); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("want ErrInvalidWeekday, got %v", err)
	}
}

func TestNormalizeHHMM(t *testing.T) {
	got, err := NormalizeHHMM("7:05")
	if err != nil || got != "07:05" {
		t.Fatalf("want 07:05, got %q (%v)", got, err)
	}
	for _, bad := range []string{"24:00", "07:60", "0700", "7:5", ""} {
		if _, err := NormalizeHHMM(bad); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("%q: want ErrInvalidTime, got %v", bad, err)
		}
	}
}

func TestPreferenceMatchesWithin_ZeroWindowIsExact(t *testing.T) {
	prefs := []Preference{
		{Enabled: true, TimeOfDay: "07:00", Weekdays: mondayOnly()},
		{Enabled: false, TimeOfDay: "07:00", Weekdays: AllWeekdays},
		{Enabled: true, TimeOfDay: "06:59", Weekdays: AllWeekdays},
	}
	slots := []Slot{
		{Minute: "07:00", MinuteOfDay: 420, Weekday: Monday},
		{Minute: "07:00", MinuteOfDay: 420, Weekday: Tuesday},
		{Minute: "07:01", MinuteOfDay: 421, Weekday: Monday},
		{Minute: "06:59", MinuteOfDay: 419, Weekday: Sunday},
	}
	for _, p := range prefs {
		for _, s := range slots {
			for _, w := range []int{0, -3} {
				if got, want := p.MatchesWithin(s, w), p.Matches(s); got != want {
					t.Fatalf("%+v at %s window %d: got %v, want %v", p, s, w, got, want)
				}
			}
		}
	}
}
