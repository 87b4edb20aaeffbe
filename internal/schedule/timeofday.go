package schedule

import (
	"fmt"
	"time"
)

// TimeOfDay is an offset from midnight. Slots and appointment times are
// compared by their TimeOfDay, never by full timestamps.
type TimeOfDay time.Duration

// Clock builds a TimeOfDay from hour and minute.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// TimeOfDayOf returns the wall-clock time-of-day component of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" (Postgres time text output,
// fractional seconds dropped).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) < 5 {
		return 0, fmt.Errorf("invalid time of day: %q", s)
	}
	layout := "15:04"
	if len(s) >= 8 {
		s = s[:8]
		layout = "15:04:05"
	}
	tt, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day: %q", s)
	}
	return TimeOfDayOf(tt), nil
}

// On places the time of day on the calendar date of d, in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, d.Location()).Add(time.Duration(t))
}

// String renders "15:04", or "15:04:05" when seconds are present.
func (t TimeOfDay) String() string {
	ref := t.On(time.Time{})
	if time.Duration(t)%time.Minute != 0 {
		return ref.Format("15:04:05")
	}
	return ref.Format("15:04")
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
