package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is an ISO weekday: 1=Monday … 7=Sunday.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// ISOWeekday returns the ISO weekday of t.
func ISOWeekday(t time.Time) Weekday {
	wd := t.Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

// WeekdaySet is a bitmask of working days.
type WeekdaySet uint8

// Weekdays builds a set from the given days; invalid days are ignored.
func Weekdays(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		if d.Valid() {
			s |= 1 << uint(d)
		}
	}
	return s
}

// ParseWorkingDays parses the stored comma-delimited day list, e.g. "1,2,3,4,5".
// Blank entries are skipped.
func ParseWorkingDays(s string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || !Weekday(n).Valid() {
			return 0, fmt.Errorf("invalid working day %q", part)
		}
		set |= 1 << uint(n)
	}
	return set, nil
}

func (s WeekdaySet) Has(d Weekday) bool { return d.Valid() && s&(1<<uint(d)) != 0 }

func (s WeekdaySet) Empty() bool { return s == 0 }

// Days lists the members in ascending order.
func (s WeekdaySet) Days() []Weekday {
	var out []Weekday
	for d := Monday; d <= Sunday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s WeekdaySet) String() string {
	parts := make([]string, 0, 7)
	for _, d := range s.Days() {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func (s WeekdaySet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *WeekdaySet) UnmarshalText(b []byte) error {
	v, err := ParseWorkingDays(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
