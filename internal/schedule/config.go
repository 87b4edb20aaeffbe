// Package schedule turns a physician's recurring working pattern into the
// concrete appointment slots of a calendar date.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrInvalidConfig = errors.New("invalid schedule configuration")

// MaxConsultationDuration is the longest consultation, in minutes, a
// schedule may use: one slot per day.
const MaxConsultationDuration = 24 * 60

// Config is the working pattern owned by a physician record.
type Config struct {
	ConsultationDuration int `json:"consultation_duration"` // minutes

	MorningEnabled bool      `json:"morning_enabled"`
	MorningStart   TimeOfDay `json:"morning_start"`
	MorningEnd     TimeOfDay `json:"morning_end"`

	AfternoonEnabled bool      `json:"afternoon_enabled"`
	AfternoonStart   TimeOfDay `json:"afternoon_start"`
	AfternoonEnd     TimeOfDay `json:"afternoon_end"`

	WorkingDays WeekdaySet `json:"working_days"`
}

// DefaultConfig is the pattern a newly registered physician starts with.
func DefaultConfig() Config {
	return Config{
		ConsultationDuration: 30,
		MorningEnabled:       true,
		MorningStart:         Clock(8, 30),
		MorningEnd:           Clock(12, 30),
		AfternoonEnabled:     true,
		AfternoonStart:       Clock(13, 30),
		AfternoonEnd:         Clock(17, 0),
		WorkingDays:          Weekdays(Monday, Tuesday, Wednesday, Thursday, Friday),
	}
}

// Validate rejects configurations the slot generator must never see.
// Overlap between morning and afternoon is not checked.
func (c Config) Validate() error {
	if err := c.checkDuration(); err != nil {
		return err
	}
	if c.WorkingDays.Empty() {
		return fmt.Errorf("%w: working_days must not be empty", ErrInvalidConfig)
	}
	if c.MorningEnabled && c.MorningStart >= c.MorningEnd {
		return fmt.Errorf("%w: morning_start must be before morning_end", ErrInvalidConfig)
	}
	if c.AfternoonEnabled && c.AfternoonStart >= c.AfternoonEnd {
		return fmt.Errorf("%w: afternoon_start must be before afternoon_end", ErrInvalidConfig)
	}
	if c.MorningStart < 0 || c.MorningEnd > Clock(24, 0) || c.AfternoonStart < 0 || c.AfternoonEnd > Clock(24, 0) {
		return fmt.Errorf("%w: period bounds must fall within the day", ErrInvalidConfig)
	}
	return nil
}

func (c Config) checkDuration() error {
	if c.ConsultationDuration <= 0 {
		return fmt.Errorf("%w: consultation_duration must be positive", ErrInvalidConfig)
	}
	if c.ConsultationDuration > MaxConsultationDuration {
		return fmt.Errorf("%w: consultation_duration must be at most %d minutes", ErrInvalidConfig, MaxConsultationDuration)
	}
	return nil
}

// Slots returns the start times of every bookable slot on date, morning
// first, ignoring existing appointments. Only the slot start is compared to
// the period end, so a final slot may run past it when the duration does not
// divide the window.
func (c Config) Slots(date time.Time) ([]TimeOfDay, error) {
	if err := c.checkDuration(); err != nil {
		return nil, err
	}
	if !c.WorkingDays.Has(ISOWeekday(date)) {
		return []TimeOfDay{}, nil
	}

	step := TimeOfDay(time.Duration(c.ConsultationDuration) * time.Minute)
	if step <= 0 {
		return nil, fmt.Errorf("%w: consultation_duration %d overflows", ErrInvalidConfig, c.ConsultationDuration)
	}
	slots := []TimeOfDay{}
	if c.MorningEnabled {
		slots = walk(slots, c.MorningStart, c.MorningEnd, step)
	}
	if c.AfternoonEnabled {
		slots = walk(slots, c.AfternoonStart, c.AfternoonEnd, step)
	}
	return slots, nil
}

func walk(dst []TimeOfDay, start, end, step TimeOfDay) []TimeOfDay {
	for t := start; t < end; t += step {
		dst = append(dst, t)
	}
	return dst
}

// Available drops every candidate whose time of day matches one of the taken
// date-times. Order is preserved and nothing is added.
func Available(candidates []TimeOfDay, taken []time.Time) []TimeOfDay {
	busy := make(map[TimeOfDay]struct{}, len(taken))
	for _, t := range taken {
		busy[TimeOfDayOf(t)] = struct{}{}
	}
	out := make([]TimeOfDay, 0, len(candidates))
	for _, s := range candidates {
		if _, ok := busy[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// WithSlot returns slots with s inserted in ascending position, used when an
// appointment being rescheduled must still be offered its own slot.
func WithSlot(slots []TimeOfDay, s TimeOfDay) []TimeOfDay {
	out := make([]TimeOfDay, 0, len(slots)+1)
	out = append(out, slots...)
	if Contains(slots, s) {
		return out
	}
	out = append(out, s)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether s is one of slots.
func Contains(slots []TimeOfDay, s TimeOfDay) bool {
	for _, v := range slots {
		if v == s {
			return true
		}
	}
	return false
}
