package clock

import (
	"fmt"
	"strings"
	"time"
)

// Clock abstracts the current time so request-time checks can be tested.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System is the wall clock.
var System Clock = systemClock{}

// Fixed is a Clock frozen at a single instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// TimeOfDay is an offset from midnight.
type TimeOfDay time.Duration

// At builds a TimeOfDay from hour and minute.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseTimeOfDay parses a 24-hour "HH:MM" value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return At(t.Hour(), t.Minute()), nil
}

// OfInstant returns the wall-clock time of t in loc. A nil loc keeps the
// offset the instant was expressed in.
func OfInstant(t time.Time, loc *time.Location) TimeOfDay {
	if loc != nil {
		t = t.In(loc)
	}
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

func (d TimeOfDay) String() string {
	total := time.Duration(d)
	return fmt.Sprintf("%02d:%02d", int(total/time.Hour), int(total%time.Hour/time.Minute))
}
