package clock

import (
	"fmt"
	"time"
)

// BusinessHours is the daily opening range. Both bounds are inclusive.
type BusinessHours struct {
	Open  TimeOfDay
	Close TimeOfDay
}

// DefaultBusinessHours is 08:00-18:00.
var DefaultBusinessHours = BusinessHours{Open: At(8, 0), Close: At(18, 0)}

// ParseBusinessHours builds BusinessHours from two "HH:MM" values.
func ParseBusinessHours(open, close string) (BusinessHours, error) {
	o, err := ParseTimeOfDay(open)
	if err != nil {
		return BusinessHours{}, err
	}
	c, err := ParseTimeOfDay(close)
	if err != nil {
		return BusinessHours{}, err
	}
	if o >= c {
		return BusinessHours{}, fmt.Errorf("business hours open %s must be before close %s", o, c)
	}
	return BusinessHours{Open: o, Close: c}, nil
}

func (b BusinessHours) Contains(tod TimeOfDay) bool {
	return tod >= b.Open && tod <= b.Close
}

// ContainsInstant reports whether t falls within business hours in loc.
func (b BusinessHours) ContainsInstant(t time.Time, loc *time.Location) bool {
	return b.Contains(OfInstant(t, loc))
}

// Window returns the symmetric closed range [at-half, at+half].
func Window(at time.Time, half time.Duration) (from, to time.Time) {
	return at.Add(-half), at.Add(half)
}

// WithinWindow reports whether other lies inside the closed window around at.
func WithinWindow(at, other time.Time, half time.Duration) bool {
	from, to := Window(at, half)
	return !other.Before(from) && !other.After(to)
}
