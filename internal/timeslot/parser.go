package timeslot

import (
	"sort"
	"strings"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
	"github.com/hackgods/doctor-appointment-booking/internal/clock"
)

var (
	ErrMalformedInterval  = apperr.New(apperr.KindValidation, "malformed_interval", `timeslots must be in format "HH:MM-HH:MM"`)
	ErrInvertedInterval   = apperr.New(apperr.KindValidation, "inverted_interval", "timeslot start must be before its end")
	ErrOutOfBusinessHours = apperr.New(apperr.KindValidation, "out_of_business_hours", "timeslot must lie within business hours")
)

// Interval is a recurring daily working range.
type Interval struct {
	Start clock.TimeOfDay
	End   clock.TimeOfDay
}

func (iv Interval) Contains(tod clock.TimeOfDay) bool {
	return tod >= iv.Start && tod <= iv.End
}

func (iv Interval) String() string {
	return iv.Start.String() + "-" + iv.End.String()
}

// Parser validates declared availability against business hours.
type Parser struct {
	Hours clock.BusinessHours
}

func NewParser(hours clock.BusinessHours) Parser {
	return Parser{Hours: hours}
}

// Parse splits the comma separated external representation and parses
// each entry.
func (p Parser) Parse(raw string) ([]Interval, error) {
	return p.ParseEntries(strings.Split(raw, ","))
}

// ParseEntries parses interval entries in order. Blank entries are skipped.
// Duplicates and overlaps are kept as declared.
func (p Parser) ParseEntries(entries []string) ([]Interval, error) {
	intervals := make([]Interval, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		iv, err := p.parseEntry(entry)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, nil
}

func (p Parser) parseEntry(entry string) (Interval, error) {
	startStr, endStr, found := strings.Cut(entry, "-")
	if !found {
		return Interval{}, ErrMalformedInterval.Withf("timeslot %q: missing '-' separator", entry)
	}
	start, err := clock.ParseTimeOfDay(startStr)
	if err != nil {
		return Interval{}, ErrMalformedInterval.Withf("timeslot %q: invalid start time", entry)
	}
	end, err := clock.ParseTimeOfDay(endStr)
	if err != nil {
		return Interval{}, ErrMalformedInterval.Withf("timeslot %q: invalid end time", entry)
	}
	if start >= end {
		return Interval{}, ErrInvertedInterval.Withf("timeslot %q: start must be before end", entry)
	}
	if start < p.Hours.Open || end > p.Hours.Close {
		return Interval{}, ErrOutOfBusinessHours.Withf("timeslot %q: must lie within %s-%s", entry, p.Hours.Open, p.Hours.Close)
	}
	return Interval{Start: start, End: end}, nil
}

// Contains reports whether tod falls inside any interval, endpoints included.
func Contains(intervals []Interval, tod clock.TimeOfDay) bool {
	for _, iv := range intervals {
		if iv.Contains(tod) {
			return true
		}
	}
	return false
}

// Merge returns the union of intervals as sorted, non-overlapping ranges.
// Touching ranges are joined. The input is not modified.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Format renders intervals in the stored comma separated form.
func Format(intervals []Interval) string {
	parts := make([]string, len(intervals))
	for i, iv := range intervals {
		parts[i] = iv.String()
	}
	return strings.Join(parts, ",")
}
