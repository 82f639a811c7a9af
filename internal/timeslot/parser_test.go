package timeslot

import (
	"errors"
	"testing"

	"github.com/hackgods/doctor-appointment-booking/internal/clock"
)

func TestParse(t *testing.T) {
	p := NewParser(clock.DefaultBusinessHours)

	got, err := p.Parse(" 08:00-12:00 ,, 14:00-18:00,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Interval{
		{Start: clock.At(8, 0), End: clock.At(12, 0)},
		{Start: clock.At(14, 0), End: clock.At(18, 0)},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d intervals, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("interval %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestParse_Blank(t *testing.T) {
	p := NewParser(clock.DefaultBusinessHours)
	for _, raw := range []string{"", " ", " , ,"} {
		got, err := p.Parse(raw)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", raw, err)
		}
		if len(got) != 0 {
			t.Errorf("Parse(%q): expected no intervals, got %v", raw, got)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	p := NewParser(clock.DefaultBusinessHours)

	tests := []struct {
		raw  string
		want error
	}{
		{"08:00", ErrMalformedInterval},
		{"8am-12pm", ErrMalformedInterval},
		{"08:00-25:00", ErrMalformedInterval},
		{"12:00-08:00", ErrInvertedInterval},
		{"10:00-10:00", ErrInvertedInterval},
		{"07:30-09:00", ErrOutOfBusinessHours},
		{"17:00-18:30", ErrOutOfBusinessHours},
		{"08:00-12:00,bogus", ErrMalformedInterval},
	}
	for _, tt := range tests {
		_, err := p.Parse(tt.raw)
		if !errors.Is(err, tt.want) {
			t.Errorf("Parse(%q): expected %v, got %v", tt.raw, tt.want, err)
		}
	}
}

func TestParse_KeepsOverlaps(t *testing.T) {
	p := NewParser(clock.DefaultBusinessHours)
	got, err := p.Parse("09:00-11:00,10:00-12:00,09:00-11:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected declared intervals to be kept, got %v", got)
	}
}

func TestContains_Inclusive(t *testing.T) {
	intervals := []Interval{
		{Start: clock.At(8, 0), End: clock.At(12, 0)},
		{Start: clock.At(14, 0), End: clock.At(18, 0)},
	}

	tests := []struct {
		tod  clock.TimeOfDay
		want bool
	}{
		{clock.At(8, 0), true},
		{clock.At(12, 0), true},
		{clock.At(12, 1), false},
		{clock.At(13, 59), false},
		{clock.At(14, 0), true},
		{clock.At(18, 0), true},
		{clock.At(7, 59), false},
	}
	for _, tt := range tests {
		if got := Contains(intervals, tt.tod); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.tod, got, tt.want)
		}
	}

	if Contains(nil, clock.At(9, 0)) {
		t.Error("expected no containment for empty schedule")
	}
}

func TestMerge(t *testing.T) {
	in := []Interval{
		{Start: clock.At(14, 0), End: clock.At(16, 0)},
		{Start: clock.At(8, 0), End: clock.At(10, 0)},
		{Start: clock.At(9, 0), End: clock.At(12, 0)},
		{Start: clock.At(16, 0), End: clock.At(18, 0)},
	}
	got := Merge(in)

	if want := "08:00-12:00,14:00-18:00"; Format(got) != want {
		t.Errorf("expected %s, got %s", want, Format(got))
	}
	if in[0].Start != clock.At(14, 0) {
		t.Error("input was modified")
	}
	if Merge(nil) != nil {
		t.Error("expected nil for empty input")
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	p := NewParser(clock.DefaultBusinessHours)
	intervals, err := p.Parse("8:00-12:00, 14:00-17:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Format(intervals); got != "08:00-12:00,14:00-17:30" {
		t.Errorf("unexpected canonical form %q", got)
	}
}
