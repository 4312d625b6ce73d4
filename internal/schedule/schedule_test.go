package schedule

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

// 2026-10-19 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}

func TestParse_Empty(t *testing.T) {
	for _, in := range []string{"", "   "} {
		s, err := Parse(in)
		if err != nil || s != nil {
			t.Fatalf("Parse(%q) = %v, %v; want nil, nil", in, s, err)
		}
		if !s.Contains(at(19, 3, 0)) {
			t.Error("nil schedule should contain every instant")
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{
		`not json`,
		`{"windows": []}`,
		`{"windows": [{"start": "25:00", "end": "06:00"}]}`,
		`{"windows": [{"start": "08:00", "end": "6pm"}]}`,
		`{"windows": [{"days": ["funday"], "start": "08:00", "end": "09:00"}]}`,
		`{"timezone": "Mars/Olympus", "windows": [{"start": "08:00", "end": "09:00"}]}`,
	} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidSchedule) {
			t.Errorf("Parse(%s) error = %v, want ErrInvalidSchedule", in, err)
		}
	}
}

func TestSchedule_Contains(t *testing.T) {
	tests := []struct {
		name string
		expr string
		at   time.Time
		want bool
	}{
		{"daytime inside", `{"windows":[{"start":"08:00","end":"18:00"}]}`, at(19, 12, 0), true},
		{"daytime at start", `{"windows":[{"start":"08:00","end":"18:00"}]}`, at(19, 8, 0), true},
		{"daytime at end", `{"windows":[{"start":"08:00","end":"18:00"}]}`, at(19, 18, 0), false},
		{"daytime before", `{"windows":[{"start":"08:00","end":"18:00"}]}`, at(19, 7, 59), false},
		{"weekday only on monday", `{"windows":[{"days":["mon"],"start":"08:00","end":"18:00"}]}`, at(19, 9, 0), true},
		{"weekday only on tuesday", `{"windows":[{"days":["mon"],"start":"08:00","end":"18:00"}]}`, at(20, 9, 0), false},
		{"overnight late", `{"windows":[{"days":["mon"],"start":"22:00","end":"06:00"}]}`, at(19, 23, 30), true},
		{"overnight early next day", `{"windows":[{"days":["mon"],"start":"22:00","end":"06:00"}]}`, at(20, 5, 0), true},
		{"overnight early same day", `{"windows":[{"days":["mon"],"start":"22:00","end":"06:00"}]}`, at(19, 5, 0), false},
		{"overnight midday", `{"windows":[{"start":"22:00","end":"06:00"}]}`, at(19, 12, 0), false},
		{"whole day", `{"windows":[{"days":["sun"],"start":"00:00","end":"00:00"}]}`, at(18, 13, 0), true},
		{"second window", `{"windows":[{"start":"01:00","end":"02:00"},{"start":"12:00","end":"13:00"}]}`, at(19, 12, 30), true},
		{"timezone shift", `{"timezone":"Europe/Berlin","windows":[{"start":"08:00","end":"09:00"}]}`, at(19, 6, 30), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := s.Contains(tt.at); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}
