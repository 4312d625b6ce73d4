// Package schedule parses and evaluates zone active-hours.
//
// The persisted format is a JSON object:
//
//	{"timezone": "Europe/Berlin", "windows": [{"days": ["mon", "tue"], "start": "22:00", "end": "06:00"}]}
//
// A window whose end is before its start runs past midnight; its days name the day it starts on.
// start == end covers the whole day. No days means every day. Timezone defaults to UTC.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var ErrInvalidSchedule = errors.New("invalid active hours")

const minutesPerDay = 24 * 60

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

type rawSchedule struct {
	Timezone string      `json:"timezone"`
	Windows  []rawWindow `json:"windows"`
}

type rawWindow struct {
	Days  []string `json:"days"`
	Start string   `json:"start"`
	End   string   `json:"end"`
}

type window struct {
	days  [7]bool
	start int // minutes since midnight
	end   int
}

// Schedule is a parsed active-hours expression. The zero value is never active.
type Schedule struct {
	loc     *time.Location
	windows []window
}

// Parse decodes an active-hours expression. An empty or blank string yields nil, nil:
// the zone has no time restriction.
func Parse(s string) (*Schedule, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var raw rawSchedule
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if len(raw.Windows) == 0 {
		return nil, fmt.Errorf("%w: no windows", ErrInvalidSchedule)
	}

	loc := time.UTC
	if raw.Timezone != "" {
		l, err := time.LoadLocation(raw.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidSchedule, raw.Timezone, err)
		}
		loc = l
	}

	sch := &Schedule{loc: loc, windows: make([]window, 0, len(raw.Windows))}
	for i, rw := range raw.Windows {
		w, err := parseWindow(rw)
		if err != nil {
			return nil, fmt.Errorf("%w: window %d: %v", ErrInvalidSchedule, i, err)
		}
		sch.windows = append(sch.windows, w)
	}
	return sch, nil
}

func parseWindow(rw rawWindow) (window, error) {
	var w window
	var err error

	if w.start, err = parseClock(rw.Start); err != nil {
		return w, fmt.Errorf("start: %w", err)
	}
	if w.end, err = parseClock(rw.End); err != nil {
		return w, fmt.Errorf("end: %w", err)
	}

	if len(rw.Days) == 0 {
		for d := range w.days {
			w.days[d] = true
		}
		return w, nil
	}
	for _, name := range rw.Days {
		d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return w, fmt.Errorf("unknown day %q", name)
		}
		w.days[d] = true
	}
	return w, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t falls in any window. A nil schedule contains every instant.
func (s *Schedule) Contains(t time.Time) bool {
	if s == nil {
		return true
	}

	local := t.In(s.loc)
	minute := local.Hour()*60 + local.Minute()
	today := local.Weekday()
	yesterday := (today + 6) % 7

	for _, w := range s.windows {
		switch {
		case w.start == w.end:
			if w.days[today] {
				return true
			}
		case w.start < w.end:
			if w.days[today] && minute >= w.start && minute < w.end {
				return true
			}
		default: // overnight
			if w.days[today] && minute >= w.start {
				return true
			}
			if w.days[yesterday] && minute < w.end {
				return true
			}
		}
	}
	return false
}

// Validate checks an active-hours expression without keeping the result.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}
