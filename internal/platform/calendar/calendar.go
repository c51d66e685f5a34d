// Package calendar derives the time windows and bucket slots used to chart
// record counts. Everything here is pure: callers pass "now" in the location
// the buckets should be cut in.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// TimeFrame selects the chart window.
type TimeFrame string

const (
	Daily   TimeFrame = "daily"
	Weekly  TimeFrame = "weekly"
	Monthly TimeFrame = "monthly"
)

// ParseTimeFrame accepts daily, weekly or monthly (case-insensitive).
func ParseTimeFrame(s string) (TimeFrame, error) {
	switch tf := TimeFrame(strings.ToLower(strings.TrimSpace(s))); tf {
	case Daily, Weekly, Monthly:
		return tf, nil
	case "":
		return "", fmt.Errorf("timeFrame is required (daily, weekly or monthly)")
	default:
		return "", fmt.Errorf("invalid timeFrame %q: must be daily, weekly or monthly", s)
	}
}

// Grain is the width of one bucket.
type Grain int

const (
	Hour Grain = iota
	Day
	Month
)

// Layout is the Go time layout of a bucket key at this grain. Stores must
// produce keys in exactly this shape.
func (g Grain) Layout() string {
	switch g {
	case Hour:
		return "2006-01-02 15"
	case Month:
		return "2006-01"
	default:
		return "2006-01-02"
	}
}

// Key formats t (already in the window's location) as a bucket key.
func (g Grain) Key(t time.Time) string {
	return t.Format(g.Layout())
}

func (g Grain) String() string {
	switch g {
	case Hour:
		return "hour"
	case Month:
		return "month"
	default:
		return "day"
	}
}

// Slot is one fixed bucket of a window.
type Slot struct {
	Key     string
	Label   string
	Start   time.Time
	Date    string
	Weekday string
}

// Window is the inclusive [Start, End] range of a time frame together with
// its ordered slots.
type Window struct {
	Frame    TimeFrame
	Grain    Grain
	Start    time.Time
	End      time.Time
	Location *time.Location
	Slots    []Slot
}

// StartOfDay returns 00:00:00 of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// StartOfWeek returns Monday 00:00 of the ISO week containing t.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// FrameWindow builds the window for tf around now.
func FrameWindow(tf TimeFrame, now time.Time) Window {
	switch tf {
	case Weekly:
		return weekWindow(now)
	case Monthly:
		return yearWindow(now)
	default:
		return dayWindow(now)
	}
}

func dayWindow(now time.Time) Window {
	start := StartOfDay(now)
	w := Window{
		Frame:    Daily,
		Grain:    Hour,
		Start:    start,
		End:      EndOfDay(now),
		Location: now.Location(),
		Slots:    make([]Slot, 0, 24),
	}
	for h := 0; h < 24; h++ {
		// Adding hours to the wall clock keeps DST days at 24 labelled slots.
		at := time.Date(start.Year(), start.Month(), start.Day(), h, 0, 0, 0, start.Location())
		w.Slots = append(w.Slots, Slot{
			Key:   Hour.Key(at),
			Label: at.Format("3 PM"),
			Start: at,
		})
	}
	return w
}

func weekWindow(now time.Time) Window {
	start := StartOfWeek(now)
	w := Window{
		Frame:    Weekly,
		Grain:    Day,
		Start:    start,
		End:      EndOfDay(start.AddDate(0, 0, 6)),
		Location: now.Location(),
		Slots:    make([]Slot, 0, 7),
	}
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		w.Slots = append(w.Slots, Slot{
			Key:     Day.Key(day),
			Label:   day.Weekday().String(),
			Start:   day,
			Date:    day.Format("2006-01-02"),
			Weekday: day.Weekday().String(),
		})
	}
	return w
}

func yearWindow(now time.Time) Window {
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	w := Window{
		Frame:    Monthly,
		Grain:    Month,
		Start:    start,
		End:      EndOfDay(time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, now.Location())),
		Location: now.Location(),
		Slots:    make([]Slot, 0, 12),
	}
	for i := 0; i < 12; i++ {
		month := start.AddDate(0, i, 0)
		w.Slots = append(w.Slots, Slot{
			Key:   Month.Key(month),
			Label: month.Format("Jan"),
			Start: month,
		})
	}
	return w
}

// DateRange parses optional YYYY-MM-DD bounds in loc. from is floored to the
// start of its day and to is ceilinged to the end of its day. Empty strings
// yield nil bounds.
func DateRange(from, to string, loc *time.Location) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if from != "" {
		d, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid fromDate %q: expected YYYY-MM-DD", from)
		}
		s := StartOfDay(d)
		start = &s
	}
	if to != "" {
		d, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid toDate %q: expected YYYY-MM-DD", to)
		}
		e := EndOfDay(d)
		end = &e
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, fmt.Errorf("toDate %s is before fromDate %s", to, from)
	}
	return start, end, nil
}
