package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day expressed as an offset from local midnight.
type Clock time.Duration

var reClock = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})(?::(\d{2}))?\s*$`)

// ParseClock parses "HH:MM" or "HH:MM:SS" (24h).
func ParseClock(raw string) (Clock, error) {
	m := reClock.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", raw)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	ss := 0
	if m[3] != "" {
		ss, _ = strconv.Atoi(m[3])
	}
	if hh > 23 || mm > 59 || ss > 59 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	return Clock(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second), nil
}

func (c Clock) String() string {
	d := time.Duration(c)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func clockOf(t time.Time) Clock {
	h, m, s := t.Clock()
	return Clock(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond()))
}

// WeekdaySet is a bitset of active weekdays.
type WeekdaySet uint8

const (
	AllDays  WeekdaySet = 0x7f
	Weekdays WeekdaySet = 1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday | 1<<time.Friday
)

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << d
	}
	return s
}

func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<d) != 0 }

func (s WeekdaySet) String() string {
	var parts []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			parts = append(parts, strings.ToLower(d.String()[:3]))
		}
	}
	return strings.Join(parts, ",")
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekdays accepts names like "mon", "Tuesday". Empty input yields Monday..Friday.
func ParseWeekdays(names []string) (WeekdaySet, error) {
	if len(names) == 0 {
		return Weekdays, nil
	}
	var s WeekdaySet
	for _, n := range names {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown weekday %q", n)
		}
		s |= 1 << d
	}
	return s, nil
}

// Window is a weekly business-hours window in a fixed timezone.
// Start is inclusive and End is exclusive. Start == End is an empty window.
// If End < Start the window wraps past midnight; the weekday is always that of
// the instant being tested.
type Window struct {
	Start    Clock
	End      Clock
	Location *time.Location
	Days     WeekdaySet
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if !w.Days.Has(local.Weekday()) {
		return false
	}
	c := clockOf(local)
	switch {
	case w.Start == w.End:
		return false
	case w.Start < w.End:
		return c >= w.Start && c < w.End
	default:
		return c >= w.Start || c < w.End
	}
}
