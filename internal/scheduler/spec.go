package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Spec is a parsed check schedule: exactly one of Cron or Every is set.
//
// Accepted forms:
//   - cron: "*/10 8-18 * * 1-5", "@hourly", "@every 10m", optional leading seconds field
//   - Go duration: "10m", "1h30m"
//   - HH:MM interval: "00:10" is every ten minutes
//
// A "cron:" prefix forces cron; "interval:" or "every:" force an interval.
type Spec struct {
	Cron  string
	Every time.Duration
}

func (s Spec) IsCron() bool { return s.Cron != "" }

func (s Spec) String() string {
	if s.IsCron() {
		return s.Cron
	}
	return "every " + s.Every.String()
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var errEmptySchedule = errors.New("schedule is empty")

// Parse reads raw and checks it fully, including every cron field.
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, errEmptySchedule
	}

	prefix, rest, _ := strings.Cut(s, ":")
	switch strings.ToLower(prefix) {
	case "cron":
		return parseCron(strings.TrimSpace(rest))
	case "interval", "every":
		d, err := parseEvery(rest)
		return Spec{Every: d}, err
	}

	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		return parseCron(s)
	}
	d, err := parseEvery(s)
	if err != nil {
		return Spec{}, fmt.Errorf("schedule %q: use cron like '*/10 * * * *', HH:MM like '00:10' or a duration like '10m'", raw)
	}
	return Spec{Every: d}, nil
}

// Validate reports whether raw is a usable schedule.
func Validate(raw string) error {
	_, err := Parse(raw)
	return err
}

func parseCron(expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, errEmptySchedule
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Spec{}, fmt.Errorf("cron %q: %w", expr, err)
	}
	return Spec{Cron: expr}, nil
}

// parseEvery accepts HH:MM or a Go duration and requires a positive result.
func parseEvery(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errEmptySchedule
	}

	var d time.Duration
	if hh, mm, ok := strings.Cut(v, ":"); ok {
		h, herr := strconv.Atoi(hh)
		m, merr := strconv.Atoi(mm)
		if herr != nil || merr != nil || h < 0 || len(mm) != 2 || m > 59 || m < 0 {
			return 0, fmt.Errorf("interval %q: want HH:MM", v)
		}
		d = time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return 0, fmt.Errorf("interval %q: %w", v, err)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval %q must be positive", v)
	}
	return d, nil
}
