package classify

import (
	"testing"
	"time"
)

func TestWindowContains(t *testing.T) {
	t.Parallel()
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	w := Window{Start: Clock(9 * time.Hour), End: Clock(18 * time.Hour), Location: ny, Days: Weekdays}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "start inclusive", at: time.Date(2026, 10, 16, 9, 0, 0, 0, ny), want: true},
		{name: "just before start", at: time.Date(2026, 10, 16, 8, 59, 59, 0, ny), want: false},
		{name: "friday 17:59", at: time.Date(2026, 10, 16, 17, 59, 0, 0, ny), want: true},
		{name: "end exclusive", at: time.Date(2026, 10, 16, 18, 0, 0, 0, ny), want: false},
		{name: "saturday midnight", at: time.Date(2026, 10, 17, 0, 0, 0, 0, ny), want: false},
		{name: "saturday noon", at: time.Date(2026, 10, 17, 12, 0, 0, 0, ny), want: false},
		{name: "monday noon", at: time.Date(2026, 10, 19, 12, 0, 0, 0, ny), want: true},
		// 13:30 UTC on a Friday in October is 09:30 in New York.
		{name: "converted from utc", at: time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC), want: true},
		// 02:00 UTC Saturday is still Friday 22:00 in New York: outside by clock, not by day.
		{name: "utc saturday is local friday night", at: time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.at); got != tt.want {
				t.Fatalf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestWindowWrapsMidnight(t *testing.T) {
	t.Parallel()
	w := Window{Start: Clock(22 * time.Hour), End: Clock(6 * time.Hour), Location: time.UTC, Days: AllDays}
	if !w.Contains(time.Date(2026, 10, 16, 23, 0, 0, 0, time.UTC)) {
		t.Fatal("23:00 should be inside overnight window")
	}
	if !w.Contains(time.Date(2026, 10, 17, 5, 59, 0, 0, time.UTC)) {
		t.Fatal("05:59 should be inside overnight window")
	}
	if w.Contains(time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)) {
		t.Fatal("06:00 should be outside overnight window")
	}
}

func TestWindowEmptyWhenStartEqualsEnd(t *testing.T) {
	t.Parallel()
	w := Window{Start: Clock(9 * time.Hour), End: Clock(9 * time.Hour), Location: time.UTC, Days: AllDays}
	for _, at := range []time.Time{
		time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 16, 21, 0, 0, 0, time.UTC),
	} {
		if w.Contains(at) {
			t.Fatalf("Contains(%v) = true, want empty window", at)
		}
	}

	st := ChannelState{Messages: []Message{client(time.Date(2026, 10, 15, 22, 0, 0, 0, time.UTC), "hello")}}
	c, _ := Classify(st, time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC), Policy{
		Window:     w,
		Thresholds: Thresholds{Business: 4, Overall: 24},
	})
	if c.Status != StatusWaiting || c.BusinessWindow || c.Threshold != 24 {
		t.Fatalf("got %s business=%v threshold=%v, want waiting on the overall threshold", c.Status, c.BusinessWindow, c.Threshold)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	c, err := ParseClock("08:30")
	if err != nil {
		t.Fatalf("ParseClock error: %v", err)
	}
	if time.Duration(c) != 8*time.Hour+30*time.Minute {
		t.Fatalf("unexpected clock %v", time.Duration(c))
	}
	if c.String() != "08:30" {
		t.Fatalf("String() = %q", c.String())
	}
	for _, bad := range []string{"24:00", "8", "08:60", "noon"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseWeekdays(t *testing.T) {
	t.Parallel()
	s, err := ParseWeekdays(nil)
	if err != nil || s != Weekdays {
		t.Fatalf("default = %v (%v), want Mon-Fri", s, err)
	}
	s, err = ParseWeekdays([]string{"Sat", "sunday"})
	if err != nil {
		t.Fatalf("ParseWeekdays error: %v", err)
	}
	if !s.Has(time.Saturday) || !s.Has(time.Sunday) || s.Has(time.Monday) {
		t.Fatalf("unexpected set %s", s)
	}
	if s.String() != "sun,sat" {
		t.Fatalf("String() = %q", s.String())
	}
	if _, err := ParseWeekdays([]string{"funday"}); err == nil {
		t.Fatal("expected error for unknown weekday")
	}
}
