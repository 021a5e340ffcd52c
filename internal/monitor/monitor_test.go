package monitor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"replywatch/internal/classify"
	"replywatch/internal/notify"
	"replywatch/internal/owners"
	"replywatch/internal/report"
	"replywatch/internal/transport"
	logx "replywatch/pkg/logx"
)

type fakePlatform struct {
	channels  []transport.Channel
	history   map[string][]transport.Message
	failFetch map[string]bool
	listErr   error

	mu     sync.Mutex
	dms    []string
	limits []int
}

func (f *fakePlatform) ListChannels(context.Context) ([]transport.Channel, error) {
	return f.channels, f.listErr
}

func (f *fakePlatform) History(_ context.Context, id string, limit int) ([]transport.Message, error) {
	f.mu.Lock()
	f.limits = append(f.limits, limit)
	f.mu.Unlock()
	if f.failFetch[id] {
		return nil, errors.New("not_in_channel")
	}
	return f.history[id], nil
}

func (f *fakePlatform) SendDirect(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms = append(f.dms, userID+":"+text)
	return nil
}

func (f *fakePlatform) PostText(context.Context, string, string) error { return nil }

type memRecorder struct{ rows []report.Row }

func (r *memRecorder) Append(row report.Row) error {
	r.rows = append(r.rows, row)
	return nil
}

// Friday 2026-10-16 14:00 UTC, inside 08:00-17:00 business hours.
var now = time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)

func msg(user, text string, ago time.Duration) transport.Message {
	at := now.Add(-ago)
	return transport.Message{TS: at.Format("150405"), At: at, UserID: user, Text: text}
}

func testSnapshot() Snapshot {
	return Snapshot{
		Policy: classify.Policy{
			Window: classify.Window{
				Start:    classify.Clock(8 * time.Hour),
				End:      classify.Clock(17 * time.Hour),
				Location: time.UTC,
				Days:     classify.Weekdays,
			},
			Thresholds: classify.Thresholds{Business: 4, Overall: 24},
		},
		Owners:       owners.New(map[string]string{"C0AAAAAAA": "UOWN1", "client-beta": "UOWN2"}),
		Team:         map[string]struct{}{"UOWN1": {}, "UOWN2": {}, "UTEAM": {}},
		HistoryLimit: 50,
		Location:     time.UTC,
		Remind:       notify.Policy{Template: "<#{channel}> {hours}h"},
	}
}

func newTestMonitor(p *fakePlatform, rec Recorder) *Monitor {
	n := notify.New(notify.Config{}, p, nil, logx.Nop())
	m := New(p, rec, n, logx.Nop())
	m.now = func() time.Time { return now }
	m.newID = func() string { return "cycle-1" }
	return m
}

func TestRunCycleClassifiesAndReminds(t *testing.T) {
	t.Parallel()
	p := &fakePlatform{
		channels: []transport.Channel{
			{ID: "C0AAAAAAA", Name: "client-acme"},
			{ID: "C0BBBBBBB", Name: "client-beta"},
			{ID: "C0CCCCCCC", Name: "client-gamma"},
			{ID: "C0DDDDDDD", Name: "internal-only"},
			{ID: "C0EEEEEEE", Name: "broken"},
		},
		history: map[string][]transport.Message{
			// overdue, owner by id
			"C0AAAAAAA": {msg("UCLIENT", "hello?", 5*time.Hour)},
			// answered; newest first like the API returns
			"C0BBBBBBB": {msg("UTEAM", "on it", time.Hour), msg("UCLIENT", "need help", 2*time.Hour)},
			// overdue, no owner
			"C0CCCCCCC": {msg("UCLIENT", "ping", 6*time.Hour)},
			// team and housekeeping only
			"C0DDDDDDD": {
				msg("UTEAM", "note", time.Hour),
				{SubType: "channel_join", UserID: "UCLIENT", At: now.Add(-time.Hour)},
				{BotID: "B1", Text: "bot says hi", At: now.Add(-time.Hour)},
			},
		},
		failFetch: map[string]bool{"C0EEEEEEE": true},
	}
	rec := &memRecorder{}
	m := newTestMonitor(p, rec)

	rep, err := m.RunCycle(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	want := CycleReport{
		CycleID: "cycle-1", Channels: 5, Evaluated: 3, Skipped: 1, Failed: 1,
		Answered: 1, Remind: 2, Reminded: 1, NoOwner: 1,
	}
	rep.Took = 0
	if rep != want {
		t.Fatalf("report = %+v\nwant     %+v", rep, want)
	}

	if len(p.dms) != 1 || p.dms[0] != "UOWN1:<#C0AAAAAAA> 5.0h" {
		t.Fatalf("dms = %v", p.dms)
	}
	if len(rec.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rec.rows))
	}
	for _, l := range p.limits {
		if l != 50 {
			t.Fatalf("history limit = %d, want 50", l)
		}
	}
	beta := rec.rows[1]
	if beta.ChannelName != "client-beta" || beta.C.Status != classify.StatusAnswered || beta.C.ElapsedHours != 1 {
		t.Fatalf("beta row = %+v", beta)
	}
}

func TestRunCycleListFailure(t *testing.T) {
	t.Parallel()
	p := &fakePlatform{listErr: errors.New("invalid_auth")}
	if _, err := newTestMonitor(p, nil).RunCycle(context.Background(), testSnapshot()); err == nil {
		t.Fatal("expected list error")
	}
}

func TestRunCycleStopsOnCancel(t *testing.T) {
	t.Parallel()
	p := &fakePlatform{channels: []transport.Channel{{ID: "C0AAAAAAA", Name: "a"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := newTestMonitor(p, nil).RunCycle(ctx, testSnapshot())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if rep.Evaluated != 0 {
		t.Fatalf("evaluated = %d", rep.Evaluated)
	}
}

func TestBotOnlyMessagesAreNotReplies(t *testing.T) {
	t.Parallel()
	p := &fakePlatform{
		channels: []transport.Channel{{ID: "C0AAAAAAA", Name: "client-acme"}},
		history: map[string][]transport.Message{"C0AAAAAAA": {
			{TS: "2", BotID: "B1", Text: "auto-reply", At: now.Add(-4 * time.Hour)},
			msg("UCLIENT", "hello?", 5*time.Hour),
		}},
	}
	rec := &memRecorder{}
	rep, err := newTestMonitor(p, rec).RunCycle(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rep.Remind != 1 || rec.rows[0].C.Answered() {
		t.Fatalf("bot message must not count as a reply: %+v", rec.rows[0].C)
	}
}

func TestDebugLogNamesBotSenders(t *testing.T) {
	t.Parallel()
	p := &fakePlatform{
		channels: []transport.Channel{{ID: "C0AAAAAAA", Name: "client-acme", IsPrivate: true}},
		history: map[string][]transport.Message{"C0AAAAAAA": {
			{TS: "2", BotID: "B1", Text: "auto-reply", At: now.Add(-4 * time.Hour)},
			msg("UCLIENT", "hello?", 5*time.Hour),
		}},
	}
	var buf bytes.Buffer
	m := New(p, nil, nil, logx.NewWriter(&buf, logx.LevelDebug))
	m.now = func() time.Time { return now }
	if _, err := m.RunCycle(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"user":"B1"`, `"user":"UCLIENT"`, `"private":true`, `"owners":2`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s:\n%s", want, out)
		}
	}
}

func TestCapText(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("é", 100)
	got := capText(long, 80)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 83 {
		t.Fatalf("capText len = %d", len([]rune(got)))
	}
	if capText("short", 80) != "short" {
		t.Fatal("short text should be unchanged")
	}
}
