package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"replywatch/internal/classify"
)

const sampleYAML = `
slack:
  token: ${REPLYWATCH_TEST_TOKEN}
monitor:
  channel_owners:
    C0123ABCD: UOWNER1
    client-acme: UOWNER2
  team_member_ids: [UOWNER1, UOWNER2, UTEAM3]
  business_hours:
    start: "09:00"
    end: "18:00"
    timezone: America/New_York
    weekdays: [mon, tue, wed, thu, fri]
  business_reply_hours: 4
  overall_reply_hours: 24
  remind_every: 1h
  reminder_template: "Ping <@{owner}>: $5 says #{channel_name} waits {hours}h"
reports:
  summary_path: out/summary.csv
logging:
  level: debug
  console: true
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("REPLYWATCH_TEST_TOKEN", "xoxb-from-env")
	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, res, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Slack.Token != "xoxb-from-env" {
		t.Fatalf("token = %q, want env expansion", cfg.Slack.Token)
	}
	if !strings.Contains(res.ReminderTemplate, "$5") {
		t.Fatalf("bare $ should survive expansion: %q", res.ReminderTemplate)
	}
	if res.Location.String() != "America/New_York" {
		t.Fatalf("Location = %v", res.Location)
	}
	w := res.Policy.Window
	if time.Duration(w.Start) != 9*time.Hour || time.Duration(w.End) != 18*time.Hour {
		t.Fatalf("window = %s-%s", w.Start, w.End)
	}
	if w.Days != classify.Weekdays {
		t.Fatalf("days = %s", w.Days)
	}
	if res.RemindEvery != time.Hour {
		t.Fatalf("RemindEvery = %v", res.RemindEvery)
	}
	if _, ok := res.Team["UTEAM3"]; !ok || len(res.Team) != 3 {
		t.Fatal("team roster not resolved")
	}
	if res.SummaryPath != "out/summary.csv" || res.TrailPath != DefaultTrailPath {
		t.Fatalf("report paths = %q, %q", res.SummaryPath, res.TrailPath)
	}
	if res.Schedule != "10m" || res.HistoryLimit != DefaultHistoryLimit {
		t.Fatalf("defaults not applied: schedule=%q limit=%d", res.Schedule, res.HistoryLimit)
	}
	if m.Snapshot() != res {
		t.Fatal("Snapshot should return committed resolved config")
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()
	res, err := Resolve(&Config{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Policy.Thresholds.Business != 4 || res.Policy.Thresholds.Overall != 24 {
		t.Fatalf("thresholds = %+v", res.Policy.Thresholds)
	}
	if time.Duration(res.Policy.Window.Start) != 8*time.Hour || time.Duration(res.Policy.Window.End) != 17*time.Hour {
		t.Fatalf("window = %s-%s", res.Policy.Window.Start, res.Policy.Window.End)
	}
	if res.Location != time.UTC {
		t.Fatalf("Location = %v", res.Location)
	}
	if res.ReminderTemplate != DefaultReminderTemplate {
		t.Fatalf("template = %q", res.ReminderTemplate)
	}
}

func TestResolveWeekdaysOnlyFalse(t *testing.T) {
	t.Parallel()
	off := false
	res, err := Resolve(&Config{Monitor: MonitorConfig{BusinessHours: BusinessHoursConfig{WeekdaysOnly: &off}}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Policy.Window.Days != classify.AllDays {
		t.Fatalf("days = %s, want all", res.Policy.Window.Days)
	}
}

func TestResolveCheckInterval(t *testing.T) {
	t.Parallel()
	res, err := Resolve(&Config{Monitor: MonitorConfig{CheckIntervalMinutes: 3}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Schedule != "3m" {
		t.Fatalf("Schedule = %q", res.Schedule)
	}
}

func hoursPtr(v float64) *float64 { return &v }

func TestResolveExplicitZeroThresholds(t *testing.T) {
	t.Parallel()
	res, err := Resolve(&Config{Monitor: MonitorConfig{BusinessReplyHours: hoursPtr(0), OverallReplyHours: hoursPtr(0)}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if th := res.Policy.Thresholds; th.Business != 0 || th.Overall != 0 {
		t.Fatalf("thresholds = %+v, want explicit zeros kept", th)
	}

	cfg, err := Decode("config.yaml", []byte("monitor:\n  business_reply_hours: 0\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	res, err = Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if th := res.Policy.Thresholds; th.Business != 0 || th.Overall != DefaultOverallReplyHours {
		t.Fatalf("thresholds = %+v, want business 0 and default overall", th)
	}
}

func TestResolveRejectsMalformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "timezone", cfg: Config{Monitor: MonitorConfig{BusinessHours: BusinessHoursConfig{Timezone: "Mars/Olympus"}}}},
		{name: "start", cfg: Config{Monitor: MonitorConfig{BusinessHours: BusinessHoursConfig{Start: "25:00"}}}},
		{name: "weekday", cfg: Config{Monitor: MonitorConfig{BusinessHours: BusinessHoursConfig{Weekdays: []string{"someday"}}}}},
		{name: "hours", cfg: Config{Monitor: MonitorConfig{OverallReplyHours: hoursPtr(-1)}}},
		{name: "remind_every", cfg: Config{Monitor: MonitorConfig{RemindEvery: "soon"}}},
		{name: "reminder_template", cfg: Config{Monitor: MonitorConfig{ReminderTemplate: "hi {user}"}}},
		{name: "history_limit", cfg: Config{Slack: SlackConfig{HistoryLimit: -5}}},
		{name: "schedule", cfg: Config{Monitor: MonitorConfig{Schedule: "61 * * * *"}}},
		{name: "storage driver", cfg: Config{Storage: &StorageConfig{Driver: "mongo"}}},
		{name: "log level", cfg: Config{Logging: LoggingConfig{Level: "loud"}}},
		{name: "debug addr", cfg: Config{Debug: &DebugConfig{Enabled: true, Addr: "localhost"}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Resolve(&tt.cfg); err == nil {
				t.Fatalf("expected error for bad %s", tt.name)
			}
		})
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	if _, err := Decode("config.yaml", []byte("monitor:\n  owners: {}\n")); err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, err := Decode("config.json", []byte(`{"monitor":{}} {"x":1}`)); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestReloadKeepsPreviousOnInvalid(t *testing.T) {
	p := writeConfig(t, "config.yaml", "monitor:\n  business_reply_hours: 2\n")
	m := NewManager(p)
	if _, _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	if changed, err := m.Reload(); err != nil || changed {
		t.Fatalf("unchanged reload: changed=%v err=%v", changed, err)
	}

	if err := os.WriteFile(p, []byte("monitor:\n  business_hours: {timezone: Nowhere/City}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reload(); err == nil {
		t.Fatal("expected invalid reload to fail")
	}
	if m.Snapshot().Policy.Thresholds.Business != 2 {
		t.Fatal("previous snapshot should be kept")
	}

	if err := os.WriteFile(p, []byte("monitor:\n  business_reply_hours: 6\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	changed, err := m.Reload()
	if err != nil || !changed {
		t.Fatalf("valid reload: changed=%v err=%v", changed, err)
	}
	select {
	case cfg := <-sub:
		if h := cfg.Monitor.BusinessReplyHours; h == nil || *h != 6 {
			t.Fatalf("published %+v", cfg.Monitor)
		}
	default:
		t.Fatal("expected publish to subscriber")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "config.yaml", "monitor:\n  business_reply_hours: 2\n")
	m := NewManager(p)
	m.debounce = 20 * time.Millisecond
	if _, _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(p, []byte("monitor:\n  business_reply_hours: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-sub:
		if h := cfg.Monitor.BusinessReplyHours; h == nil || *h != 3 {
			t.Fatalf("published %+v", cfg.Monitor)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not publish the change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch = %v", err)
	}
}

func TestSlackTokenFallsBackToEnv(t *testing.T) {
	t.Setenv(TokenEnv, " xoxb-env ")
	if got := SlackToken(&Config{}); got != "xoxb-env" {
		t.Fatalf("SlackToken = %q", got)
	}
	if got := SlackToken(&Config{Slack: SlackConfig{Token: "xoxb-cfg"}}); got != "xoxb-cfg" {
		t.Fatalf("SlackToken = %q", got)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("expected negative duration error")
	}
	if d, err := ParseDurationField("x", "90s"); err != nil || d != 90*time.Second {
		t.Fatalf("90s: %v %v", d, err)
	}
}

func TestSectionConversions(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Logging: LoggingConfig{Level: "warn", Slack: LoggingSlack{Enabled: true, Channel: "C0OPS", MinLevel: "error"}},
		Storage: &StorageConfig{Driver: "sqlite", Path: "data/rw.db", BusyTimeout: "2s"},
	}
	lc := cfg.LogConfig()
	if lc.Level != "warn" || !lc.Slack.Enabled || lc.Slack.Channel != "C0OPS" {
		t.Fatalf("LogConfig = %+v", lc)
	}
	sc := cfg.StoreConfig()
	if sc.Driver != "sqlite" || sc.BusyTimeout != 2*time.Second {
		t.Fatalf("StoreConfig = %+v", sc)
	}
	if (&Config{}).StoreConfig().Driver != "" {
		t.Fatal("missing storage section should select memory")
	}
	dc := (&Config{Debug: &DebugConfig{Enabled: true, Addr: "0.0.0.0:7070", Token: "t0k"}}).DebugServerConfig()
	if !dc.Enabled || dc.Addr != "0.0.0.0:7070" || dc.Token != "t0k" {
		t.Fatalf("DebugServerConfig = %+v", dc)
	}
	if (&Config{}).DebugServerConfig().Enabled {
		t.Fatal("missing debug section should disable the server")
	}
}
