package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // business timezone must resolve on hosts without zoneinfo

	"replywatch/internal/classify"
	"replywatch/internal/notify"
	"replywatch/internal/observability/pprof"
	"replywatch/internal/scheduler"
	"replywatch/internal/storage"
	logx "replywatch/pkg/logx"
)

const (
	DefaultBusinessReplyHours   = 4
	DefaultOverallReplyHours    = 24
	DefaultCheckIntervalMinutes = 10
	DefaultHistoryLimit         = 200
	DefaultSummaryPath          = "logs/response_report.csv"
	DefaultTrailPath            = "logs/trail.log"
	DefaultReminderTemplate     = "Reminder: Client message in <#{channel}> has been waiting {hours} hours for a reply. Please respond."

	TokenEnv      = "SLACK_BOT_TOKEN"
	DebugTokenEnv = "REPLYWATCH_DEBUG_TOKEN"
)

// Resolved is the typed, validated view of a Config. It is immutable once built.
type Resolved struct {
	Location *time.Location
	Policy   classify.Policy

	Owners map[string]string
	Team   map[string]struct{}

	Schedule         string
	RemindEvery      time.Duration
	ReminderTemplate string
	HistoryLimit     int

	SummaryPath string
	TrailPath   string
}

// Resolve applies defaults and validates cfg. Any error here is a config error:
// fatal at startup, rejected on hot reload.
func Resolve(cfg *Config) (*Resolved, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	m := cfg.Monitor
	bh := m.BusinessHours

	tz := strings.TrimSpace(bh.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("monitor.business_hours.timezone: invalid %q: %w", tz, err)
	}

	start, err := classify.ParseClock(orDefault(bh.Start, "08:00"))
	if err != nil {
		return nil, fmt.Errorf("monitor.business_hours.start: %w", err)
	}
	end, err := classify.ParseClock(orDefault(bh.End, "17:00"))
	if err != nil {
		return nil, fmt.Errorf("monitor.business_hours.end: %w", err)
	}

	days, err := classify.ParseWeekdays(bh.Weekdays)
	if err != nil {
		return nil, fmt.Errorf("monitor.business_hours.weekdays: %w", err)
	}
	if len(bh.Weekdays) == 0 && bh.WeekdaysOnly != nil && !*bh.WeekdaysOnly {
		days = classify.AllDays
	}

	business := floatOr(m.BusinessReplyHours, DefaultBusinessReplyHours)
	overall := floatOr(m.OverallReplyHours, DefaultOverallReplyHours)
	if business < 0 || overall < 0 {
		return nil, fmt.Errorf("monitor: reply hours must be >= 0")
	}

	if m.CheckIntervalMinutes < 0 {
		return nil, fmt.Errorf("monitor.check_interval_minutes must be >= 0")
	}
	interval := m.CheckIntervalMinutes
	if interval == 0 {
		interval = DefaultCheckIntervalMinutes
	}
	schedule := strings.TrimSpace(m.Schedule)
	if schedule == "" {
		schedule = fmt.Sprintf("%dm", interval)
	}
	if err := scheduler.Validate(schedule); err != nil {
		return nil, fmt.Errorf("monitor.schedule: %w", err)
	}

	remindEvery, err := ParseDurationField("monitor.remind_every", m.RemindEvery)
	if err != nil {
		return nil, err
	}
	if err := notify.ValidateTemplate(m.ReminderTemplate); err != nil {
		return nil, fmt.Errorf("monitor.reminder_template: %w", err)
	}

	if cfg.Slack.RatePerSec < 0 {
		return nil, fmt.Errorf("slack.rate_per_sec must be >= 0")
	}
	if _, err := ParseDurationField("slack.http_timeout", cfg.Slack.HTTPTimeout); err != nil {
		return nil, err
	}
	limit := cfg.Slack.HistoryLimit
	if limit < 0 {
		return nil, fmt.Errorf("slack.history_limit must be >= 0")
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}

	if cfg.Storage != nil {
		if !storage.ValidDriver(cfg.Storage.Driver) {
			return nil, fmt.Errorf("storage.driver: unknown %q", cfg.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return nil, err
		}
	}

	if d := cfg.Debug; d != nil && d.Enabled {
		if err := pprof.CheckAddr(d.Addr, DebugToken(cfg)); err != nil {
			return nil, fmt.Errorf("debug.addr: %w", err)
		}
	}

	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" && !logx.ValidLevel(lv) {
		return nil, fmt.Errorf("logging.level: unknown %q", lv)
	}
	if lv := strings.TrimSpace(cfg.Logging.Slack.MinLevel); lv != "" && !logx.ValidLevel(lv) {
		return nil, fmt.Errorf("logging.slack.min_level: unknown %q", lv)
	}

	team := make(map[string]struct{}, len(m.TeamMemberIDs))
	for _, id := range m.TeamMemberIDs {
		if id = strings.TrimSpace(id); id != "" {
			team[id] = struct{}{}
		}
	}
	owners := make(map[string]string, len(m.ChannelOwners))
	for k, v := range m.ChannelOwners {
		owners[k] = v
	}

	return &Resolved{
		Location: loc,
		Policy: classify.Policy{
			Window:     classify.Window{Start: start, End: end, Location: loc, Days: days},
			Thresholds: classify.Thresholds{Business: business, Overall: overall},
		},
		Owners:           owners,
		Team:             team,
		Schedule:         schedule,
		RemindEvery:      remindEvery,
		ReminderTemplate: orDefault(m.ReminderTemplate, DefaultReminderTemplate),
		HistoryLimit:     limit,
		SummaryPath:      orDefault(cfg.Reports.SummaryPath, DefaultSummaryPath),
		TrailPath:        orDefault(cfg.Reports.TrailPath, DefaultTrailPath),
	}, nil
}

// SlackToken returns the configured token, falling back to SLACK_BOT_TOKEN.
func SlackToken(cfg *Config) string {
	if cfg != nil {
		if t := strings.TrimSpace(cfg.Slack.Token); t != "" {
			return t
		}
	}
	return strings.TrimSpace(os.Getenv(TokenEnv))
}

// DebugToken returns the configured debug token, falling back to REPLYWATCH_DEBUG_TOKEN.
func DebugToken(cfg *Config) string {
	if cfg != nil && cfg.Debug != nil {
		if t := strings.TrimSpace(cfg.Debug.Token); t != "" {
			return t
		}
	}
	return strings.TrimSpace(os.Getenv(DebugTokenEnv))
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}

// LogConfig converts the logging section for logx.
func (c *Config) LogConfig() logx.Config {
	l := c.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Slack: logx.SlackConfig{
			Enabled:    l.Slack.Enabled,
			Channel:    l.Slack.Channel,
			MinLevel:   l.Slack.MinLevel,
			RatePerSec: l.Slack.RatePerSec,
		},
	}
}

// StoreConfig converts the storage section. A missing section selects the memory driver.
func (c *Config) StoreConfig() storage.Config {
	if c.Storage == nil {
		return storage.Config{}
	}
	busy, _ := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	return storage.Config{Driver: c.Storage.Driver, Path: c.Storage.Path, BusyTimeout: busy}
}

// DebugServerConfig converts the debug section. A missing section disables the server.
func (c *Config) DebugServerConfig() pprof.Config {
	if c.Debug == nil {
		return pprof.Config{}
	}
	return pprof.Config{Enabled: c.Debug.Enabled, Addr: c.Debug.Addr, Token: DebugToken(c)}
}
