package config

type Config struct {
	Slack   SlackConfig    `json:"slack"`
	Monitor MonitorConfig  `json:"monitor"`
	Reports ReportsConfig  `json:"reports"`
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Debug   *DebugConfig   `json:"debug,omitempty"`
}

type SlackConfig struct {
	// Token may be left empty; SLACK_BOT_TOKEN is used instead (never logged).
	Token        string `json:"token,omitempty"`
	RatePerSec   int    `json:"rate_per_sec,omitempty"`
	HistoryLimit int    `json:"history_limit,omitempty"`
	// HTTPTimeout is a Go duration string (e.g. "15s").
	HTTPTimeout string `json:"http_timeout,omitempty"`
}

// MonitorConfig holds everything that drives classification and reminders.
//
// Defaults (when fields are omitted/zero):
//   - business_reply_hours: 4 (only when omitted)
//   - overall_reply_hours: 24 (only when omitted)
//   - check_interval_minutes: 10 (min 1)
//   - schedule: "<check_interval_minutes>m"
//   - remind_every: "0s" (remind on every cycle while overdue)
type MonitorConfig struct {
	// ChannelOwners maps a channel ID or channel name to the owner's user ID.
	ChannelOwners map[string]string `json:"channel_owners"`
	TeamMemberIDs []string          `json:"team_member_ids"`

	BusinessHours BusinessHoursConfig `json:"business_hours"`

	// Reply hours default only when omitted; an explicit 0 reminds on any unanswered message.
	BusinessReplyHours *float64 `json:"business_reply_hours,omitempty"`
	OverallReplyHours  *float64 `json:"overall_reply_hours,omitempty"`

	CheckIntervalMinutes int `json:"check_interval_minutes,omitempty"`
	// Schedule overrides CheckIntervalMinutes: "10m", "00:15", "*/10 8-18 * * 1-5", "cron:...".
	Schedule string `json:"schedule,omitempty"`

	// RemindEvery suppresses repeat reminders for the same client message.
	// Needs a file or sqlite ledger to hold across restarts.
	RemindEvery string `json:"remind_every,omitempty"`

	// ReminderTemplate placeholders: {channel} {channel_name} {hours} {owner};
	// positional {} {} (channel, hours) are accepted for older templates.
	ReminderTemplate string `json:"reminder_template,omitempty"`
}

// BusinessHoursConfig describes the window in which the stricter threshold applies.
//
// Weekdays takes names ("mon".."sun"); if omitted, Monday..Friday is used.
// WeekdaysOnly=false (with Weekdays omitted) enables all seven days.
type BusinessHoursConfig struct {
	Start        string   `json:"start,omitempty"` // default "08:00"
	End          string   `json:"end,omitempty"`   // default "17:00"
	Timezone     string   `json:"timezone,omitempty"`
	Weekdays     []string `json:"weekdays,omitempty"`
	WeekdaysOnly *bool    `json:"weekdays_only,omitempty"`
}

type ReportsConfig struct {
	SummaryPath string `json:"summary_path,omitempty"` // default logs/response_report.csv
	TrailPath   string `json:"trail_path,omitempty"`   // default logs/trail.log
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Slack   LoggingSlack `json:"slack"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingSlack mirrors warnings and errors into an ops channel.
type LoggingSlack struct {
	Enabled    bool   `json:"enabled"`
	Channel    string `json:"channel"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the append-only reminder ledger.
// Drivers: memory (default), file (one JSON object per line at path), sqlite.
//
// Example:
//
//	storage: { driver: sqlite, path: ./data/replywatch.db }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DebugConfig enables the local status and pprof endpoint. Read at startup only.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default 127.0.0.1:6060
	// Token may be left empty for loopback addresses; REPLYWATCH_DEBUG_TOKEN is used as fallback.
	Token string `json:"token,omitempty"`
}
