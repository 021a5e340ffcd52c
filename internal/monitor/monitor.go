// Package monitor drives one polling cycle: fetch every channel, classify it,
// record the outcome and remind the owner when a reply is overdue.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"replywatch/internal/classify"
	"replywatch/internal/notify"
	"replywatch/internal/report"
	"replywatch/internal/transport"
	logx "replywatch/pkg/logx"
)

// Recorder persists one evaluated channel. *report.Writer satisfies it.
type Recorder interface {
	Append(r report.Row) error
}

// Reminder dispatches an overdue reminder. *notify.Service satisfies it.
type Reminder interface {
	Remind(ctx context.Context, r notify.Reminder, p notify.Policy) (notify.Outcome, error)
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	CycleID    string        `json:"cycle_id"`
	Channels   int           `json:"channels"`
	Evaluated  int           `json:"evaluated"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Answered   int           `json:"answered"`
	Waiting    int           `json:"waiting"`
	Remind     int           `json:"remind"`
	Reminded   int           `json:"reminded"`
	Suppressed int           `json:"suppressed"`
	NoOwner    int           `json:"no_owner"`
	Took       time.Duration `json:"took"`
}

// ignoredSubtypes are channel housekeeping events, never client or team messages.
var ignoredSubtypes = map[string]struct{}{
	"channel_join":    {},
	"channel_leave":   {},
	"bot_message":     {},
	"channel_topic":   {},
	"channel_purpose": {},
	"channel_name":    {},
}

const debugTextMax = 80

type Monitor struct {
	platform transport.Platform
	recorder Recorder
	reminder Reminder
	log      logx.Logger

	now   func() time.Time
	newID func() string
}

func New(p transport.Platform, rec Recorder, rem Reminder, log logx.Logger) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{
		platform: p,
		recorder: rec,
		reminder: rem,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// RunCycle evaluates every channel the bot belongs to. Per-channel failures are
// logged and counted; only a failed channel listing or cancellation aborts.
func (m *Monitor) RunCycle(ctx context.Context, snap Snapshot) (CycleReport, error) {
	start := time.Now()
	rep := CycleReport{CycleID: m.newID()}
	log := m.log.With(logx.String("cycle", rep.CycleID))

	channels, err := m.platform.ListChannels(ctx)
	if err != nil {
		rep.Took = time.Since(start)
		return rep, fmt.Errorf("list channels: %w", err)
	}
	rep.Channels = len(channels)
	log.Info("cycle started", logx.Int("channels", len(channels)), logx.Int("owners", snap.Owners.Len()))

	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			rep.Took = time.Since(start)
			return rep, err
		}
		chLog := log.With(logx.String("channel", ch.Name), logx.String("channel_id", ch.ID), logx.Bool("private", ch.IsPrivate))
		m.evaluate(ctx, chLog, snap, ch, &rep)
	}

	rep.Took = time.Since(start)
	log.Info("cycle finished",
		logx.Int("evaluated", rep.Evaluated),
		logx.Int("skipped", rep.Skipped),
		logx.Int("failed", rep.Failed),
		logx.Int("answered", rep.Answered),
		logx.Int("waiting", rep.Waiting),
		logx.Int("remind", rep.Remind),
		logx.Int("reminded", rep.Reminded),
		logx.Int("suppressed", rep.Suppressed),
		logx.Duration("took", rep.Took),
	)
	return rep, nil
}

func (m *Monitor) evaluate(ctx context.Context, log logx.Logger, snap Snapshot, ch transport.Channel, rep *CycleReport) {
	raw, err := m.platform.History(ctx, ch.ID, snap.HistoryLimit)
	if err != nil {
		rep.Failed++
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("fetch history failed", logx.Err(err))
		return
	}

	msgs := m.convert(log, snap, raw)
	owner, hasOwner := snap.Owners.Resolve(ch.ID, ch.Name)
	st := classify.ChannelState{ChannelID: ch.ID, ChannelName: ch.Name, OwnerID: owner, Messages: msgs}

	c, ok := classify.Classify(st, m.now(), snap.Policy)
	if !ok {
		rep.Skipped++
		log.Info("no client message; skipping")
		return
	}
	rep.Evaluated++

	fields := []logx.Field{
		logx.String("status", string(c.Status)),
		logx.Float64("hours", round2(c.ElapsedHours)),
		logx.Time("client_at", c.ClientAt.In(snap.Location)),
	}
	switch c.Status {
	case classify.StatusAnswered:
		rep.Answered++
		log.Info("client message answered", fields...)
	case classify.StatusWaiting:
		rep.Waiting++
		log.Info("client message waiting", append(fields, logx.Float64("threshold", c.Threshold), logx.Bool("business", c.BusinessWindow))...)
	case classify.StatusRemind:
		rep.Remind++
		log.Warn("client message overdue", append(fields, logx.Float64("threshold", c.Threshold), logx.Bool("business", c.BusinessWindow))...)
	}

	if m.recorder != nil {
		if err := m.recorder.Append(report.Row{ChannelName: ch.Name, ChannelID: ch.ID, C: c}); err != nil {
			log.Error("report append failed", logx.Err(err))
		}
	}

	if c.Status != classify.StatusRemind {
		return
	}
	if !hasOwner {
		rep.NoOwner++
		log.Warn("no owner configured; reminder not sent")
		return
	}
	if m.reminder == nil {
		return
	}
	out, err := m.reminder.Remind(ctx, notify.Reminder{
		CycleID:      rep.CycleID,
		ChannelID:    ch.ID,
		ChannelName:  ch.Name,
		OwnerID:      owner,
		ClientID:     c.ClientID,
		ClientAt:     c.ClientAt,
		ElapsedHours: c.ElapsedHours,
		Threshold:    c.Threshold,
	}, snap.Remind)
	switch {
	case err != nil:
		// notify already logged the failure.
	case out == notify.Sent:
		rep.Reminded++
	case out == notify.Suppressed:
		rep.Suppressed++
	}
}

// convert drops housekeeping and bot-only messages and tags team members.
func (m *Monitor) convert(log logx.Logger, snap Snapshot, raw []transport.Message) []classify.Message {
	out := make([]classify.Message, 0, len(raw))
	for _, msg := range raw {
		sender := msg.UserID
		if sender == "" {
			sender = msg.BotID
		}
		log.Debug("message",
			logx.String("ts", msg.TS),
			logx.String("user", orUnknown(sender)),
			logx.String("subtype", msg.SubType),
			logx.String("text", capText(msg.Text, debugTextMax)),
		)
		if _, skip := ignoredSubtypes[msg.SubType]; skip || msg.UserID == "" {
			continue
		}
		internal := snap.isTeam(msg.UserID)
		out = append(out, classify.Message{
			ID:       msg.TS,
			SenderID: msg.UserID,
			Internal: internal,
			Text:     msg.Text,
			At:       msg.At,
		})
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func capText(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

func round2(h float64) float64 {
	return float64(int64(h*100+0.5)) / 100
}
