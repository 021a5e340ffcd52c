// Package notify sends overdue-reply reminders to channel owners.
//
// Repeat reminders for the same client message can be spaced out: the last
// delivered reminder is looked up in the ledger, so the spacing survives restarts.
// Each reminder is attempted once per cycle; the next cycle is the retry.
package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"replywatch/internal/storage"
	logx "replywatch/pkg/logx"
)

// Sender delivers a direct message. transport.Platform satisfies it.
type Sender interface {
	SendDirect(ctx context.Context, userID, text string) error
}

// Config controls delivery. Zero values take defaults.
type Config struct {
	SendTimeout time.Duration
}

// Policy is taken from the per-cycle config snapshot.
type Policy struct {
	Template string
	// Every suppresses a repeat reminder for the same client message. 0 reminds every cycle.
	Every time.Duration
}

// Reminder describes one overdue channel.
type Reminder struct {
	CycleID      string
	ChannelID    string
	ChannelName  string
	OwnerID      string
	ClientID     string
	ClientAt     time.Time
	ElapsedHours float64
	Threshold    float64
}

type Outcome int

const (
	Sent Outcome = iota
	Suppressed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case Suppressed:
		return "suppressed"
	default:
		return "failed"
	}
}

type HistoryItem struct {
	At        time.Time
	ChannelID string
	OwnerID   string
	Text      string
}

const historyCap = 300

var ErrNoOwner = errors.New("reminder has no owner")

type Service struct {
	sender Sender
	store  storage.Store
	log    logx.Logger
	now    func() time.Time

	mu  sync.Mutex
	cfg Config

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender Sender, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if store == nil {
		store = storage.NewMemory()
	}
	s := &Service{sender: sender, store: store, log: log, now: time.Now}
	s.Apply(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

var rePlaceholder = regexp.MustCompile(`\{([a-z_0-9]*)\}`)

// Positional slots ({} or {0}, {1}) are the channel ID and the hours, in that order.
var positional = []string{"channel", "hours"}

func placeholderName(raw string, next *int) (string, bool) {
	switch raw {
	case "":
		if *next >= len(positional) {
			return "", false
		}
		name := positional[*next]
		*next++
		return name, true
	case "0", "1":
		i, _ := strconv.Atoi(raw)
		return positional[i], true
	case "channel", "channel_name", "hours", "owner":
		return raw, true
	}
	return "", false
}

// ValidateTemplate rejects placeholders Render would leave in the text.
func ValidateTemplate(tmpl string) error {
	next := 0
	for _, m := range rePlaceholder.FindAllStringSubmatch(tmpl, -1) {
		if _, ok := placeholderName(m[1], &next); !ok {
			return fmt.Errorf("unknown placeholder %s (use {channel} {channel_name} {hours} {owner})", m[0])
		}
	}
	return nil
}

// Render fills the reminder template.
func Render(tmpl string, r Reminder) string {
	next := 0
	return rePlaceholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name, ok := placeholderName(m[1:len(m)-1], &next)
		if !ok {
			return m
		}
		switch name {
		case "channel":
			return r.ChannelID
		case "channel_name":
			return r.ChannelName
		case "hours":
			return strconv.FormatFloat(r.ElapsedHours, 'f', 1, 64)
		default:
			return r.OwnerID
		}
	})
}

// DedupKey identifies a client message across cycles.
func DedupKey(r Reminder) string {
	id := r.ClientID
	if id == "" {
		id = strconv.FormatInt(r.ClientAt.UnixMicro(), 10)
	}
	return "remind|" + r.ChannelID + "|" + id
}

// Remind delivers r unless a previous reminder for the same client message
// is still inside the suppression window. Ledger failures are logged only.
func (s *Service) Remind(ctx context.Context, r Reminder, p Policy) (Outcome, error) {
	if strings.TrimSpace(r.OwnerID) == "" {
		return Failed, ErrNoOwner
	}
	log := s.log.With(
		logx.String("cycle", r.CycleID),
		logx.String("channel", r.ChannelName),
		logx.String("owner", r.OwnerID),
	)
	key := DedupKey(r)
	now := s.now()

	if p.Every > 0 {
		last, ok, err := s.store.LastReminded(ctx, key)
		switch {
		case err != nil:
			log.Warn("ledger lookup failed; sending anyway", logx.Err(err))
		case ok && now.Before(last.Add(p.Every)):
			log.Debug("reminder suppressed", logx.Time("last", last), logx.Time("next", last.Add(p.Every)))
			return Suppressed, nil
		}
	}

	text := Render(p.Template, r)
	err := s.send(ctx, r.OwnerID, text)

	entry := storage.ReminderEntry{
		At:           now,
		Key:          key,
		CycleID:      r.CycleID,
		ChannelID:    r.ChannelID,
		ChannelName:  r.ChannelName,
		OwnerID:      r.OwnerID,
		ClientAt:     r.ClientAt,
		ElapsedHours: r.ElapsedHours,
		Threshold:    r.Threshold,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if lerr := s.store.AppendReminder(ctx, entry); lerr != nil && !errors.Is(lerr, storage.ErrDisabled) {
		log.Warn("reminder ledger append failed", logx.Err(lerr))
	}
	if err != nil {
		log.Error("reminder send failed", logx.Err(err))
		return Failed, err
	}

	s.appendHistory(HistoryItem{At: now, ChannelID: r.ChannelID, OwnerID: r.OwnerID, Text: text})
	log.Info("reminder sent", logx.Float64("hours", r.ElapsedHours))
	return Sent, nil
}

func (s *Service) send(ctx context.Context, userID, text string) error {
	if s.sender == nil {
		return errors.New("no sender configured")
	}
	s.mu.Lock()
	timeout := s.cfg.SendTimeout
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.sender.SendDirect(callCtx, userID, text)
}

// History returns the most recent reminders, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Service) appendHistory(x HistoryItem) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, x)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
}
