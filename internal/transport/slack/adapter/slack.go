package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	logx "replywatch/pkg/logx"

	kit "replywatch/internal/transport"
)

var ErrNoToken = errors.New("slack token is empty (set slack.token or SLACK_BOT_TOKEN)")

type Config struct {
	Token      string
	RatePerSec int
	// APIURL overrides the Slack Web API base (tests). Must end with "/".
	APIURL string
	// HTTPTimeout bounds each API call. 0 means 15s.
	HTTPTimeout time.Duration
}

// Adapter implements transport.Platform on top of the Slack Web API.
type Adapter struct {
	cfg     Config
	log     logx.Logger
	api     *slack.Client
	limiter *rate.Limiter
}

var _ kit.Platform = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrNoToken
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	opts := []slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout})}
	if u := strings.TrimSpace(cfg.APIURL); u != "" {
		opts = append(opts, slack.OptionAPIURL(u))
	}
	return &Adapter{
		cfg: cfg,
		log: log,
		api: slack.New(cfg.Token, opts...),
		// Slack tier 3 methods allow ~50/min; keep a small burst so a cycle's
		// first few calls are not delayed.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}, nil
}

func (a *Adapter) wait(ctx context.Context) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("slack rate limiter: %w", err)
	}
	return nil
}

func (a *Adapter) ListChannels(ctx context.Context) ([]kit.Channel, error) {
	var (
		out    []kit.Channel
		cursor string
		pages  int
	)
	for {
		if err := a.wait(ctx); err != nil {
			return out, err
		}
		chans, next, err := a.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Cursor:          cursor,
			ExcludeArchived: true,
			Limit:           200,
			Types:           []string{"public_channel", "private_channel"},
		})
		if err != nil {
			return out, fmt.Errorf("conversations.list: %w", describe(err))
		}
		pages++
		for _, ch := range chans {
			if !ch.IsMember {
				continue
			}
			name := ch.Name
			if name == "" {
				name = ch.NameNormalized
			}
			if name == "" {
				name = ch.ID
			}
			out = append(out, kit.Channel{ID: ch.ID, Name: name, IsPrivate: ch.IsPrivate})
		}
		if next == "" {
			break
		}
		cursor = next
	}
	a.log.Debug("channels listed", logx.Int("channels", len(out)), logx.Int("pages", pages))
	return out, nil
}

func (a *Adapter) History(ctx context.Context, channelID string, limit int) ([]kit.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := a.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("conversations.history %s: %w", channelID, describe(err))
	}
	out := make([]kit.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		at, err := ParseTS(m.Timestamp)
		if err != nil {
			a.log.Debug("skipping message with bad ts", logx.String("channel", channelID), logx.String("ts", m.Timestamp))
			continue
		}
		out = append(out, kit.Message{
			TS:      m.Timestamp,
			At:      at,
			UserID:  m.User,
			BotID:   m.BotID,
			SubType: m.SubType,
			Text:    m.Text,
		})
	}
	return out, nil
}

func (a *Adapter) SendDirect(ctx context.Context, userID, text string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	ch, _, _, err := a.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return fmt.Errorf("conversations.open %s: %w", userID, describe(err))
	}
	if ch == nil || ch.ID == "" {
		return fmt.Errorf("conversations.open %s: no channel returned", userID)
	}
	return a.PostText(ctx, ch.ID, text)
}

func (a *Adapter) PostText(ctx context.Context, channelID, text string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	if _, _, err := a.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("chat.postMessage %s: %w", channelID, describe(err))
	}
	return nil
}

// describe adds the retry hint to rate-limit errors; other errors pass through.
func describe(err error) error {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return fmt.Errorf("rate limited (retry after %s): %w", rl.RetryAfter, err)
	}
	return err
}
