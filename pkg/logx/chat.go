package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	chatQueueSize   = 256
	chatMaxLen      = 3500
	chatMaxField    = 600
	chatPostTimeout = 10 * time.Second
)

// chatSink is a zerolog.LevelWriter that forwards records to a Slack channel
// from a single background goroutine. Writes never block; records above the
// rate limit or beyond the queue are dropped.
type chatSink struct {
	mu      sync.Mutex
	poster  Poster
	channel string
	min     zerolog.Level
	limiter *rate.Limiter
	closed  bool

	queue  chan string
	ctx    context.Context
	cancel context.CancelFunc
	start  sync.Once
	done   chan struct{}
}

func newChatSink(p Poster) *chatSink {
	ctx, cancel := context.WithCancel(context.Background())
	return &chatSink{
		poster:  p,
		min:     zerolog.WarnLevel,
		limiter: rate.NewLimiter(1, 1),
		queue:   make(chan string, chatQueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (c *chatSink) setPoster(p Poster) {
	c.mu.Lock()
	c.poster = p
	c.mu.Unlock()
}

func (c *chatSink) configure(cfg SlackConfig) {
	rps := max(1, cfg.RatePerSec)
	c.mu.Lock()
	c.channel = strings.TrimSpace(cfg.Channel)
	c.min = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	closed := c.closed
	c.mu.Unlock()

	if !cfg.Enabled || closed {
		return
	}
	if strings.TrimSpace(cfg.Channel) == "" {
		fmt.Fprintln(os.Stderr, "logx: slack logging enabled but logging.slack.channel is empty")
	}
	c.start.Do(func() { go c.run() })
}

func (c *chatSink) Write(p []byte) (int, error) {
	return c.WriteLevel(zerolog.InfoLevel, p)
}

func (c *chatSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	c.mu.Lock()
	skip := c.channel == "" || level < c.min || !c.limiter.Allow()
	c.mu.Unlock()
	if skip {
		return len(p), nil
	}
	if line := chatLine(p); line != "" {
		select {
		case c.queue <- line:
		default:
		}
	}
	return len(p), nil
}

func (c *chatSink) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case line := <-c.queue:
			c.mu.Lock()
			ch, poster := c.channel, c.poster
			c.mu.Unlock()
			if ch == "" || poster == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(c.ctx, chatPostTimeout)
			_ = poster.PostText(ctx, ch, line)
			cancel()
		}
	}
}

func (c *chatSink) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	// never started: nothing to wait for
	c.start.Do(func() { close(c.done) })
	<-c.done
}

// chatLine turns a JSON record into "[LEVEL] message" followed by one
// "- key=value" line per remaining field, keys sorted.
func chatLine(p []byte) string {
	raw := strings.TrimSpace(string(p))
	var rec map[string]any
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return clip(raw, chatMaxLen)
	}

	var b strings.Builder
	if lvl, _ := rec[zerolog.LevelFieldName].(string); lvl != "" {
		fmt.Fprintf(&b, "[%s] ", strings.ToUpper(lvl))
	}
	msg, _ := rec[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	delete(rec, zerolog.LevelFieldName)
	delete(rec, zerolog.MessageFieldName)
	delete(rec, zerolog.TimestampFieldName)
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s=%s", k, clip(fmt.Sprint(rec[k]), chatMaxField))
	}
	return clip(b.String(), chatMaxLen)
}

// clip limits s to n bytes, cutting on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
