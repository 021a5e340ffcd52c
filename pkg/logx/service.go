package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
	Slack   SlackConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// SlackConfig forwards records at or above MinLevel to an ops channel.
type SlackConfig struct {
	Enabled    bool
	Channel    string
	MinLevel   string
	RatePerSec int
}

// Poster is the chat client used by the Slack sink.
type Poster interface {
	PostText(ctx context.Context, channelID, text string) error
}

const (
	timeFormat      = "2006-01-02T15:04:05.000Z07:00"
	defaultFilePath = "./replywatch.log"
)

// Service owns the sinks and swaps them on Apply. Loggers handed out by it
// pick up the new configuration on their next record.
type Service struct {
	mu         sync.Mutex
	cfg        Config
	forceDebug bool
	file       *os.File
	chat       *chatSink

	root atomic.Pointer[zerolog.Logger]
}

// New applies cfg and returns the service with its root Logger.
// poster may be nil and attached later with SetPoster.
func New(cfg Config, poster Poster) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat

	s := &Service{chat: newChatSink(poster)}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) current() *zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return zl
	}
	return &nop
}

// SetPoster attaches the Slack client once it exists.
func (s *Service) SetPoster(p Poster) { s.chat.setPoster(p) }

// ForceDebug pins the level to debug regardless of config (the --debug flag).
func (s *Service) ForceDebug(on bool) {
	s.mu.Lock()
	s.forceDebug = on
	cfg := s.cfg
	s.mu.Unlock()
	s.Apply(cfg)
}

// Apply rebuilds the sinks from cfg. Safe to call concurrently with logging.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg

	level := parseLevel(cfg.Level, zerolog.InfoLevel)
	if s.forceDebug {
		level = zerolog.DebugLevel
	}

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	if cfg.File.Enabled {
		f, err := openLogFile(cfg.File.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: %v\n", err)
		} else {
			s.file = f
			sinks = append(sinks, zerolog.SyncWriter(f))
		}
	}

	s.chat.configure(cfg.Slack)
	if cfg.Slack.Enabled {
		sinks = append(sinks, s.chat)
	}

	if len(sinks) == 0 {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).Level(level).With().Timestamp().Logger()
	s.root.Store(&zl)
}

// Close stops the Slack sink and closes the log file.
func (s *Service) Close() error {
	s.chat.close()

	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

func openLogFile(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log dir for %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: timeFormat,
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return def
	}
}

// ValidLevel reports whether s names a level. Empty is valid and means info.
func ValidLevel(s string) bool {
	return strings.TrimSpace(s) == "" || parseLevel(s, zerolog.NoLevel) != zerolog.NoLevel
}
