package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "replywatch/pkg/logx"
)

// fileStore appends entries as JSON Lines to a single file. The per-key
// last-reminded index is rebuilt by replaying the file on open.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	f    *os.File
	last map[string]time.Time
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	last := map[string]time.Time{}
	n, bad, err := replayLedger(path, last)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if bad > 0 {
		log.Warn("skipped unreadable ledger lines", logx.String("path", path), logx.Int("lines", bad))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := terminateTornLine(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	log.Debug("ledger opened", logx.String("path", path), logx.Int("entries", n), logx.Int("keys", len(last)))
	return &fileStore{log: log, f: f, last: last}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendReminder(_ context.Context, e ReminderEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("reminder ledger closed")
	}
	if err := json.NewEncoder(s.f).Encode(e); err != nil {
		return err
	}
	noteDelivered(s.last, e)
	return nil
}

func (s *fileStore) LastReminded(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.last[strings.TrimSpace(key)]
	return at, ok, nil
}

// replayLedger returns the number of entries read and lines that failed to decode.
func replayLedger(path string, last map[string]time.Time) (n, bad int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var e ReminderEntry
		if err := json.Unmarshal(line, &e); err != nil {
			bad++
			continue
		}
		n++
		noteDelivered(last, e)
	}
	return n, bad, sc.Err()
}

// terminateTornLine ends a partial last line so the next append starts clean.
func terminateTornLine(f *os.File) error {
	st, err := f.Stat()
	if err != nil || st.Size() == 0 {
		return err
	}
	b := make([]byte, 1)
	if _, err := f.ReadAt(b, st.Size()-1); err != nil {
		return err
	}
	if b[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}
