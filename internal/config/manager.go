package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "replywatch/pkg/logx"
)

// Manager owns the current config snapshot and hot-reloads it from disk.
// A snapshot is never mutated after Commit; reloads swap in a new pointer.
type Manager struct {
	path string

	mu       sync.RWMutex
	resolved *Resolved
	lastHash uint64

	// subsMu guards the subscriber list and ensures we never send on a channel
	// that is concurrently being closed in Unsubscribe().
	subsMu sync.Mutex
	subs   []chan *Config

	log logx.Logger

	// debounce is the delay between the last fs event and the reload.
	debounce time.Duration
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop(), debounce: 250 * time.Millisecond}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) SetLogger(log logx.Logger) {
	if log.IsZero() {
		log = logx.Nop()
	}
	m.log = log
}

// Parse reads and strictly decodes the file (YAML or JSON). It does not commit.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return Decode(m.path, b)
}

// Decode strictly decodes config bytes; the format is chosen by the path extension.
func Decode(path string, b []byte) (*Config, error) {
	jb, err := toJSON(path, b)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// Load parses, resolves and commits the config. Used once at startup.
func (m *Manager) Load() (*Config, *Resolved, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, nil, err
	}
	res, err := Resolve(cfg)
	if err != nil {
		return nil, nil, err
	}
	m.Commit(cfg, res)
	return cfg, res, nil
}

func (m *Manager) Commit(cfg *Config, res *Resolved) {
	m.mu.Lock()
	m.resolved = res
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

// Snapshot returns the current resolved config.
func (m *Manager) Snapshot() *Resolved {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolved
}

func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		// Latest wins: if the subscriber is slow, drop its oldest pending item.
		select {
		case ch <- cfg:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
			m.log.Debug("config update dropped (subscriber slow)", logx.Int("queue_cap", cap(ch)))
		}
	}
}

// Reload parses, validates, commits and publishes the file if its content changed.
// It reports whether a new snapshot was published.
func (m *Manager) Reload() (bool, error) {
	cfg, err := m.Parse()
	if err != nil {
		return false, err
	}
	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		return false, nil
	}
	res, err := Resolve(cfg)
	if err != nil {
		return false, err
	}
	m.Commit(cfg, res)
	m.publish(cfg)
	return true, nil
}

// Watch reloads the config whenever the file changes, until ctx is done.
// It returns an error when the watcher cannot start or breaks; the caller
// decides whether to restart it.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config watch %s: %w", dir, err)
	}
	m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	// Editors write in bursts; reload once the file settles.
	debounce := time.NewTimer(m.debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("config watch: event channel closed")
			}
			// Editors often replace the file, so match by basename and accept any op.
			if strings.EqualFold(filepath.Base(ev.Name), file) {
				debounce.Reset(m.debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("config watch: error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				m.log.Warn("config watch overflow; reloading", logx.String("dir", dir))
				debounce.Reset(m.debounce)
				continue
			}
			if err != nil {
				m.log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
			}
		case <-debounce.C:
			m.reloadAndLog()
		}
	}
}

func (m *Manager) reloadAndLog() {
	changed, err := m.Reload()
	switch {
	case err != nil:
		m.log.Warn("config rejected; keeping previous", logx.String("path", m.path), logx.Err(err))
	case changed:
		m.log.Info("config reloaded", logx.String("path", m.path))
	default:
		m.log.Debug("config unchanged; skipping publish", logx.String("path", m.path))
	}
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil || len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
