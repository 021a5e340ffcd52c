package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "replywatch/pkg/logx"
)

// Store is the ledger API used by the notifier.
type Store interface {
	AppendReminder(ctx context.Context, e ReminderEntry) error
	// LastReminded returns the latest delivered reminder for key.
	LastReminded(ctx context.Context, key string) (at time.Time, ok bool, err error)
	Close() error
}

// Open initializes the configured store. It never returns a nil Store on success.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "none", "memory":
		return NewMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

// ValidDriver reports whether Open understands driver.
func ValidDriver(driver string) bool {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "none", "memory", "file", "sqlite", "sqlite3":
		return true
	}
	return false
}
