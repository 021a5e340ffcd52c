package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the ledger.
//
// Driver values:
//   - "" / "none" / "memory": in-process only, lost on restart
//   - "file": JSON Lines file at Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// ReminderEntry records one reminder delivery attempt.
// Key identifies the client message the reminder was about.
type ReminderEntry struct {
	At           time.Time `json:"at"`
	Key          string    `json:"key"`
	CycleID      string    `json:"cycle_id,omitempty"`
	ChannelID    string    `json:"channel_id"`
	ChannelName  string    `json:"channel_name"`
	OwnerID      string    `json:"owner_id"`
	ClientAt     time.Time `json:"client_at"`
	ElapsedHours float64   `json:"elapsed_hours"`
	Threshold    float64   `json:"threshold"`
	Error        string    `json:"error,omitempty"`
}

// Delivered reports whether the attempt reached the owner.
func (e ReminderEntry) Delivered() bool { return e.Error == "" }
