// Package storage is the append-only reminder ledger.
//
// Every reminder attempt is appended as one entry. The time a client message
// was last successfully reminded about is derived from those entries, which
// lets repeat reminders be spaced out across cycles and restarts without any
// mutable state on disk.
package storage
