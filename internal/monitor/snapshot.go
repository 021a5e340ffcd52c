package monitor

import (
	"time"

	"replywatch/internal/classify"
	"replywatch/internal/config"
	"replywatch/internal/notify"
	"replywatch/internal/owners"
)

// Snapshot is the immutable view of config a single cycle works against.
type Snapshot struct {
	Policy       classify.Policy
	Owners       owners.Table
	Team         map[string]struct{}
	HistoryLimit int
	Location     *time.Location
	Remind       notify.Policy
}

// SnapshotFrom builds a cycle snapshot from a resolved config.
func SnapshotFrom(res *config.Resolved) Snapshot {
	return Snapshot{
		Policy:       res.Policy,
		Owners:       owners.New(res.Owners),
		Team:         res.Team,
		HistoryLimit: res.HistoryLimit,
		Location:     res.Location,
		Remind:       notify.Policy{Template: res.ReminderTemplate, Every: res.RemindEvery},
	}
}

func (s Snapshot) isTeam(userID string) bool {
	_, ok := s.Team[userID]
	return ok
}
