package classify

import "time"

// Status is the outcome of evaluating one channel.
type Status string

const (
	StatusAnswered Status = "answered"
	StatusWaiting  Status = "waiting"
	StatusRemind   Status = "remind"
)

// Message is one entry of a channel's history as seen by the classifier.
// Internal is true when the sender belongs to the configured team roster.
type Message struct {
	ID       string // platform message id, opaque here
	SenderID string
	Internal bool
	Text     string
	At       time.Time
}

// ChannelState is a channel's message history plus its identity.
// Messages may be ordered oldest-first or newest-first.
type ChannelState struct {
	ChannelID   string
	ChannelName string
	OwnerID     string
	Messages    []Message
}

// Classification is the decision for a single channel at a given instant.
//
// ElapsedHours is reply-client for answered channels and now-client otherwise.
type Classification struct {
	Status Status

	ClientAt   time.Time
	ClientText string
	ClientUser string
	ClientID   string

	// ReplyAt is zero when no team reply followed the client message.
	ReplyAt   time.Time
	ReplyText string
	ReplyUser string

	ElapsedHours float64

	// Threshold is the limit that was compared against (0 for answered).
	Threshold      float64
	BusinessWindow bool
}

// Answered reports whether a team reply exists.
func (c Classification) Answered() bool { return !c.ReplyAt.IsZero() }

// Thresholds are reply limits in hours.
type Thresholds struct {
	Business float64
	Overall  float64
}

// Policy bundles everything the classifier needs besides the channel itself.
type Policy struct {
	Window     Window
	Thresholds Thresholds
}
