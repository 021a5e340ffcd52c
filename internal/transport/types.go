package transport

import (
	"context"
	"time"
)

type Channel struct {
	ID        string
	Name      string
	IsPrivate bool
}

type Message struct {
	TS      string // platform timestamp id (Slack "1712345678.123456")
	At      time.Time
	UserID  string
	BotID   string
	SubType string
	Text    string
}

// Platform is the slice of the chat API the monitor needs.
type Platform interface {
	// ListChannels returns every channel the bot is a member of.
	ListChannels(ctx context.Context) ([]Channel, error)
	// History returns up to limit recent messages, newest first.
	History(ctx context.Context, channelID string, limit int) ([]Message, error)
	// SendDirect delivers text to a user's DM.
	SendDirect(ctx context.Context, userID, text string) error
	// PostText posts text to a channel.
	PostText(ctx context.Context, channelID, text string) error
}
