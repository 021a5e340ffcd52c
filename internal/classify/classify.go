// Package classify decides whether a channel's latest client message is
// answered, still within its reply limit, or overdue.
//
// Everything here is pure: no I/O, no clocks, no shared state.
package classify

import (
	"sort"
	"time"
)

// Classify evaluates st at instant now. ok is false when the channel holds no
// client message at all, in which case the channel should be skipped.
func Classify(st ChannelState, now time.Time, p Policy) (c Classification, ok bool) {
	msgs := ordered(st.Messages)

	client := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].Internal {
			client = i
			break
		}
	}
	if client < 0 {
		return Classification{}, false
	}

	cm := msgs[client]
	c = Classification{
		ClientAt:   cm.At,
		ClientText: cm.Text,
		ClientUser: cm.SenderID,
		ClientID:   cm.ID,
	}

	// Everything after the latest client message is internal, so the first
	// entry (if any) is the earliest reply.
	if client+1 < len(msgs) {
		r := msgs[client+1]
		c.Status = StatusAnswered
		c.ReplyAt = r.At
		c.ReplyText = r.Text
		c.ReplyUser = r.SenderID
		c.ElapsedHours = r.At.Sub(cm.At).Hours()
		return c, true
	}

	c.ElapsedHours = now.Sub(cm.At).Hours()
	c.BusinessWindow = p.Window.Contains(now)
	c.Threshold = p.Thresholds.Overall
	if c.BusinessWindow {
		c.Threshold = p.Thresholds.Business
	}
	if c.ElapsedHours > c.Threshold {
		c.Status = StatusRemind
	} else {
		c.Status = StatusWaiting
	}
	return c, true
}

// ordered returns an oldest-first copy; equal timestamps keep input order.
func ordered(in []Message) []Message {
	out := make([]Message, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}
