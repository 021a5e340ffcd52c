package app

import (
	"time"

	"replywatch/internal/monitor"
	"replywatch/internal/notify"
	rtsup "replywatch/internal/runtime/supervisor"
	"replywatch/internal/scheduler"
)

// Status is served by the debug endpoint.
type Status struct {
	Uptime     string               `json:"uptime"`
	Config     string               `json:"config"`
	Scheduler  scheduler.Stats      `json:"scheduler"`
	Goroutines rtsup.Counters       `json:"goroutines"`
	LastCycle  *monitor.CycleReport `json:"last_cycle,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
	Reminders  []notify.HistoryItem `json:"recent_reminders"`
}

const statusReminders = 20

func (a *App) status() any {
	st := Status{
		Uptime:    time.Since(a.started).Round(time.Second).String(),
		Config:    a.cfgm.Path(),
		Scheduler: a.sched.Stats(),
		LastCycle: a.last.Load(),
	}
	if a.sup != nil {
		st.Goroutines = a.sup.Counters()
	}
	if err, ok := a.lastErr.Load().(string); ok {
		st.LastError = err
	}
	h := a.notif.History()
	if len(h) > statusReminders {
		h = h[len(h)-statusReminders:]
	}
	st.Reminders = h
	return st
}
