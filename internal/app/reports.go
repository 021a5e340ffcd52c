package app

import (
	"sync"
	"time"

	"replywatch/internal/report"
)

// reportSink lets a config reload move the report files without touching the monitor.
type reportSink struct {
	mu  sync.Mutex
	w   *report.Writer
	loc string
}

func newReportSink(summary, trail string, loc *time.Location) (*reportSink, error) {
	s := &reportSink{}
	if err := s.reset(summary, trail, loc); err != nil {
		return nil, err
	}
	return s, nil
}

// reset reopens the writer when paths or timezone changed.
func (s *reportSink) reset(summary, trail string, loc *time.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w != nil {
		cs, ct := s.w.Paths()
		if cs == summary && ct == trail && s.loc == loc.String() {
			return nil
		}
	}
	w, err := report.New(summary, trail, loc)
	if err != nil {
		return err
	}
	s.w, s.loc = w, loc.String()
	return nil
}

func (s *reportSink) Append(r report.Row) error {
	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	return w.Append(r)
}
