// Package scheduler triggers the monitoring cycle on a cron or interval
// schedule. A trigger that fires while the previous cycle is still running
// is skipped rather than queued.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "replywatch/pkg/logx"
)

// Job is one monitoring cycle.
type Job func(ctx context.Context) error

type Service struct {
	log logx.Logger
	job Job

	mu   sync.Mutex
	c    *cron.Cron
	raw  string
	spec Spec
	loc  *time.Location
	ctx  context.Context

	timeout time.Duration
	running atomic.Bool
	wg      sync.WaitGroup

	runs    atomic.Uint64
	skipped atomic.Uint64
}

// Stats is a point-in-time view of the trigger counters.
type Stats struct {
	Schedule string
	Runs     uint64
	Skipped  uint64
	Running  bool
}

// New creates a stopped scheduler. timeout bounds a single run; 0 means none.
func New(job Job, timeout time.Duration, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log, job: job, timeout: timeout}
}

// Start registers the schedule and runs the job once immediately.
// Runs use ctx as their parent; cancelling it aborts in-flight work.
func (s *Service) Start(ctx context.Context, schedule string, loc *time.Location) error {
	ps, err := Parse(schedule)
	if err != nil {
		return err
	}
	if loc == nil {
		loc = time.Local
	}

	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return nil
	}
	s.ctx = ctx
	if err := s.startLocked(schedule, ps, loc); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.log.Info("scheduler started", logx.String("schedule", ps.String()), logx.String("tz", loc.String()))
	s.RunNow()
	return nil
}

func (s *Service) startLocked(raw string, ps Spec, loc *time.Location) error {
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(loc))
	job := cron.FuncJob(func() { s.RunNow() })
	if ps.IsCron() {
		if _, err := c.AddJob(ps.Cron, job); err != nil {
			return err
		}
	} else {
		c.Schedule(cron.Every(ps.Every), job)
	}
	c.Start()
	s.c, s.raw, s.spec, s.loc = c, strings.TrimSpace(raw), ps, loc
	return nil
}

// Apply swaps the schedule or timezone in place. Unchanged input is a no-op.
func (s *Service) Apply(schedule string, loc *time.Location) error {
	ps, err := Parse(schedule)
	if err != nil {
		return err
	}
	if loc == nil {
		loc = time.Local
	}

	s.mu.Lock()
	if s.c == nil || (strings.TrimSpace(schedule) == s.raw && loc.String() == s.loc.String()) {
		s.mu.Unlock()
		return nil
	}
	old := s.c
	if err := s.startLocked(schedule, ps, loc); err != nil {
		s.c = old
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	// The old cron's trigger may be inside RunNow; wait outside the lock.
	<-old.Stop().Done()
	s.log.Info("scheduler rescheduled", logx.String("schedule", ps.String()), logx.String("tz", loc.String()))
	return nil
}

// RunNow starts a run in the background unless one is already in flight.
// It reports whether a run was started.
func (s *Service) RunNow() bool {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Warn("previous cycle still running, skipping trigger")
		return false
	}
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("cycle panic", logx.Any("panic", r))
			}
		}()
		s.runs.Add(1)
		if parent.Err() != nil {
			return
		}
		ctx, cancel := parent, context.CancelFunc(func() {})
		if s.timeout > 0 {
			ctx, cancel = context.WithTimeout(parent, s.timeout)
		}
		defer cancel()
		if err := s.job(ctx); err != nil {
			s.log.Error("cycle failed", logx.Err(err))
		}
	}()
	return true
}

// Stop halts triggering and waits for an in-flight run, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with a cycle in flight")
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	sched := s.spec.String()
	s.mu.Unlock()
	return Stats{
		Schedule: sched,
		Runs:     s.runs.Load(),
		Skipped:  s.skipped.Load(),
		Running:  s.running.Load(),
	}
}
