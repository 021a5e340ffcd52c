// Package app wires configuration, logging, the Slack client, storage and
// the cycle scheduler into a running daemon.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"replywatch/internal/config"
	"replywatch/internal/monitor"
	"replywatch/internal/notify"
	"replywatch/internal/observability/pprof"
	rtsup "replywatch/internal/runtime/supervisor"
	"replywatch/internal/scheduler"
	"replywatch/internal/storage"
	"replywatch/internal/transport"
	"replywatch/internal/transport/slack/adapter"
	logx "replywatch/pkg/logx"
	"replywatch/pkg/systemd"
)

type Options struct {
	ConfigPath string
	// Debug forces debug logging, including one line per fetched message.
	Debug bool
	// Platform replaces the Slack adapter (tests).
	Platform transport.Platform
}

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	platform transport.Platform
	store    storage.Store
	reports  *reportSink
	notif    *notify.Service
	mon      *monitor.Monitor
	sched    *scheduler.Service
	debug    *pprof.Server

	sup     *rtsup.Supervisor
	started time.Time
	last    atomic.Pointer[monitor.CycleReport]
	lastErr atomic.Value // string
}

// New loads and validates the config and builds every component.
// Any config error is returned before anything starts.
func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, res, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, root := logx.New(cfg.LogConfig(), nil)
	logs.ForceDebug(opts.Debug)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	platform := opts.Platform
	if platform == nil {
		httpTimeout, err := config.ParseDurationField("slack.http_timeout", cfg.Slack.HTTPTimeout)
		if err != nil {
			_ = logs.Close()
			return nil, err
		}
		ad, err := adapter.New(adapter.Config{
			Token:       config.SlackToken(cfg),
			RatePerSec:  cfg.Slack.RatePerSec,
			HTTPTimeout: httpTimeout,
		}, root.With(logx.String("comp", "slack")))
		if err != nil {
			_ = logs.Close()
			return nil, err
		}
		platform = ad
	}
	logs.SetPoster(platform)

	store, err := storage.Open(cfg.StoreConfig(), root.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	reports, err := newReportSink(res.SummaryPath, res.TrailPath, res.Location)
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, fmt.Errorf("reports: %w", err)
	}

	notif := notify.New(notify.Config{}, platform, store, root.With(logx.String("comp", "notify")))
	mon := monitor.New(platform, reports, notif, root.With(logx.String("comp", "monitor")))

	a := &App{
		cfgm:     cfgm,
		logs:     logs,
		log:      log,
		platform: platform,
		store:    store,
		reports:  reports,
		notif:    notif,
		mon:      mon,
	}
	a.sched = scheduler.New(a.cycle, 0, root.With(logx.String("comp", "scheduler")))
	if dc := cfg.DebugServerConfig(); dc.Enabled {
		a.debug = pprof.New(dc, a.status, root.With(logx.String("comp", "debug")))
	}
	return a, nil
}

// Logger returns the root application logger.
func (a *App) Logger() logx.Logger { return a.log }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// RunOnce executes a single cycle against the current config and returns its report.
func (a *App) RunOnce(ctx context.Context) (monitor.CycleReport, error) {
	return a.mon.RunCycle(ctx, monitor.SnapshotFrom(a.cfgm.Snapshot()))
}

func (a *App) cycle(ctx context.Context) error {
	rep, err := a.RunOnce(ctx)
	if err != nil {
		a.lastErr.Store(err.Error())
		return err
	}
	a.last.Store(&rep)
	a.lastErr.Store("")
	_, _ = systemd.Status(fmt.Sprintf("last cycle %s: %d evaluated, %d overdue, %d reminded",
		time.Now().Format(time.RFC3339), rep.Evaluated, rep.Remind, rep.Reminded))
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.started = time.Now()
	res := a.cfgm.Snapshot()

	if err := a.sched.Start(a.sup.Context(), res.Schedule, res.Location); err != nil {
		return err
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							cfg = newer
						}
					default:
						break drain
					}
				}
				a.apply(cfg, a.cfgm.Snapshot())
			}
		}
	})

	a.sup.GoRestart("config.watch", time.Second, 30*time.Second, a.cfgm.Watch)
	a.sup.Go("systemd.watchdog", systemd.Watchdog)
	if a.debug != nil {
		a.sup.GoRestart("debug.serve", 500*time.Millisecond, 10*time.Second, a.debug.Serve)
	}

	if _, err := systemd.Ready(); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	}
	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.String("schedule", res.Schedule),
		logx.String("tz", res.Location.String()),
	)
	return nil
}

// apply pushes a committed config into the running components.
func (a *App) apply(cfg *config.Config, res *config.Resolved) {
	_, _ = systemd.Reloading()
	defer func() { _, _ = systemd.Ready() }()

	a.logs.Apply(cfg.LogConfig())
	if err := a.sched.Apply(res.Schedule, res.Location); err != nil {
		a.log.Warn("schedule not applied", logx.Err(err))
	}
	if err := a.reports.reset(res.SummaryPath, res.TrailPath, res.Location); err != nil {
		a.log.Warn("report paths not applied", logx.Err(err))
	}
	a.log.Info("config applied",
		logx.String("schedule", res.Schedule),
		logx.Int("owners", len(res.Owners)),
		logx.Int("team", len(res.Team)),
	)
}

// Stop shuts components down in order; each step is bounded so one can't stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	if a.sup != nil {
		a.sup.Cancel()
	}

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	if a.sup != nil {
		step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	}
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped", logx.String("reason", string(reason)))
	return a.logs.Close()
}
