package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Config holds loop configuration.
type Config struct {
	TickInterval  time.Duration
	ExitWhenEmpty bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{TickInterval: time.Millisecond, ExitWhenEmpty: true}
}

// Loop drives a Scheduler on a fixed cadence.
type Loop struct {
	sched    *Scheduler
	config   Config
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	ticks    int
}

// NewLoop creates a new loop around sched.
func NewLoop(sched *Scheduler, cfg Config, logger *slog.Logger) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	return &Loop{
		sched:  sched,
		config: cfg,
		logger: logger.With("component", "loop"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins ticking. Blocks until ctx is cancelled, Stop is called, or
// (with ExitWhenEmpty) the queue drains.
func (l *Loop) Start(ctx context.Context) error {
	defer close(l.doneCh)

	l.logger.Debug("loop started", "tick_interval", l.config.TickInterval)
	ticker := time.NewTicker(l.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping (context cancelled)")
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Debug("loop stopping (stop called)")
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				return err
			}
			if l.config.ExitWhenEmpty && l.sched.Empty() {
				l.logger.Debug("loop stopping (queue empty)")
				return nil
			}
		}
	}
}

// Stop shuts the loop down and waits for the current tick to finish.
// It must only be called after Start.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	<-l.doneCh
	return nil
}

// Tick runs a single drain cycle.
func (l *Loop) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.sched.Tick()
	l.ticks++
	return nil
}

// Ticks returns the number of drain cycles run so far. Only meaningful
// once Start has returned.
func (l *Loop) Ticks() int {
	return l.ticks
}

// Run ticks back to back until the queue is empty or ctx is done, and
// returns the number of ticks performed.
func Run(ctx context.Context, sched *Scheduler) (int, error) {
	ticks := 0
	for !sched.Empty() {
		if err := ctx.Err(); err != nil {
			return ticks, err
		}
		sched.Tick()
		ticks++
	}
	return ticks, nil
}
