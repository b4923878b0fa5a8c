package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives one named job from an interval ticker and from
// debounced triggers. A trigger arriving while a run is pending is folded
// into that run.
type Scheduler struct {
	runner   *Runner
	name     string
	fn       Func
	interval time.Duration
	debounce time.Duration
	logger   *slog.Logger

	// Fatal, when set, classifies run errors that stop the scheduler
	// instead of waiting for the next tick.
	Fatal func(error) bool

	trigger  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler returns a stopped scheduler. A zero interval disables the
// ticker; triggers still work.
func NewScheduler(runner *Runner, name string, fn Func, interval, debounce time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		name:     name,
		fn:       fn,
		interval: interval,
		debounce: debounce,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start launches the scheduling goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Trigger requests a run after the debounce delay. It never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stop signals the loop to exit and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		tick = t.C
	}

	var pending *time.Timer
	var fire <-chan time.Time
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-s.stop:
			s.logger.Info("scheduler stopping", "job", s.name)
			return
		case <-ctx.Done():
			s.logger.Info("context canceled, scheduler exiting", "job", s.name)
			return
		case <-s.trigger:
			if fire == nil {
				pending = time.NewTimer(s.debounce)
				fire = pending.C
			}
		case <-fire:
			pending, fire = nil, nil
			if s.runOnce(ctx) {
				return
			}
		case <-tick:
			if s.runOnce(ctx) {
				return
			}
		}
	}
}

// runOnce reports whether the loop should exit.
func (s *Scheduler) runOnce(ctx context.Context) bool {
	_, err := s.runner.Run(ctx, s.name, s.fn)
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrAlreadyRunning):
		s.logger.Debug("skipping overlapping run", "job", s.name)
		return false
	case s.Fatal != nil && s.Fatal(err):
		s.logger.Error("scheduler halted", "job", s.name, "err", err)
		return true
	default:
		return false
	}
}
