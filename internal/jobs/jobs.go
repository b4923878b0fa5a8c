package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/thepathwise/intake/pkg/models"
	"github.com/thepathwise/intake/pkg/repository"
)

// Names of the batch jobs.
const (
	SheetSync = "sheetsync"
	Backfill  = "backfill"
)

// ErrAlreadyRunning is returned when a job with the same name is in flight
// in this process.
var ErrAlreadyRunning = errors.New("job already running")

// Func performs one run and returns a JSON-encodable summary.
type Func func(ctx context.Context) (any, error)

// Runner executes named jobs at most once at a time per name and records
// every run in the job history.
type Runner struct {
	runs   repository.JobRunRepo
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

func NewRunner(runs repository.JobRunRepo, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{runs: runs, logger: logger, now: time.Now, running: map[string]bool{}}
}

// Run executes fn under name. The returned JobRun describes the run even
// when fn fails; history write failures are logged and do not change the
// outcome.
func (r *Runner) Run(ctx context.Context, name string, fn Func) (models.JobRun, error) {
	if !r.acquire(name) {
		return models.JobRun{}, ErrAlreadyRunning
	}
	defer r.release(name)

	run := models.JobRun{Name: name, StartedAt: r.now().UTC()}
	r.logger.Info("job started", "job", name)

	summary, err := fn(ctx)
	run.FinishedAt = r.now().UTC()
	run.Status = models.RunSucceeded
	if err != nil {
		run.Status = models.RunFailed
		run.Error = err.Error()
	}
	if summary != nil {
		b, merr := json.Marshal(summary)
		if merr != nil {
			r.logger.Warn("encode job summary", "job", name, "err", merr)
		} else {
			run.Summary = b
		}
	}

	// the history must be written even if the caller's context is gone
	if _, rerr := r.runs.RecordRun(context.WithoutCancel(ctx), &run); rerr != nil {
		r.logger.Warn("record job run", "job", name, "err", rerr)
	}

	if err != nil {
		r.logger.Error("job failed", "job", name, "duration", run.FinishedAt.Sub(run.StartedAt), "err", err)
		return run, err
	}
	r.logger.Info("job finished", "job", name, "duration", run.FinishedAt.Sub(run.StartedAt))
	return run, nil
}

// Running reports whether name is currently in flight.
func (r *Runner) Running(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[name]
}

func (r *Runner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[name] {
		return false
	}
	r.running[name] = true
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.running, name)
	r.mu.Unlock()
}
