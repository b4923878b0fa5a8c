package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thepathwise/intake/internal/jobs"
	"github.com/thepathwise/intake/pkg/models"
	"github.com/thepathwise/intake/pkg/repository/mock"
)

func TestRunner_RecordsSuccess(t *testing.T) {
	store := mock.NewStore()
	r := jobs.NewRunner(store, nil)

	run, err := r.Run(context.Background(), jobs.SheetSync, func(ctx context.Context) (any, error) {
		return map[string]int{"rows": 3}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != models.RunSucceeded || run.ID == 0 {
		t.Fatalf("unexpected run %+v", run)
	}

	runs, _ := store.ListRuns(context.Background(), jobs.SheetSync, 0)
	if len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(runs))
	}
	var summary map[string]int
	if err := json.Unmarshal(runs[0].Summary, &summary); err != nil || summary["rows"] != 3 {
		t.Fatalf("unexpected summary %s (%v)", runs[0].Summary, err)
	}
}

func TestRunner_RecordsFailure(t *testing.T) {
	store := mock.NewStore()
	r := jobs.NewRunner(store, nil)
	boom := errors.New("boom")

	run, err := r.Run(context.Background(), jobs.Backfill, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected job error returned, got %v", err)
	}
	if run.Status != models.RunFailed || run.Error != "boom" {
		t.Fatalf("unexpected run %+v", run)
	}
	if runs, _ := store.ListRuns(context.Background(), "", 0); len(runs) != 1 {
		t.Fatalf("expected failed run recorded, got %d", len(runs))
	}
}

func TestRunner_RejectsOverlap(t *testing.T) {
	r := jobs.NewRunner(mock.NewStore(), nil)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := r.Run(context.Background(), jobs.SheetSync, func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
		done <- err
	}()
	<-started

	if !r.Running(jobs.SheetSync) {
		t.Fatalf("expected job reported running")
	}
	if _, err := r.Run(context.Background(), jobs.SheetSync, nil); !errors.Is(err, jobs.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	// other names are independent
	if _, err := r.Run(context.Background(), jobs.Backfill, func(ctx context.Context) (any, error) { return nil, nil }); err != nil {
		t.Fatalf("expected other job to run, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if r.Running(jobs.SheetSync) {
		t.Fatalf("expected guard released")
	}
}

func TestScheduler_DebouncesTriggers(t *testing.T) {
	var calls atomic.Int32
	ran := make(chan struct{}, 10)
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		ran <- struct{}{}
		return nil, nil
	}
	s := jobs.NewScheduler(jobs.NewRunner(mock.NewStore(), nil), jobs.SheetSync, fn, 0, 50*time.Millisecond, nil)
	s.Start(context.Background())
	defer s.Stop()

	for i := 0; i < 5; i++ {
		s.Trigger()
	}
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("triggered run did not happen")
	}
	// give any extra run a chance to show up
	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected burst folded into one run, got %d", n)
	}
}

func TestScheduler_Interval(t *testing.T) {
	ran := make(chan struct{}, 10)
	fn := func(ctx context.Context) (any, error) {
		ran <- struct{}{}
		return nil, nil
	}
	s := jobs.NewScheduler(jobs.NewRunner(mock.NewStore(), nil), jobs.Backfill, fn, 20*time.Millisecond, time.Second, nil)
	s.Start(context.Background())
	defer s.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("interval run %d did not happen", i)
		}
	}
}

func TestScheduler_FatalStopsLoop(t *testing.T) {
	fatal := errors.New("no sheets")
	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, fatal
	}
	s := jobs.NewScheduler(jobs.NewRunner(mock.NewStore(), nil), jobs.SheetSync, fn, 10*time.Millisecond, time.Second, nil)
	s.Fatal = func(err error) bool { return errors.Is(err, fatal) }
	s.Start(context.Background())

	time.Sleep(100 * time.Millisecond)
	s.Stop()
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected loop to halt after first fatal run, got %d runs", n)
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := jobs.NewScheduler(jobs.NewRunner(mock.NewStore(), nil), jobs.SheetSync, nil, 0, time.Second, nil)
	s.Start(ctx)
	s.Trigger()
	cancel()
	s.Stop()
	s.Stop()
}
