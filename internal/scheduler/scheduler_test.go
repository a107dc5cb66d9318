package scheduler

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ziadkadry99/docvault/internal/config"
	"github.com/ziadkadry99/docvault/internal/staging"
)

type countingScanner struct{ calls atomic.Int32 }

func (c *countingScanner) ProcessAll(context.Context) (*staging.Result, error) {
	c.calls.Add(1)
	return &staging.Result{}, nil
}

type recordingPruner struct {
	mu     sync.Mutex
	cutoff []time.Time
}

func (r *recordingPruner) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoff = append(r.cutoff, before)
	return 3, nil
}

func (r *recordingPruner) calls() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.cutoff...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRegisterHonoursIntervals(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	err := s.Register(config.SchedulerConfig{
		StagingScanInterval: "5m",
		VerifyInterval:      "",
		LogRetention:        "720h",
	}, Jobs{
		Staging: &countingScanner{},
		Verify:  func(context.Context) error { return nil },
		Logs:    &recordingPruner{},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	want := []string{TagLogPrune, TagStagingScan}
	if got := s.Tags(); !reflect.DeepEqual(got, want) {
		t.Errorf("tags: got %v, want %v", got, want)
	}
}

func TestRegisterSkipsMissingCollaborators(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	err := s.Register(config.SchedulerConfig{
		StagingScanInterval: "5m",
		VerifyInterval:      "1h",
		LogRetention:        "720h",
	}, Jobs{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := s.Tags(); len(got) != 0 {
		t.Errorf("expected no jobs, got %v", got)
	}
}

func TestRegisterRejectsBadInterval(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	err := s.Register(config.SchedulerConfig{VerifyInterval: "hourly"}, Jobs{
		Verify: func(context.Context) error { return nil },
	})
	if err == nil {
		t.Fatal("expected error for unparsable interval")
	}

	if err := s.Add("zero", 0, func(context.Context) error { return nil }); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestJobsRunOnSchedule(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var runs atomic.Int32
	if err := s.Add("tick", 20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("ignored")
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Start()

	waitFor(t, func() bool { return runs.Load() >= 2 })
}

func TestRunNowTriggersStagingScan(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	scanner := &countingScanner{}
	if err := s.Register(config.SchedulerConfig{StagingScanInterval: "1h"}, Jobs{Staging: scanner}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Start()

	if err := s.RunNow(TagStagingScan); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	waitFor(t, func() bool { return scanner.calls.Load() == 1 })
}

func TestLogPruneUsesRetentionCutoff(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	pruner := &recordingPruner{}
	if err := s.Register(config.SchedulerConfig{LogRetention: "48h"}, Jobs{Logs: pruner}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Start()

	if err := s.RunNow(TagLogPrune); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	waitFor(t, func() bool { return len(pruner.calls()) == 1 })

	if got, want := pruner.calls()[0], fixed.Add(-48*time.Hour); !got.Equal(want) {
		t.Errorf("cutoff: got %v, want %v", got, want)
	}
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New(nil)

	started := make(chan struct{})
	done := make(chan error, 1)
	if err := s.Add("slow", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Start()
	if err := s.RunNow("slow"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	<-started

	go s.Stop()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job context was not cancelled")
	}
}
