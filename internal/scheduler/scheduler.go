// Package scheduler runs the periodic maintenance jobs of a server process:
// staging folder rescans, index verification and processing log pruning.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/ziadkadry99/docvault/internal/config"
	"github.com/ziadkadry99/docvault/internal/staging"
)

// Job tags.
const (
	TagStagingScan = "staging-scan"
	TagIndexVerify = "index-verify"
	TagLogPrune    = "log-prune"
)

// StagingScanner processes everything currently in the staging folder.
type StagingScanner interface {
	ProcessAll(ctx context.Context) (*staging.Result, error)
}

// LogPruner deletes processing log entries older than a cutoff.
type LogPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Jobs holds the collaborators behind the built-in jobs. Nil members
// disable their job.
type Jobs struct {
	Staging StagingScanner
	Verify  func(ctx context.Context) error
	Logs    LogPruner
}

// Scheduler wraps a gocron scheduler whose jobs share one context that is
// cancelled on Stop.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an idle scheduler. Jobs wait for their first interval before
// running and never overlap with themselves.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()
	s.WaitForScheduleAll()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		now:       time.Now,
	}
}

// Register adds the built-in jobs enabled by cfg. An empty interval
// disables the corresponding job.
func (s *Scheduler) Register(cfg config.SchedulerConfig, jobs Jobs) error {
	if jobs.Staging != nil {
		err := s.addInterval(TagStagingScan, cfg.StagingScanInterval, func(ctx context.Context) error {
			res, err := jobs.Staging.ProcessAll(ctx)
			if err != nil {
				return err
			}
			if len(res.Files) > 0 {
				s.logger.Info("staging rescan", "ingested", res.Ingested, "duplicates", res.Duplicates,
					"rejected", res.Rejected, "failed", res.Failed)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if jobs.Verify != nil {
		if err := s.addInterval(TagIndexVerify, cfg.VerifyInterval, jobs.Verify); err != nil {
			return err
		}
	}

	if jobs.Logs != nil && cfg.LogRetention != "" {
		retention, err := time.ParseDuration(cfg.LogRetention)
		if err != nil {
			return fmt.Errorf("invalid log retention %q: %w", cfg.LogRetention, err)
		}
		// Pruning more often than daily buys nothing.
		err = s.Add(TagLogPrune, 24*time.Hour, func(ctx context.Context) error {
			n, err := jobs.Logs.DeleteBefore(ctx, s.now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				s.logger.Info("pruned processing logs", "deleted", n, "retention", retention)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) addInterval(tag, interval string, fn func(ctx context.Context) error) error {
	if interval == "" {
		return nil
	}
	d, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("invalid interval for %s %q: %w", tag, interval, err)
	}
	return s.Add(tag, d, fn)
}

// Add schedules fn every interval under tag.
func (s *Scheduler) Add(tag string, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", tag)
	}
	_, err := s.scheduler.Every(interval).Tag(tag).Do(func() {
		s.run(tag, fn)
	})
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", tag, err)
	}
	s.logger.Debug("job scheduled", "job", tag, "every", interval)
	return nil
}

func (s *Scheduler) run(tag string, fn func(ctx context.Context) error) {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := fn(s.ctx); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("scheduled job failed", "job", tag, "error", err)
		return
	}
	s.logger.Debug("scheduled job finished", "job", tag, "elapsed", time.Since(start))
}

// RunNow triggers the job tagged tag immediately.
func (s *Scheduler) RunNow(tag string) error {
	return s.scheduler.RunByTag(tag)
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop halts the scheduler and cancels running jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// Tags lists the registered job tags in sorted order.
func (s *Scheduler) Tags() []string {
	var tags []string
	for _, j := range s.scheduler.Jobs() {
		tags = append(tags, j.Tags()...)
	}
	sort.Strings(tags)
	return tags
}
