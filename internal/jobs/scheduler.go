// Package jobs runs the background work of the API on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs named jobs on six-field cron expressions (seconds first).
// A job still running when its next tick arrives is skipped, and a panicking job is recovered.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	mu     sync.Mutex
	jobs   map[string]job
}

type job struct {
	id cron.EntryID
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	cronLogger := zapCronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithLogger(cronLogger), cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		)),
		logger: logger,
		jobs:   make(map[string]job),
	}
}

// Start starts the scheduler. Jobs added before this call will begin running.
func (s *Scheduler) Start() {
	s.logger.Info("starting job scheduler", zap.Strings("jobs", s.JobNames()))
	s.cron.Start()
}

// Stop stops scheduling new runs and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("stopping job scheduler")
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// AddJob registers fn under name. Names are unique.
//
// Examples of cronExpr:
//   - "0 0 2 * * *"  - every day at 02:00:00
//   - "0 */15 * * * *" - every 15 minutes
//   - "@every 1h"
func (s *Scheduler) AddJob(name string, cronExpr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	run := func() {
		s.logger.Info("running scheduled job", zap.String("job_name", name))
		fn()
		s.logger.Info("completed scheduled job", zap.String("job_name", name))
	}

	entryID, err := s.cron.AddFunc(cronExpr, run)
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	s.jobs[name] = job{id: entryID}
	s.logger.Info("added scheduled job",
		zap.String("job_name", name),
		zap.String("cron_expr", cronExpr),
	)
	return nil
}

// RunNow runs the named job synchronously, outside its schedule. The run goes
// through the same wrappers as scheduled runs, so it is skipped while the job is
// already running.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}

	entry := s.cron.Entry(j.id)
	if entry.WrappedJob == nil {
		return fmt.Errorf("job %s is not scheduled", name)
	}
	entry.WrappedJob.Run()
	return nil
}

// JobNames returns the registered job names, sorted
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// zapCronLogger routes cron's own logging to zap
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
