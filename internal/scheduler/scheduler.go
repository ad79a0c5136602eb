// Package scheduler runs the engine's periodic jobs: autosave, reset cycle
// checks and database backups.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"laurels/pkg/logger"
)

const (
	JobAutosave    = "autosave"
	JobResetCycles = "reset-cycles"
	JobBackup      = "backup"

	jobTimeout    = 30 * time.Second
	backupTimeout = 10 * time.Minute
)

// Engine is the part of the coordinator the jobs call into
type Engine interface {
	Save(ctx context.Context) error
	ApplyResetCycles(ctx context.Context, now time.Time) []string
}

// BackupFunc snapshots the progress database
type BackupFunc func(ctx context.Context) error

// Config sets job intervals. A zero interval disables the job; the backup
// job also needs Backup.
type Config struct {
	AutosaveInterval   time.Duration
	ResetCheckInterval time.Duration
	BackupInterval     time.Duration
	Backup             BackupFunc
}

// Scheduler owns a gocron scheduler. Jobs run in singleton mode so a slow
// save is never overlapped by the next one.
type Scheduler struct {
	sched  gocron.Scheduler
	engine Engine
	backup BackupFunc
	jobs   map[string]gocron.Job
	logger *logger.Logger
	now    func() time.Time
}

// New creates the scheduler and registers the configured jobs. Nothing
// runs until Start.
func New(engine Engine, cfg Config, log *logger.Logger) (*Scheduler, error) {
	log = logger.OrDefault(log, "SCHEDULER")
	sched, err := gocron.NewScheduler(
		gocron.WithLogger(logger.AsSchedulerLogger(log)),
		gocron.WithGlobalJobOptions(gocron.WithSingletonMode(gocron.LimitModeReschedule)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		sched:  sched,
		engine: engine,
		backup: cfg.Backup,
		jobs:   make(map[string]gocron.Job),
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if cfg.AutosaveInterval > 0 {
		if err := s.add(JobAutosave, cfg.AutosaveInterval, s.autosave); err != nil {
			sched.Shutdown()
			return nil, err
		}
	}
	if cfg.ResetCheckInterval > 0 {
		if err := s.add(JobResetCycles, cfg.ResetCheckInterval, s.resetCycles); err != nil {
			sched.Shutdown()
			return nil, err
		}
	}
	if cfg.BackupInterval > 0 && cfg.Backup != nil {
		if err := s.add(JobBackup, cfg.BackupInterval, s.runBackup); err != nil {
			sched.Shutdown()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name string, every time.Duration, fn func()) error {
	job, err := s.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(fn),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s job: %w", name, err)
	}
	s.jobs[name] = job
	s.logger.Info("Scheduled %s every %s", name, every)
	return nil
}

// Start begins running jobs
func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops the scheduler and waits for running jobs
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// Jobs returns the names of the registered jobs
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, name := range []string{JobAutosave, JobResetCycles, JobBackup} {
		if _, ok := s.jobs[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// RunNow triggers a job immediately. The scheduler must be started.
func (s *Scheduler) RunNow(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

func (s *Scheduler) autosave() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.engine.Save(ctx); err != nil {
		s.logger.Error("Autosave failed: %v", err)
		return
	}
	s.logger.Debug("Autosave complete")
}

func (s *Scheduler) resetCycles() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if ids := s.engine.ApplyResetCycles(ctx, s.now()); len(ids) > 0 {
		s.logger.Info("Reset cycles elapsed for %v", ids)
	}
}

func (s *Scheduler) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if err := s.backup(ctx); err != nil {
		s.logger.Error("Scheduled backup failed: %v", err)
	}
}
