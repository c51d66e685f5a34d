// Package jobs runs periodic maintenance tasks on a gocron scheduler.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Task is one unit of scheduled work. The context is cancelled when the
// scheduler stops.
type Task func(ctx context.Context) error

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string
	NextRun time.Time
}

type Scheduler struct {
	cron   *gocron.Scheduler
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler that interprets wall-clock times in loc.
// A job never overlaps with a still-running instance of itself.
func NewScheduler(loc *time.Location, logger zerolog.Logger) *Scheduler {
	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron,
		logger: logger.With().Str("component", "jobs").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Daily registers task to run every day at "HH:MM".
func (s *Scheduler) Daily(name, at string, task Task) error {
	_, err := s.cron.Every(1).Day().At(at).Tag(name).Do(s.run, name, task)
	if err != nil {
		return fmt.Errorf("schedule %s at %q: %w", name, at, err)
	}
	return nil
}

// Every registers task to run at a fixed interval.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", name)
	}
	_, err := s.cron.Every(interval).Tag(name).Do(s.run, name, task)
	if err != nil {
		return fmt.Errorf("schedule %s every %s: %w", name, interval, err)
	}
	return nil
}

func (s *Scheduler) run(name string, task Task) {
	start := time.Now()
	log := s.logger.With().Str("job", name).Logger()
	log.Info().Msg("job started")

	if err := task(s.ctx); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("job finished")
}

// Jobs lists registered jobs ordered by name.
func (s *Scheduler) Jobs() []JobInfo {
	var out []JobInfo
	for _, j := range s.cron.Jobs() {
		name := ""
		if tags := j.Tags(); len(tags) > 0 {
			name = tags[0]
		}
		out = append(out, JobInfo{Name: name, NextRun: j.NextRun()})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
	for _, j := range s.Jobs() {
		s.logger.Info().Str("job", j.Name).Time("next_run", j.NextRun).Msg("job scheduled")
	}
}

// Stop cancels running tasks' context and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
}
