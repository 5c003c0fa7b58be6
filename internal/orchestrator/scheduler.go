package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleConfig carries the three job cron expressions plus the IANA
// timezone they're evaluated in (e.g. "UTC", "America/New_York").
type ScheduleConfig struct {
	RefreshCron string
	UserCron    string
	VideoCron   string
	Timezone    string
}

// ScheduledJob describes one cron entry for status reporting.
type ScheduledJob struct {
	Name     JobName   `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	Running  bool      `json:"running"`
}

// Scheduler drives the orchestrator's three jobs on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	o        *Orchestrator
	logger   *slog.Logger
	timezone string
	entries  []scheduledEntry
}

type scheduledEntry struct {
	job      JobName
	schedule string
	entryID  cron.EntryID
}

// NewScheduler builds a Scheduler. cfg.Timezone defaults to UTC if empty; an
// unrecognized zone name is returned as an error. Call Start to begin firing jobs; call Stop to halt new
// firings and let in-flight runs finish.
func NewScheduler(o *Orchestrator, cfg ScheduleConfig, logger *slog.Logger) (*Scheduler, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading sync timezone %q: %w", tz, err)
	}

	c := cron.New(cron.WithLocation(loc))
	s := &Scheduler{cron: c, o: o, logger: logger, timezone: tz}

	jobs := []struct {
		name JobName
		expr string
	}{
		{JobRefreshTokens, cfg.RefreshCron},
		{JobUser, cfg.UserCron},
		{JobVideo, cfg.VideoCron},
	}
	for _, j := range jobs {
		id, err := c.AddFunc(j.expr, s.runner(j.name))
		if err != nil {
			return nil, fmt.Errorf("scheduling %s job %q: %w", j.name, j.expr, err)
		}
		s.entries = append(s.entries, scheduledEntry{job: j.name, schedule: j.expr, entryID: id})
	}
	return s, nil
}

func (s *Scheduler) runner(job JobName) func() {
	return func() {
		ctx := context.Background()
		if _, err := s.o.RunJob(ctx, job, ""); err != nil {
			s.logger.Error("scheduled sync job failed", "job", job, "error", err)
		}
	}
}

// Start begins firing scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts future firings and returns a context that is done once running
// jobs have finished. Scheduled runs are started with context.Background(),
// so neither Stop nor the caller's shutdown signal cancels a run already in
// flight.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Timezone returns the IANA zone name the schedule is evaluated in.
func (s *Scheduler) Timezone() string {
	return s.timezone
}

// Jobs reports each scheduled job's cron expression, next fire time, and
// whether a run is currently in flight.
func (s *Scheduler) Jobs() []ScheduledJob {
	out := make([]ScheduledJob, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, ScheduledJob{
			Name:     e.job,
			Schedule: e.schedule,
			NextRun:  s.cron.Entry(e.entryID).Next,
			Running:  s.o.isRunning(e.job),
		})
	}
	return out
}
