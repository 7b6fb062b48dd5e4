package scheduler

import (
	"context"
	"fmt"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a runnable pipeline stage.
type Job func(ctx context.Context) error

// Service schedules the pipeline stages on their configured cron expressions.
type Service struct {
	config *config.Config
	cron   *cron.Cron

	ingest    Job
	triage    Job
	synthesis Job
	drafts    Job
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, ingest, triage, synthesis, drafts Job) *Service {
	return &Service{
		config:    cfg,
		cron:      cron.New(cron.WithSeconds()),
		ingest:    ingest,
		triage:    triage,
		synthesis: synthesis,
		drafts:    drafts,
	}
}

// Start registers every stage and begins the cron loop.
func (s *Service) Start() error {
	entries := []struct {
		name     string
		schedule string
		job      Job
	}{
		{"ingest", s.config.IngestSchedule, s.ingest},
		{"triage", s.config.TriageSchedule, s.triage},
		{"synthesis", s.config.SynthesisSchedule, s.synthesis},
		{"drafts", s.config.DraftsSchedule, s.drafts},
	}

	for _, entry := range entries {
		if entry.job == nil {
			logrus.Infof("Stage %s not configured, skipping schedule", entry.name)
			continue
		}
		name, job := entry.name, entry.job
		if _, err := s.cron.AddFunc(entry.schedule, func() {
			logrus.Infof("Starting scheduled %s run", name)
			if err := job(context.Background()); err != nil {
				logrus.Errorf("Scheduled %s run failed: %v", name, err)
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", entry.name, entry.schedule, err)
		}
		logrus.Infof("Scheduled %s run: %s", entry.name, entry.schedule)
	}

	s.cron.Start()
	logrus.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
