package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/shajaurahman10/remindly-pay-flow/internal/clients"
	"github.com/shajaurahman10/remindly-pay-flow/internal/observability/metrics"
	"github.com/shajaurahman10/remindly-pay-flow/pkg/logging"
)

// Dispatcher delivers a single reminder and reports how many attempts the
// delivery took. An error means the job is terminally failed.
type Dispatcher interface {
	SendReminder(ctx context.Context, c *clients.Client, offsetLabel string) (SendReceipt, error)
}

// SendReceipt describes a completed dispatch.
type SendReceipt struct {
	MessageID string
	Attempts  int
}

// ReminderRecorder is notified after a successful dispatch so the client
// record's last-reminder timestamp moves under the reconciler's lock.
type ReminderRecorder interface {
	MarkReminded(ctx context.Context, clientID string, at time.Time) error
}

// Scheduler plans reminder jobs for live clients and hands due jobs to the
// dispatcher on a fixed tick. The first drain runs immediately so instants
// missed while the process was down dispatch on boot.
type Scheduler struct {
	repo     clients.Repository
	jobs     JobStore
	sender   Dispatcher
	recorder ReminderRecorder
	metrics  *metrics.EngineMetrics
	logger   *logging.Logger

	offsetsDays []int
	interval    time.Duration
	now         func() time.Time
}

// NewScheduler wires a scheduler with default offsets [3,1,0] and a 1m tick.
func NewScheduler(repo clients.Repository, jobs JobStore, sender Dispatcher, recorder ReminderRecorder, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		repo:        repo,
		jobs:        jobs,
		sender:      sender,
		recorder:    recorder,
		logger:      logger,
		offsetsDays: []int{3, 1, 0},
		interval:    time.Minute,
		now:         time.Now,
	}
}

func (s *Scheduler) WithOffsets(days []int) *Scheduler {
	if len(days) > 0 {
		s.offsetsDays = days
	}
	return s
}

func (s *Scheduler) WithInterval(d time.Duration) *Scheduler {
	if d > 0 {
		s.interval = d
	}
	return s
}

func (s *Scheduler) WithMetrics(m *metrics.EngineMetrics) *Scheduler {
	s.metrics = m
	return s
}

// Run drains immediately, then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

// drain performs one scheduling pass: regenerate jobs for live clients,
// then dispatch everything due.
func (s *Scheduler) drain(ctx context.Context) {
	if s.repo == nil || s.jobs == nil {
		return
	}
	now := s.now()
	s.generate(ctx, now)
	s.dispatchDue(ctx, now)
}

func (s *Scheduler) generate(ctx context.Context, now time.Time) {
	live, err := s.repo.ListLive(ctx, now)
	if err != nil {
		s.logger.Error("list live clients failed", "error", err)
		return
	}
	for _, c := range live {
		for _, job := range PlanJobs(c, s.offsetsDays) {
			created, err := s.jobs.Upsert(ctx, job)
			if err != nil {
				s.logger.Error("job upsert failed", "error", err, "client_id", c.ID)
				continue
			}
			if created {
				s.metrics.ObserveReminderJob("created")
			}
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	if s.sender == nil {
		return
	}
	due, err := s.jobs.ListDue(ctx, now)
	if err != nil {
		s.logger.Error("list due jobs failed", "error", err)
		return
	}
	for _, job := range due {
		if ctx.Err() != nil {
			return
		}
		s.dispatchOne(ctx, job, now)
	}
}

func (s *Scheduler) dispatchOne(ctx context.Context, job Job, now time.Time) {
	c, err := s.repo.GetByID(ctx, job.ClientID)
	if err != nil {
		if errors.Is(err, clients.ErrClientNotFound) {
			// The record was archived out from under the job.
			if err := s.jobs.MarkFailed(ctx, job.ClientID, job.ScheduledAt, 0, "client not found"); err != nil {
				s.logger.Error("mark orphan job failed", "error", err, "client_id", job.ClientID)
			}
			return
		}
		s.logger.Error("load client for dispatch failed", "error", err, "client_id", job.ClientID)
		return
	}

	if !c.Live(now) {
		// Paid between generation and dispatch; the reconciler usually
		// cancels first, this is the tick-side safety net.
		if _, err := s.jobs.CancelForClient(ctx, c.ID); err != nil {
			s.logger.Error("cancel jobs for paid client failed", "error", err, "client_id", c.ID)
			return
		}
		s.metrics.ObserveReminderJob("cancelled")
		return
	}

	receipt, err := s.sender.SendReminder(ctx, c, job.OffsetLabel)
	if err != nil {
		s.logger.Warn("reminder dispatch failed", "error", err, "client_id", c.ID, "offset", job.OffsetLabel)
		s.metrics.ObserveReminderJob("failed")
		s.metrics.ObserveDispatch("failed")
		if markErr := s.jobs.MarkFailed(ctx, job.ClientID, job.ScheduledAt, receipt.Attempts, err.Error()); markErr != nil {
			s.logger.Error("mark job failed errored", "error", markErr, "client_id", c.ID)
		}
		return
	}

	dispatchedAt := s.now()
	if err := s.jobs.MarkDispatched(ctx, job.ClientID, job.ScheduledAt, receipt.Attempts, dispatchedAt); err != nil {
		s.logger.Error("mark job dispatched failed", "error", err, "client_id", c.ID)
	}
	if s.recorder != nil {
		if err := s.recorder.MarkReminded(ctx, c.ID, dispatchedAt); err != nil {
			s.logger.Warn("record last reminder failed", "error", err, "client_id", c.ID)
		}
	}
	s.metrics.ObserveReminderJob("dispatched")
	s.metrics.ObserveDispatch("sent")
	s.logger.Info("reminder dispatched", "client_id", c.ID, "offset", job.OffsetLabel, "message_id", receipt.MessageID)
}
