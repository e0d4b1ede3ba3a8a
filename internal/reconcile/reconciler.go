package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shajaurahman10/remindly-pay-flow/internal/clients"
	"github.com/shajaurahman10/remindly-pay-flow/internal/events"
	"github.com/shajaurahman10/remindly-pay-flow/internal/observability/metrics"
	"github.com/shajaurahman10/remindly-pay-flow/internal/reminders"
	"github.com/shajaurahman10/remindly-pay-flow/pkg/logging"
)

// Outcome classifies the result of applying a payment event.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeDeduped  Outcome = "deduped"
	OutcomeRejected Outcome = "rejected"
	// OutcomeQueued means the event referenced a client record that does not
	// exist yet; it was handed to the retry queue for a delayed re-attempt.
	OutcomeQueued Outcome = "queued"
)

// Result carries the outcome and, for rejections, the reason.
type Result struct {
	Outcome Outcome
	Reason  string
}

const (
	reasonInvalidEvent  = "invalid_event"
	reasonUnknownClient = "unknown_client"
)

// Reconciler merges payment events from the webhook and live feeds into the
// per-client record. It is the single writer for client records: every
// mutation for a given client happens under that client's lock, so status
// transitions stay monotonic regardless of event interleaving.
type Reconciler struct {
	repo    clients.Repository
	jobs    reminders.JobStore
	tracker ProcessedTracker
	metrics *metrics.EngineMetrics
	logger  *logging.Logger

	// Events can arrive for a client created moments later; such events are
	// parked on retryCh and re-applied by Run instead of blocking the caller.
	retryAttempts int
	retryDelay    time.Duration
	retryCh       chan pendingEvent

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// pendingEvent is an event waiting for its client record to appear.
type pendingEvent struct {
	ev      events.PaymentEvent
	attempt int
}

const retryQueueSize = 64

// New creates a reconciler. The tracker may be nil, in which case dedup
// relies solely on the client record.
func New(repo clients.Repository, jobs reminders.JobStore, tracker ProcessedTracker, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		repo:          repo,
		jobs:          jobs,
		tracker:       tracker,
		logger:        logger,
		retryAttempts: 3,
		retryDelay:    2 * time.Second,
		retryCh:       make(chan pendingEvent, retryQueueSize),
		locks:         make(map[string]*sync.Mutex),
	}
}

func (r *Reconciler) WithMetrics(m *metrics.EngineMetrics) *Reconciler {
	r.metrics = m
	return r
}

func (r *Reconciler) WithUnknownClientRetry(attempts int, delay time.Duration) *Reconciler {
	if attempts >= 0 {
		r.retryAttempts = attempts
	}
	if delay >= 0 {
		r.retryDelay = delay
	}
	return r
}

// Apply merges one payment event into its client record. When the record
// does not exist yet, the event is queued for a delayed re-attempt rather
// than blocking the caller; Run drains that queue.
func (r *Reconciler) Apply(ctx context.Context, ev events.PaymentEvent) (Result, error) {
	return r.apply(ctx, ev, 0)
}

func (r *Reconciler) apply(ctx context.Context, ev events.PaymentEvent, attempt int) (Result, error) {
	if !ev.Valid() {
		r.observe(ev, "rejected")
		return Result{Outcome: OutcomeRejected, Reason: reasonInvalidEvent}, nil
	}

	unlock := r.lockClient(ev.ClientID)
	defer unlock()

	c, err := r.repo.GetByID(ctx, ev.ClientID)
	if err != nil {
		if errors.Is(err, clients.ErrClientNotFound) {
			return r.deferOrReject(ev, attempt), nil
		}
		return Result{}, err
	}

	switch ev.Status {
	case events.StatusPaid:
		return r.applyPaid(ctx, c, ev)
	case events.StatusFailed:
		return r.applyFailed(c, ev)
	}
	r.observe(ev, "rejected")
	return Result{Outcome: OutcomeRejected, Reason: reasonInvalidEvent}, nil
}

func (r *Reconciler) applyPaid(ctx context.Context, c *clients.Client, ev events.PaymentEvent) (Result, error) {
	if c.Status == clients.StatusPaid {
		// Replay of the recorded payment or a second capture for an already
		// settled client; paid is absorbing either way.
		if ev.GatewayPaymentID != "" && ev.GatewayPaymentID != c.GatewayPaymentID {
			r.logger.Info("ignoring paid event for settled client",
				"client_id", c.ID, "gateway_payment_id", ev.GatewayPaymentID)
		}
		r.observe(ev, "deduped")
		return Result{Outcome: OutcomeDeduped}, nil
	}

	if ev.GatewayPaymentID != "" && r.tracker != nil {
		seen, err := r.tracker.AlreadyProcessed(ctx, ev.GatewayPaymentID)
		if err != nil {
			// Tracker outage degrades to record-based dedup, never to a drop.
			r.logger.Warn("processed tracker lookup failed", "error", err)
		} else if seen {
			r.observe(ev, "deduped")
			return Result{Outcome: OutcomeDeduped}, nil
		}
	}

	c.Status = clients.StatusPaid
	c.GatewayPaymentID = ev.GatewayPaymentID
	c.ReconciledEventID = ev.ID
	updated, err := r.repo.Update(ctx, c)
	if err != nil {
		return Result{}, err
	}

	if r.jobs != nil {
		cancelled, err := r.jobs.CancelForClient(ctx, updated.ID)
		if err != nil {
			r.logger.Error("cancel reminder jobs failed", "error", err, "client_id", updated.ID)
		} else if cancelled > 0 {
			r.metrics.ObserveReminderJob("cancelled")
		}
	}

	if r.tracker != nil && ev.GatewayPaymentID != "" {
		if err := r.tracker.MarkProcessed(ctx, ev.GatewayPaymentID); err != nil {
			r.logger.Warn("mark processed failed", "error", err)
		}
	}

	r.logger.Info("client reconciled as paid",
		"client_id", updated.ID, "source", ev.Source, "gateway_payment_id", ev.GatewayPaymentID, "version", updated.Version)
	r.observe(ev, "applied")
	return Result{Outcome: OutcomeApplied}, nil
}

func (r *Reconciler) applyFailed(c *clients.Client, ev events.PaymentEvent) (Result, error) {
	// A failed attempt neither reverts paid nor downgrades pending; it is
	// recorded for observability only.
	r.logger.Info("payment attempt failed",
		"client_id", c.ID, "source", ev.Source, "gateway_payment_id", ev.GatewayPaymentID, "status", c.Status)
	r.observe(ev, "applied")
	return Result{Outcome: OutcomeApplied}, nil
}

// MarkReminded records the most recent successful reminder dispatch on the
// client record, under the same per-client lock as event application.
func (r *Reconciler) MarkReminded(ctx context.Context, clientID string, at time.Time) error {
	unlock := r.lockClient(clientID)
	defer unlock()

	c, err := r.repo.GetByID(ctx, clientID)
	if err != nil {
		return err
	}
	t := at.UTC()
	c.LastReminderAt = &t
	_, err = r.repo.Update(ctx, c)
	return err
}

// deferOrReject parks an event whose client record has not been written yet.
// The enqueue never blocks; a full queue or an exhausted attempt budget ends
// in final rejection with an operator-visible warning.
func (r *Reconciler) deferOrReject(ev events.PaymentEvent, attempt int) Result {
	if attempt < r.retryAttempts {
		select {
		case r.retryCh <- pendingEvent{ev: ev, attempt: attempt + 1}:
			r.logger.Info("event queued for unknown client",
				"client_id", ev.ClientID, "source", ev.Source, "attempt", attempt+1)
			r.observe(ev, "queued")
			return Result{Outcome: OutcomeQueued, Reason: reasonUnknownClient}
		default:
			r.logger.Warn("unknown-client retry queue full", "client_id", ev.ClientID)
		}
	}
	r.logger.Warn("event references unknown client",
		"client_id", ev.ClientID, "source", ev.Source, "gateway_payment_id", ev.GatewayPaymentID)
	r.observe(ev, "rejected")
	return Result{Outcome: OutcomeRejected, Reason: reasonUnknownClient}
}

// Run re-applies queued unknown-client events after the configured delay,
// blocking until the context is cancelled. Events still queued at shutdown
// are abandoned; the webhook feed redelivers them.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-r.retryCh:
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.retryDelay):
			}
			if _, err := r.apply(ctx, p.ev, p.attempt); err != nil {
				r.logger.Error("queued event re-apply failed",
					"error", err, "client_id", p.ev.ClientID, "attempt", p.attempt)
			}
		}
	}
}

func (r *Reconciler) lockClient(clientID string) func() {
	r.mu.Lock()
	lock, ok := r.locks[clientID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[clientID] = lock
	}
	r.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (r *Reconciler) observe(ev events.PaymentEvent, outcome string) {
	r.metrics.ObserveEvent(string(ev.Source), outcome)
}
