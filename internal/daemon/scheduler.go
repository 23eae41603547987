package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docsync/internal/coordinator"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/registry"
)

const defaultReconcileInterval = 6 * time.Hour

// Enqueuer accepts sync jobs; satisfied by the coordinator.
type Enqueuer interface {
	Enqueue(job *coordinator.Job) error
}

// EnrollmentLister exposes the active enrollments the reconcile pass walks.
type EnrollmentLister interface {
	ListActive(ctx context.Context) ([]*registry.Enrollment, error)
}

// Scheduler runs the periodic reconcile pass that repairs drift missed by
// webhooks: every active enrollment gets a sync job at head. Coalescing in
// the coordinator keeps the pass cheap for repositories already in flight.
type Scheduler struct {
	scheduler gocron.Scheduler
	enqueuer  Enqueuer
	store     EnrollmentLister
	interval  time.Duration
}

// NewScheduler creates the reconcile scheduler. A non-positive interval
// falls back to the default.
func NewScheduler(enqueuer Enqueuer, store EnrollmentLister, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.DaemonError("failed to create scheduler").WithCause(err).Build()
	}

	s := &Scheduler{
		scheduler: sched,
		enqueuer:  enqueuer,
		store:     store,
		interval:  interval,
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.reconcile),
		gocron.WithName("reconcile-pass"),
	)
	if err != nil {
		return nil, ferrors.DaemonError("failed to schedule reconcile pass").WithCause(err).Build()
	}

	return s, nil
}

// Start begins the periodic reconcile schedule.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	slog.Info("Reconcile scheduler started", slog.Duration("interval", s.interval))
}

// Stop shuts the scheduler down and waits for a running pass to finish.
func (s *Scheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return ferrors.DaemonError("scheduler shutdown failed").WithCause(err).Build()
	}
	slog.Info("Reconcile scheduler stopped")
	return nil
}

// reconcile enqueues a head sync for every active enrollment. Jobs carry no
// revision: the fetcher resolves the default branch head, so a repository
// that drifted while a webhook was lost converges here.
func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	enrollments, err := s.store.ListActive(ctx)
	if err != nil {
		slog.Error("Reconcile pass could not list enrollments", "error", err)
		return
	}

	queued := 0
	for _, e := range enrollments {
		job := coordinator.NewJob(e.Owner, e.Name, "", coordinator.TriggerReconcile)
		if err := s.enqueuer.Enqueue(job); err != nil {
			slog.Warn("Reconcile enqueue failed",
				logfields.Repository(e.FullName()),
				slog.Any("error", err))
			continue
		}
		queued++
	}

	slog.Info("Reconcile pass completed",
		slog.Int("enrollments", len(enrollments)),
		slog.Int("queued", queued))
}
