package eventstore

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docsync/internal/coordinator"
	"git.home.luguber.info/inful/docsync/internal/logfields"
)

// Journal records sync lifecycle notifications in the event store and keeps
// the history projection current. Journal failures are logged, never
// propagated; the sync itself must not fail because its audit trail did.
type Journal struct {
	store      Store
	projection *SyncHistoryProjection
}

// NewJournal creates a journal writing to store and updating projection.
func NewJournal(store Store, projection *SyncHistoryProjection) *Journal {
	return &Journal{store: store, projection: projection}
}

// Projection exposes the read model for status queries.
func (j *Journal) Projection() *SyncHistoryProjection { return j.projection }

// JobQueued implements coordinator.Notifier.
func (j *Journal) JobQueued(job coordinator.Job) {
	event, err := NewSyncQueued(job.ID, job.FullName(), job.Revision, string(job.Trigger))
	if err != nil {
		j.logDropped(job.ID, TypeSyncQueued, err)
		return
	}
	j.record(event)
}

// JobStarted implements coordinator.Notifier.
func (j *Journal) JobStarted(job coordinator.Job) {
	event, err := NewSyncStarted(job.ID, job.FullName(), string(job.Trigger))
	if err != nil {
		j.logDropped(job.ID, TypeSyncStarted, err)
		return
	}
	j.record(event)
}

// JobStageCompleted implements coordinator.Notifier.
func (j *Journal) JobStageCompleted(job coordinator.Job, stage coordinator.Stage, d time.Duration) {
	event, err := NewSyncStageCompleted(job.ID, job.FullName(), string(stage), d)
	if err != nil {
		j.logDropped(job.ID, TypeSyncStageCompleted, err)
		return
	}
	j.record(event)
}

// JobCompleted implements coordinator.Notifier.
func (j *Journal) JobCompleted(job coordinator.Job) {
	var (
		event Event
		err   error
	)
	if job.Status == coordinator.JobSucceeded {
		event, err = NewSyncCompleted(job.ID, job.FullName(), job.SyncedRevision, job.Duration)
	} else {
		event, err = NewSyncFailed(job.ID, job.FullName(), string(job.Status), string(job.Stage), job.Error)
	}
	if err != nil {
		j.logDropped(job.ID, "terminal", err)
		return
	}
	j.record(event)
}

// EnrollmentSuspended implements coordinator.Notifier.
func (j *Journal) EnrollmentSuspended(owner, name, reason string) {
	event, err := NewEnrollmentSuspended("", owner+"/"+name, reason)
	if err != nil {
		j.logDropped("", TypeEnrollmentSuspended, err)
		return
	}
	j.record(event)
}

func (j *Journal) record(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := j.store.Append(ctx, event.JobID(), event.Type(), event.Payload(), event.Metadata()); err != nil {
		slog.Error("Failed to journal sync event",
			logfields.JobID(event.JobID()),
			slog.String("event_type", event.Type()),
			logfields.Error(err))
		return
	}
	if j.projection != nil {
		j.projection.Apply(event)
	}
}

func (j *Journal) logDropped(jobID, eventType string, err error) {
	slog.Error("Failed to construct sync event",
		logfields.JobID(jobID),
		slog.String("event_type", eventType),
		logfields.Error(err))
}
