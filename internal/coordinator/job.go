package coordinator

import (
	"time"

	"github.com/google/uuid"
)

// Trigger identifies what caused a sync job to be created.
type Trigger string

const (
	TriggerWebhook   Trigger = "webhook"
	TriggerManual    Trigger = "manual"
	TriggerReconcile Trigger = "reconcile"
)

// Stage names the phases a running sync job moves through.
type Stage string

const (
	StageFetching  Stage = "fetching"
	StageRewriting Stage = "rewriting"
	StageIndexing  Stage = "indexing"
)

// JobStatus is the lifecycle state of a sync job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Job is one unit of fetch+rewrite+index work for a repository at a specific
// revision. An empty revision means the branch head at execution time.
type Job struct {
	ID          string     `json:"id"`
	Owner       string     `json:"owner"`
	Name        string     `json:"name"`
	Revision    string     `json:"revision,omitempty"`
	Trigger     Trigger    `json:"trigger"`
	Status      JobStatus  `json:"status"`
	Stage       Stage      `json:"stage,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	// SyncedRevision is the commit hash the job actually materialized,
	// resolved from the branch head when no revision was pinned.
	SyncedRevision string `json:"synced_revision,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NewJob creates a queued sync job for a repository.
func NewJob(owner, name, revision string, trigger Trigger) *Job {
	if revision == "latest" {
		revision = ""
	}
	return &Job{
		ID:         uuid.NewString(),
		Owner:      owner,
		Name:       name,
		Revision:   revision,
		Trigger:    trigger,
		Status:     JobQueued,
		EnqueuedAt: time.Now().UTC(),
	}
}

// FullName returns the owner/name identity of the job's repository.
func (j *Job) FullName() string { return j.Owner + "/" + j.Name }

// DedupKey is the identity used to suppress duplicate deliveries.
func (j *Job) DedupKey() string { return DedupKey(j.Owner, j.Name, j.Revision) }

// DedupKey forms the duplicate-suppression key for a delivery.
func DedupKey(owner, name, revision string) string {
	return owner + "/" + name + "@" + revision
}
