package eventstore

import (
	"encoding/json"
	"time"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// Event type names recorded in the journal.
const (
	TypeSyncQueued          = "SyncQueued"
	TypeSyncStarted         = "SyncStarted"
	TypeSyncStageCompleted  = "SyncStageCompleted"
	TypeSyncCompleted       = "SyncCompleted"
	TypeSyncFailed          = "SyncFailed"
	TypeEnrollmentSuspended = "EnrollmentSuspended"
)

// SyncQueued is emitted when a sync job enters a repository's queue.
type SyncQueued struct {
	BaseEvent
	Repository string `json:"repository"`
	Revision   string `json:"revision"`
	Trigger    string `json:"trigger"`
}

// NewSyncQueued creates a SyncQueued event.
func NewSyncQueued(jobID, repository, revision, trigger string) (*SyncQueued, error) {
	payload, err := json.Marshal(map[string]any{
		"repository": repository,
		"revision":   revision,
		"trigger":    trigger,
	})
	if err != nil {
		return nil, ferrors.StoreError("failed to marshal SyncQueued payload").
			WithCause(err).
			WithContext("job_id", jobID).
			Build()
	}

	return &SyncQueued{
		BaseEvent: BaseEvent{
			EventJobID:     jobID,
			EventType:      TypeSyncQueued,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Repository: repository,
		Revision:   revision,
		Trigger:    trigger,
	}, nil
}

// SyncStarted is emitted when a worker picks a job up.
type SyncStarted struct {
	BaseEvent
	Repository string `json:"repository"`
	Trigger    string `json:"trigger"`
}

// NewSyncStarted creates a SyncStarted event.
func NewSyncStarted(jobID, repository, trigger string) (*SyncStarted, error) {
	payload, err := json.Marshal(map[string]any{
		"repository": repository,
		"trigger":    trigger,
	})
	if err != nil {
		return nil, ferrors.StoreError("failed to marshal SyncStarted payload").
			WithCause(err).
			WithContext("job_id", jobID).
			Build()
	}

	return &SyncStarted{
		BaseEvent: BaseEvent{
			EventJobID:     jobID,
			EventType:      TypeSyncStarted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Repository: repository,
		Trigger:    trigger,
	}, nil
}

// SyncStageCompleted is emitted when a job finishes one of its stages.
type SyncStageCompleted struct {
	BaseEvent
	Repository string        `json:"repository"`
	Stage      string        `json:"stage"`
	Duration   time.Duration `json:"duration_ms"`
}

// NewSyncStageCompleted creates a SyncStageCompleted event.
func NewSyncStageCompleted(jobID, repository, stage string, duration time.Duration) (*SyncStageCompleted, error) {
	payload, err := json.Marshal(map[string]any{
		"repository":  repository,
		"stage":       stage,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, ferrors.StoreError("failed to marshal SyncStageCompleted payload").
			WithCause(err).
			WithContext("job_id", jobID).
			WithContext("stage", stage).
			Build()
	}

	return &SyncStageCompleted{
		BaseEvent: BaseEvent{
			EventJobID:     jobID,
			EventType:      TypeSyncStageCompleted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Repository: repository,
		Stage:      stage,
		Duration:   duration,
	}, nil
}

// SyncCompleted is emitted when a sync job succeeds.
type SyncCompleted struct {
	BaseEvent
	Repository string        `json:"repository"`
	Revision   string        `json:"revision"`
	Duration   time.Duration `json:"duration_ms"`
}

// NewSyncCompleted creates a SyncCompleted event.
func NewSyncCompleted(jobID, repository, revision string, duration time.Duration) (*SyncCompleted, error) {
	payload, err := json.Marshal(map[string]any{
		"repository":  repository,
		"revision":    revision,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, ferrors.StoreError("failed to marshal SyncCompleted payload").
			WithCause(err).
			WithContext("job_id", jobID).
			Build()
	}

	return &SyncCompleted{
		BaseEvent: BaseEvent{
			EventJobID:     jobID,
			EventType:      TypeSyncCompleted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Repository: repository,
		Revision:   revision,
		Duration:   duration,
	}, nil
}

// SyncFailed is emitted when a sync job fails or is canceled.
type SyncFailed struct {
	BaseEvent
	Repository string `json:"repository"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// NewSyncFailed creates a SyncFailed event. status distinguishes a failed
// job from a canceled one.
func NewSyncFailed(jobID, repository, status, stage, errorMsg string) (*SyncFailed, error) {
	payload, err := json.Marshal(map[string]any{
		"repository": repository,
		"status":     status,
		"stage":      stage,
		"error":      errorMsg,
	})
	if err != nil {
		return nil, ferrors.StoreError("failed to marshal SyncFailed payload").
			WithCause(err).
			WithContext("job_id", jobID).
			WithContext("stage", stage).
			Build()
	}

	return &SyncFailed{
		BaseEvent: BaseEvent{
			EventJobID:     jobID,
			EventType:      TypeSyncFailed,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Repository: repository,
		Status:     status,
		Stage:      stage,
		Error:      errorMsg,
	}, nil
}

// EnrollmentSuspended is emitted when an enrollment is suspended after its
// repository disappeared upstream.
type EnrollmentSuspended struct {
	BaseEvent
	Repository string `json:"repository"`
	Reason     string `json:"reason"`
}

// NewEnrollmentSuspended creates an EnrollmentSuspended event. jobID may be
// empty when the suspension was not triggered by a tracked job.
func NewEnrollmentSuspended(jobID, repository, reason string) (*EnrollmentSuspended, error) {
	payload, err := json.Marshal(map[string]any{
		"repository": repository,
		"reason":     reason,
	})
	if err != nil {
		return nil, ferrors.StoreError("failed to marshal EnrollmentSuspended payload").
			WithCause(err).
			WithContext("repository", repository).
			Build()
	}

	return &EnrollmentSuspended{
		BaseEvent: BaseEvent{
			EventJobID:     jobID,
			EventType:      TypeEnrollmentSuspended,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Repository: repository,
		Reason:     reason,
	}, nil
}
