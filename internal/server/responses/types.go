// Package responses defines API response types used by docsync HTTP handlers.
package responses

import "time"

// WebhookResponse is returned for every processed webhook delivery.
type WebhookResponse struct {
	Status     string `json:"status"` // "accepted", "deduplicated", "ignored"
	JobID      string `json:"job_id,omitempty"`
	Repository string `json:"repository,omitempty"`
	Message    string `json:"message,omitempty"`
}

// TriggerResponse is returned when a sync is scheduled through the API.
type TriggerResponse struct {
	Status     string `json:"status"`
	JobID      string `json:"job_id"`
	Repository string `json:"repository"`
}

// EnrollResponse wraps a newly created enrollment and its initial sync job.
type EnrollResponse struct {
	Enrollment any    `json:"enrollment"`
	JobID      string `json:"job_id,omitempty"`
}

// EnrollmentListResponse lists enrollments with a count.
type EnrollmentListResponse struct {
	Repositories any `json:"repositories"`
	Count        int `json:"count"`
}

// StatusResponse reports one repository's sync state and recent history.
type StatusResponse struct {
	Enrollment any `json:"enrollment"`
	Active     any `json:"active,omitempty"`
	Pending    any `json:"pending,omitempty"`
	History    any `json:"history,omitempty"`
}

// JobsResponse is a snapshot of coordinator queue state.
type JobsResponse struct {
	Active  any `json:"active"`
	Pending any `json:"pending"`
	Recent  any `json:"recent"`
}

// PurgeResponse acknowledges removal of a repository's search entries.
type PurgeResponse struct {
	Status     string `json:"status"`
	Repository string `json:"repository"`
}

// HealthResponse represents the health check API response.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version"`
	Uptime      float64   `json:"uptime"`
	ActiveSyncs int       `json:"active_syncs"`
	QueuedSyncs int       `json:"queued_syncs"`
}
