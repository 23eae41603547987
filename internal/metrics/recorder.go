package metrics

import "time"

// WebhookResultLabel enumerates ingress outcomes for delivery counters.
type WebhookResultLabel string

const (
	WebhookAccepted     WebhookResultLabel = "accepted"
	WebhookDeduplicated WebhookResultLabel = "deduplicated"
	WebhookIgnored      WebhookResultLabel = "ignored"
	WebhookRejected     WebhookResultLabel = "rejected"
)

// SyncOutcomeLabel enumerates terminal sync job outcomes.
type SyncOutcomeLabel string

const (
	SyncSuccess  SyncOutcomeLabel = "success"
	SyncFailed   SyncOutcomeLabel = "failed"
	SyncCanceled SyncOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for webhook, sync, and search metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods must
// be safe for nil receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	IncWebhookDelivery(result WebhookResultLabel)
	ObserveStageDuration(stage string, d time.Duration)
	ObserveJobDuration(d time.Duration)
	IncSyncOutcome(outcome SyncOutcomeLabel)
	SetQueueDepth(n int)
	SetActiveSyncs(n int)
	AddUnresolvedLinks(repo string, n int)
	IncFetchRetry(reason string)
	ObserveSearchDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncWebhookDelivery(WebhookResultLabel)      {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveJobDuration(time.Duration)           {}
func (NoopRecorder) IncSyncOutcome(SyncOutcomeLabel)            {}
func (NoopRecorder) SetQueueDepth(int)                          {}
func (NoopRecorder) SetActiveSyncs(int)                         {}
func (NoopRecorder) AddUnresolvedLinks(string, int)             {}
func (NoopRecorder) IncFetchRetry(string)                       {}
func (NoopRecorder) ObserveSearchDuration(time.Duration)        {}
