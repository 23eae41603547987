package metrics

import (
	"testing"
	"time"
)

// TestNoopRecorderIsSafe exercises every hook on the noop implementation,
// including through a nil PrometheusRecorder, since components inject
// recorders optionally.
func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncWebhookDelivery(WebhookAccepted)
	r.ObserveStageDuration("fetching", time.Millisecond)
	r.ObserveJobDuration(time.Second)
	r.IncSyncOutcome(SyncSuccess)
	r.SetQueueDepth(3)
	r.SetActiveSyncs(1)
	r.AddUnresolvedLinks("acme/guide", 2)
	r.IncFetchRetry("network")
	r.ObserveSearchDuration(time.Millisecond)

	var p *PrometheusRecorder
	p.IncWebhookDelivery(WebhookRejected)
	p.ObserveStageDuration("rewriting", time.Millisecond)
	p.ObserveJobDuration(time.Second)
	p.IncSyncOutcome(SyncFailed)
	p.SetQueueDepth(0)
	p.SetActiveSyncs(0)
	p.AddUnresolvedLinks("acme/guide", 1)
	p.IncFetchRetry("timeout")
	p.ObserveSearchDuration(time.Millisecond)
}
