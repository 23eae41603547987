package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	webhookResults  *prom.CounterVec
	stageDuration   *prom.HistogramVec
	jobDuration     prom.Histogram
	syncOutcomes    *prom.CounterVec
	queueDepth      prom.Gauge
	activeSyncs     prom.Gauge
	unresolvedLinks *prom.CounterVec
	fetchRetries    *prom.CounterVec
	searchDuration  prom.Histogram
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.webhookResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsync",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery dispositions",
		}, []string{"result"})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docsync",
			Name:      "sync_stage_duration_seconds",
			Help:      "Duration of individual sync stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.jobDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docsync",
			Name:      "sync_job_duration_seconds",
			Help:      "Total sync job duration",
			Buckets:   prom.DefBuckets,
		})
		pr.syncOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsync",
			Name:      "sync_outcomes_total",
			Help:      "Sync job outcomes by final status",
		}, []string{"outcome"})
		pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: "docsync",
			Name:      "queue_depth",
			Help:      "Pending sync jobs across all repository queues",
		})
		pr.activeSyncs = prom.NewGauge(prom.GaugeOpts{
			Namespace: "docsync",
			Name:      "active_syncs",
			Help:      "Repository syncs currently in flight",
		})
		pr.unresolvedLinks = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsync",
			Name:      "unresolved_links_total",
			Help:      "Links that could not be resolved during rewriting",
		}, []string{"repo"})
		pr.fetchRetries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsync",
			Name:      "fetch_retries_total",
			Help:      "Fetch retries by failure reason",
		}, []string{"reason"})
		pr.searchDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docsync",
			Name:      "search_query_duration_seconds",
			Help:      "Search query latency",
			Buckets:   prom.DefBuckets,
		})
		reg.MustRegister(pr.webhookResults, pr.stageDuration, pr.jobDuration, pr.syncOutcomes, pr.queueDepth, pr.activeSyncs, pr.unresolvedLinks, pr.fetchRetries, pr.searchDuration)
	})
	return pr
}

func (p *PrometheusRecorder) IncWebhookDelivery(result WebhookResultLabel) {
	if p == nil || p.webhookResults == nil {
		return
	}
	p.webhookResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveJobDuration(d time.Duration) {
	if p == nil || p.jobDuration == nil {
		return
	}
	p.jobDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSyncOutcome(outcome SyncOutcomeLabel) {
	if p == nil || p.syncOutcomes == nil {
		return
	}
	p.syncOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func (p *PrometheusRecorder) SetActiveSyncs(n int) {
	if p == nil || p.activeSyncs == nil {
		return
	}
	p.activeSyncs.Set(float64(n))
}

func (p *PrometheusRecorder) AddUnresolvedLinks(repo string, n int) {
	if p == nil || p.unresolvedLinks == nil || n <= 0 {
		return
	}
	p.unresolvedLinks.WithLabelValues(repo).Add(float64(n))
}

func (p *PrometheusRecorder) IncFetchRetry(reason string) {
	if p == nil || p.fetchRetries == nil {
		return
	}
	p.fetchRetries.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) ObserveSearchDuration(d time.Duration) {
	if p == nil || p.searchDuration == nil {
		return
	}
	p.searchDuration.Observe(d.Seconds())
}
