package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/coordinator"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/server/handlers"
)

type stubSyncer struct{}

func (stubSyncer) Enqueue(*coordinator.Job) error            { return nil }
func (stubSyncer) SeenRecently(owner, name, rev string) bool { return false }
func (stubSyncer) Status() coordinator.Snapshot              { return coordinator.Snapshot{} }

func testServer(t *testing.T, reg *prometheus.Registry) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Webhook.Secret = "secret"
	srv := New(cfg, Options{
		API:      handlers.APIDeps{Syncer: stubSyncer{}},
		Registry: reg,
	})
	return srv.Handler()
}

func TestRoutesHealthEndpoint(t *testing.T) {
	h := testServer(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpointRequiresRegistry(t *testing.T) {
	h := testServer(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	reg := prometheus.NewRegistry()
	metrics.NewPrometheusRecorder(reg).IncWebhookDelivery(metrics.WebhookAccepted)
	h = testServer(t, reg)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docsync")
}

func TestWebhookRouteRejectsUnsignedDelivery(t *testing.T) {
	h := testServer(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/github", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
