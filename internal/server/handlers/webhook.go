package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/docsync/internal/coordinator"
	"git.home.luguber.info/inful/docsync/internal/forge"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/registry"
	"git.home.luguber.info/inful/docsync/internal/server/responses"
)

// maxWebhookBody caps webhook payload reads; push payloads are far smaller.
const maxWebhookBody = 10 << 20

// Syncer schedules sync jobs and reports queue state.
type Syncer interface {
	Enqueue(job *coordinator.Job) error
	SeenRecently(owner, name, revision string) bool
	Status() coordinator.Snapshot
}

// WebhookHandlers processes forge push deliveries.
type WebhookHandlers struct {
	store    registry.Store
	syncer   Syncer
	secret   func() string
	docsDir  string
	recorder metrics.Recorder
	adapter  *ferrors.HTTPErrorAdapter
}

// NewWebhookHandlers creates webhook handlers. The secret is a provider so
// config hot reloads take effect without rebuilding the handler chain.
func NewWebhookHandlers(store registry.Store, syncer Syncer, secret func() string, docsDir string, recorder metrics.Recorder, adapter *ferrors.HTTPErrorAdapter) *WebhookHandlers {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if adapter == nil {
		adapter = ferrors.NewHTTPErrorAdapter(slog.Default())
	}
	return &WebhookHandlers{
		store:    store,
		syncer:   syncer,
		secret:   secret,
		docsDir:  docsDir,
		recorder: recorder,
		adapter:  adapter,
	}
}

// HandlePush validates, filters, deduplicates, and enqueues a push delivery.
// Ignored deliveries still answer 200 so the forge does not retry them.
func (h *WebhookHandlers) HandlePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.recorder.IncWebhookDelivery(metrics.WebhookRejected)
		h.adapter.WriteErrorResponse(w, r, ferrors.ValidationError("failed to read webhook body").WithCause(err).Build())
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		signature = r.Header.Get("X-Hub-Signature")
	}
	if !forge.ValidateSignature(body, signature, h.secret()) {
		h.recorder.IncWebhookDelivery(metrics.WebhookRejected)
		slog.Warn("Webhook signature validation failed",
			logfields.RemoteAddr(r.RemoteAddr),
			logfields.UserAgent(r.UserAgent()))
		h.adapter.WriteErrorResponse(w, r, ferrors.SignatureError("webhook signature validation failed").Build())
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	switch eventType {
	case "ping":
		h.ignored(w, "", "pong")
		return
	case "push":
	default:
		h.ignored(w, "", "event type not handled: "+eventType)
		return
	}

	event, err := forge.ParsePushEvent(body)
	if err != nil {
		h.recorder.IncWebhookDelivery(metrics.WebhookRejected)
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	repo := event.Owner + "/" + event.Name

	if event.Deleted {
		h.ignored(w, repo, "branch deletion")
		return
	}

	enrollment, err := h.store.Get(r.Context(), event.Owner, event.Name)
	if err != nil {
		// Unknown repositories are ignored, not errored; the forge will
		// happily keep delivering for repos we never enrolled.
		h.ignored(w, repo, "repository is not enrolled")
		return
	}
	if enrollment.Status != registry.StatusActive {
		h.ignored(w, repo, "enrollment is suspended")
		return
	}
	if event.Branch != enrollment.DefaultBranch {
		h.ignored(w, repo, "push to non-default branch "+event.Branch)
		return
	}
	if !forge.ContainsDocsChanges(event, h.docsDir) {
		h.ignored(w, repo, "no documentation changes")
		return
	}

	if h.syncer.SeenRecently(event.Owner, event.Name, event.HeadRevision) {
		h.recorder.IncWebhookDelivery(metrics.WebhookDeduplicated)
		slog.Info("Duplicate webhook delivery suppressed",
			logfields.Repository(repo),
			logfields.Revision(event.HeadRevision))
		_ = writeJSON(w, http.StatusOK, responses.WebhookResponse{
			Status:     "deduplicated",
			Repository: repo,
		})
		return
	}

	job := coordinator.NewJob(event.Owner, event.Name, event.HeadRevision, coordinator.TriggerWebhook)
	if err := h.syncer.Enqueue(job); err != nil {
		h.recorder.IncWebhookDelivery(metrics.WebhookRejected)
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}

	h.recorder.IncWebhookDelivery(metrics.WebhookAccepted)
	slog.Info("Webhook delivery accepted",
		logfields.JobID(job.ID),
		logfields.Repository(repo),
		logfields.Revision(event.HeadRevision))
	_ = writeJSON(w, http.StatusAccepted, responses.WebhookResponse{
		Status:     "accepted",
		JobID:      job.ID,
		Repository: repo,
	})
}

func (h *WebhookHandlers) ignored(w http.ResponseWriter, repo, reason string) {
	h.recorder.IncWebhookDelivery(metrics.WebhookIgnored)
	_ = writeJSON(w, http.StatusOK, responses.WebhookResponse{
		Status:     "ignored",
		Repository: repo,
		Message:    reason,
	})
}
