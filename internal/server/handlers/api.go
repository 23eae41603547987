package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/docsync/internal/coordinator"
	"git.home.luguber.info/inful/docsync/internal/eventstore"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/registry"
	"git.home.luguber.info/inful/docsync/internal/search"
	"git.home.luguber.info/inful/docsync/internal/server/responses"
	"git.home.luguber.info/inful/docsync/internal/version"
)

const defaultHistoryLimit = 20

// SearchIndex is the slice of the search index the API needs.
type SearchIndex interface {
	Query(ctx context.Context, query string, repositories []string, limit, offset int) (*search.Response, error)
	Purge(ctx context.Context, repository string) error
}

// HistoryReader reads completed sync summaries from the journal projection.
type HistoryReader interface {
	HistoryForRepository(repository string, limit int) []*eventstore.SyncSummary
}

// ContentPublisher removes a repository's published documents.
type ContentPublisher interface {
	RemoveRepo(ctx context.Context, slug string) error
}

// ConfigRegenerator rebuilds the unified configuration artifact.
type ConfigRegenerator interface {
	RegenerateConfig(ctx context.Context) error
}

// APIDeps bundles the collaborators behind the management API.
type APIDeps struct {
	Store      registry.Store
	Syncer     Syncer
	Index      SearchIndex
	Policy     search.AccessPolicy
	History    HistoryReader
	Publisher  ContentPublisher
	Config     ConfigRegenerator
	MaxResults int
}

// APIHandlers serves enrollment management, sync triggers, status, and search.
type APIHandlers struct {
	deps      APIDeps
	recorder  metrics.Recorder
	adapter   *ferrors.HTTPErrorAdapter
	startTime time.Time
}

// NewAPIHandlers creates the management API handlers.
func NewAPIHandlers(deps APIDeps, recorder metrics.Recorder, adapter *ferrors.HTTPErrorAdapter) *APIHandlers {
	if deps.Policy == nil {
		deps.Policy = search.AllowAll{}
	}
	if deps.MaxResults <= 0 {
		deps.MaxResults = 50
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if adapter == nil {
		adapter = ferrors.NewHTTPErrorAdapter(slog.Default())
	}
	return &APIHandlers{
		deps:      deps,
		recorder:  recorder,
		adapter:   adapter,
		startTime: time.Now(),
	}
}

type enrollRequest struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// HandleEnroll registers a repository and schedules its first sync.
func (h *APIHandlers) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.adapter.WriteErrorResponse(w, r, ferrors.ValidationError("invalid JSON body").WithCause(err).Build())
		return
	}
	if req.Owner == "" || req.Name == "" {
		h.adapter.WriteErrorResponse(w, r, ferrors.ValidationError("owner and name are required").Build())
		return
	}

	enrollment, err := h.deps.Store.Enroll(r.Context(), req.Owner, req.Name, req.DefaultBranch)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}

	job := coordinator.NewJob(enrollment.Owner, enrollment.Name, "", coordinator.TriggerManual)
	jobID := job.ID
	if err := h.deps.Syncer.Enqueue(job); err != nil {
		// Enrollment committed; the reconcile pass will pick the repo up.
		slog.Warn("Failed to schedule initial sync",
			logfields.Repository(enrollment.FullName()), logfields.Error(err))
		jobID = ""
	}

	_ = writeJSONPretty(w, r, http.StatusCreated, responses.EnrollResponse{
		Enrollment: enrollment,
		JobID:      jobID,
	})
}

// HandleList returns all enrollments.
func (h *APIHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.deps.Store.List(r.Context())
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, responses.EnrollmentListResponse{
		Repositories: enrollments,
		Count:        len(enrollments),
	})
}

// HandleGet returns one enrollment.
func (h *APIHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	enrollment, err := h.deps.Store.Get(r.Context(), r.PathValue("owner"), r.PathValue("name"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, enrollment)
}

// HandleUnenroll suspends an enrollment, removes its published documents,
// and drops its navigation from the unified config. Search entries are
// retained until an explicit purge.
func (h *APIHandlers) HandleUnenroll(w http.ResponseWriter, r *http.Request) {
	owner, name := r.PathValue("owner"), r.PathValue("name")

	enrollment, err := h.deps.Store.Get(r.Context(), owner, name)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}

	if err := h.deps.Store.Unenroll(r.Context(), owner, name); err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	if h.deps.Publisher != nil {
		if err := h.deps.Publisher.RemoveRepo(r.Context(), enrollment.Slug); err != nil {
			slog.Warn("Failed to remove published documents",
				logfields.Slug(enrollment.Slug), logfields.Error(err))
		}
	}
	if h.deps.Config != nil {
		if err := h.deps.Config.RegenerateConfig(r.Context()); err != nil {
			slog.Warn("Failed to regenerate unified config after unenroll",
				logfields.Repository(owner+"/"+name), logfields.Error(err))
		}
	}

	slog.Info("Repository unenrolled", logfields.Repository(owner+"/"+name))
	w.WriteHeader(http.StatusNoContent)
}

// HandleSyncTrigger schedules a manual sync for an enrolled repository.
func (h *APIHandlers) HandleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	owner, name := r.PathValue("owner"), r.PathValue("name")

	enrollment, err := h.deps.Store.Get(r.Context(), owner, name)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	if enrollment.Status != registry.StatusActive {
		h.adapter.WriteErrorResponse(w, r, ferrors.AlreadyEnrolledError("enrollment is suspended; re-enroll to resume syncing").
			WithContext("repository", enrollment.FullName()).
			Build())
		return
	}

	revision := r.URL.Query().Get("revision")
	job := coordinator.NewJob(owner, name, revision, coordinator.TriggerManual)
	if err := h.deps.Syncer.Enqueue(job); err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}

	_ = writeJSON(w, http.StatusAccepted, responses.TriggerResponse{
		Status:     "accepted",
		JobID:      job.ID,
		Repository: enrollment.FullName(),
	})
}

// HandleStatus reports one repository's enrollment state, queue position,
// and recent sync history.
func (h *APIHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	owner, name := r.PathValue("owner"), r.PathValue("name")

	enrollment, err := h.deps.Store.Get(r.Context(), owner, name)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}

	resp := responses.StatusResponse{Enrollment: enrollment}
	full := enrollment.FullName()
	snap := h.deps.Syncer.Status()
	for i := range snap.Active {
		if snap.Active[i].FullName() == full {
			resp.Active = snap.Active[i]
		}
	}
	for i := range snap.Pending {
		if snap.Pending[i].FullName() == full {
			resp.Pending = snap.Pending[i]
		}
	}
	if h.deps.History != nil {
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		resp.History = h.deps.History.HistoryForRepository(full, limit)
	}

	_ = writeJSONPretty(w, r, http.StatusOK, resp)
}

// HandleJobs returns a snapshot of the sync queue.
func (h *APIHandlers) HandleJobs(w http.ResponseWriter, r *http.Request) {
	snap := h.deps.Syncer.Status()
	_ = writeJSONPretty(w, r, http.StatusOK, responses.JobsResponse{
		Active:  snap.Active,
		Pending: snap.Pending,
		Recent:  snap.Recent,
	})
}

// HandlePurge deletes a repository's search entries. Used after unenrolling
// when the operator wants the content gone from results immediately.
func (h *APIHandlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	owner, name := r.PathValue("owner"), r.PathValue("name")
	repo := owner + "/" + name

	if err := h.deps.Index.Purge(r.Context(), repo); err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}

	slog.Info("Search entries purged", logfields.Repository(repo))
	_ = writeJSON(w, http.StatusOK, responses.PurgeResponse{
		Status:     "purged",
		Repository: repo,
	})
}

// HandleSearch runs a policy-filtered full-text query. The caller identity
// comes from the X-Forwarded-User header set by the fronting gate.
func (h *APIHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.adapter.WriteErrorResponse(w, r, ferrors.ValidationError("query parameter q is required").Build())
		return
	}

	limit := h.deps.MaxResults
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}

	active, err := h.deps.Store.ListActive(r.Context())
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	enrolled := make([]string, 0, len(active))
	for _, e := range active {
		enrolled = append(enrolled, e.FullName())
	}

	identity := r.Header.Get("X-Forwarded-User")
	visible, err := h.deps.Policy.VisibleRepositories(r.Context(), identity, enrolled)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}

	started := time.Now()
	resp, err := h.deps.Index.Query(r.Context(), query, visible, limit, offset)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	h.recorder.ObserveSearchDuration(time.Since(started))

	_ = writeJSONPretty(w, r, http.StatusOK, resp)
}

// HandleHealth reports liveness plus queue depth.
func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.deps.Syncer.Status()
	_ = writeJSON(w, http.StatusOK, responses.HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Version:     version.Version,
		Uptime:      time.Since(h.startTime).Seconds(),
		ActiveSyncs: len(snap.Active),
		QueuedSyncs: len(snap.Pending),
	})
}
