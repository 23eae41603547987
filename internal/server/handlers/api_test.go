package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/eventstore"
	"git.home.luguber.info/inful/docsync/internal/search"
	"git.home.luguber.info/inful/docsync/internal/server/responses"
)

func newAPIMux(h *APIHandlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/repos", h.HandleEnroll)
	mux.HandleFunc("GET /api/repos", h.HandleList)
	mux.HandleFunc("GET /api/repos/{owner}/{name}", h.HandleGet)
	mux.HandleFunc("DELETE /api/repos/{owner}/{name}", h.HandleUnenroll)
	mux.HandleFunc("POST /api/repos/{owner}/{name}/sync", h.HandleSyncTrigger)
	mux.HandleFunc("GET /api/repos/{owner}/{name}/status", h.HandleStatus)
	mux.HandleFunc("POST /api/repos/{owner}/{name}/purge", h.HandlePurge)
	mux.HandleFunc("GET /api/search", h.HandleSearch)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	return mux
}

func do(mux *http.ServeMux, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestEnrollSchedulesInitialSync(t *testing.T) {
	store := newMemStore()
	syncer := newFakeSyncer()
	h := NewAPIHandlers(APIDeps{Store: store, Syncer: syncer, Index: &fakeIndex{}}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodPost, "/api/repos", `{"owner":"acme","name":"guide"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp responses.EnrollResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)

	require.Len(t, syncer.enqueued, 1)
	assert.Equal(t, "acme/guide", syncer.enqueued[0].FullName())

	enrollment, err := store.Get(t.Context(), "acme", "guide")
	require.NoError(t, err)
	assert.Equal(t, "main", enrollment.DefaultBranch)
}

func TestEnrollRejectsDuplicate(t *testing.T) {
	store := newMemStore(activeEnrollment("acme", "guide", "main"))
	h := NewAPIHandlers(APIDeps{Store: store, Syncer: newFakeSyncer(), Index: &fakeIndex{}}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodPost, "/api/repos", `{"owner":"acme","name":"guide"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEnrollValidatesBody(t *testing.T) {
	h := NewAPIHandlers(APIDeps{Store: newMemStore(), Syncer: newFakeSyncer(), Index: &fakeIndex{}}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodPost, "/api/repos", `{"owner":"acme"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncTriggerNotEnrolled(t *testing.T) {
	h := NewAPIHandlers(APIDeps{Store: newMemStore(), Syncer: newFakeSyncer(), Index: &fakeIndex{}}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodPost, "/api/repos/acme/ghost/sync", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncTriggerSuspendedConflicts(t *testing.T) {
	store := newMemStore(activeEnrollment("acme", "guide", "main"))
	require.NoError(t, store.Unenroll(t.Context(), "acme", "guide"))
	h := NewAPIHandlers(APIDeps{Store: store, Syncer: newFakeSyncer(), Index: &fakeIndex{}}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodPost, "/api/repos/acme/guide/sync", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSyncTriggerAccepted(t *testing.T) {
	store := newMemStore(activeEnrollment("acme", "guide", "main"))
	syncer := newFakeSyncer()
	h := NewAPIHandlers(APIDeps{Store: store, Syncer: syncer, Index: &fakeIndex{}}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodPost, "/api/repos/acme/guide/sync?revision=abc123", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp responses.TriggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.NotEmpty(t, resp.JobID)

	require.Len(t, syncer.enqueued, 1)
	assert.Equal(t, "abc123", syncer.enqueued[0].Revision)
}

func TestUnenrollSuspendsAndCleansUp(t *testing.T) {
	store := newMemStore(activeEnrollment("acme", "guide", "main"))
	h := NewAPIHandlers(APIDeps{Store: store, Syncer: newFakeSyncer(), Index: &fakeIndex{}}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodDelete, "/api/repos/acme/guide", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	enrollment, err := store.Get(t.Context(), "acme", "guide")
	require.NoError(t, err)
	assert.NotEqual(t, "active", string(enrollment.Status))
}

func TestStatusIncludesHistory(t *testing.T) {
	store := newMemStore(activeEnrollment("acme", "guide", "main"))
	history := &fakeHistory{entries: []*eventstore.SyncSummary{
		{JobID: "job-1", Repository: "acme/guide", Status: "succeeded"},
	}}
	h := NewAPIHandlers(APIDeps{Store: store, Syncer: newFakeSyncer(), Index: &fakeIndex{}, History: history}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodGet, "/api/repos/acme/guide/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Enrollment struct {
			Slug string `json:"slug"`
		} `json:"enrollment"`
		History []struct {
			JobID string `json:"job_id"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "guide", resp.Enrollment.Slug)
	require.Len(t, resp.History, 1)
	assert.Equal(t, "job-1", resp.History[0].JobID)
}

func TestPurgeRemovesSearchEntries(t *testing.T) {
	store := newMemStore(activeEnrollment("acme", "guide", "main"))
	index := &fakeIndex{}
	h := NewAPIHandlers(APIDeps{Store: store, Syncer: newFakeSyncer(), Index: index}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodPost, "/api/repos/acme/guide/purge", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"acme/guide"}, index.purged)
}

func TestSearchRequiresQuery(t *testing.T) {
	h := NewAPIHandlers(APIDeps{Store: newMemStore(), Syncer: newFakeSyncer(), Index: &fakeIndex{}}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodGet, "/api/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchAppliesAccessPolicy(t *testing.T) {
	store := newMemStore(
		activeEnrollment("acme", "guide", "main"),
		activeEnrollment("acme", "internal", "main"),
	)
	index := &fakeIndex{resp: &search.Response{Query: "install", Total: 1, Results: []search.Result{
		{SitePath: "/guide/setup/", Title: "Setup", Repository: "acme/guide"},
	}}}
	h := NewAPIHandlers(APIDeps{Store: store, Syncer: newFakeSyncer(), Index: index}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodGet, "/api/search?q=install", "", map[string]string{"X-Forwarded-User": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "acme/guide", resp.Results[0].Repository)
}

func TestHealthEndpoint(t *testing.T) {
	h := NewAPIHandlers(APIDeps{Store: newMemStore(), Syncer: newFakeSyncer(), Index: &fakeIndex{}}, nil, nil)
	mux := newAPIMux(h)

	rec := do(mux, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp responses.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}
