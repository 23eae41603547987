package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/coordinator"
	"git.home.luguber.info/inful/docsync/internal/server/responses"
)

const webhookSecret = "test-secret"

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func pushPayload(t *testing.T, fullName, ref, head string, files []string) []byte {
	t.Helper()
	payload := map[string]any{
		"ref":   ref,
		"after": head,
		"repository": map[string]any{
			"full_name":      fullName,
			"default_branch": "main",
		},
		"head_commit": map[string]any{
			"id":       head,
			"modified": files,
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func postWebhook(h *WebhookHandlers, body []byte, sig, event string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Hub-Signature-256", sig)
	}
	req.Header.Set("X-GitHub-Event", event)
	rec := httptest.NewRecorder()
	h.HandlePush(rec, req)
	return rec
}

func newWebhookHandlers(syncer *fakeSyncer) *WebhookHandlers {
	store := newMemStore(activeEnrollment("acme", "guide", "main"))
	return NewWebhookHandlers(store, syncer, func() string { return webhookSecret }, "docs", nil, nil)
}

func TestWebhookAcceptsDocsPush(t *testing.T) {
	syncer := newFakeSyncer()
	h := newWebhookHandlers(syncer)

	body := pushPayload(t, "acme/guide", "refs/heads/main", "abc123", []string{"docs/setup.md"})
	rec := postWebhook(h, body, signBody(body), "push")

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp responses.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.NotEmpty(t, resp.JobID)

	require.Len(t, syncer.enqueued, 1)
	job := syncer.enqueued[0]
	assert.Equal(t, "acme/guide", job.FullName())
	assert.Equal(t, "abc123", job.Revision)
	assert.Equal(t, coordinator.TriggerWebhook, job.Trigger)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	syncer := newFakeSyncer()
	h := newWebhookHandlers(syncer)

	body := pushPayload(t, "acme/guide", "refs/heads/main", "abc123", []string{"docs/setup.md"})
	rec := postWebhook(h, body, "sha256=deadbeef", "push")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, syncer.enqueued)
}

func TestWebhookIgnoresPing(t *testing.T) {
	syncer := newFakeSyncer()
	h := newWebhookHandlers(syncer)

	body := []byte(`{"zen":"Keep it logically awesome."}`)
	rec := postWebhook(h, body, signBody(body), "ping")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, syncer.enqueued)
}

func TestWebhookIgnoresNonDefaultBranch(t *testing.T) {
	syncer := newFakeSyncer()
	h := newWebhookHandlers(syncer)

	body := pushPayload(t, "acme/guide", "refs/heads/feature", "abc123", []string{"docs/setup.md"})
	rec := postWebhook(h, body, signBody(body), "push")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp responses.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp.Status)
	assert.Empty(t, syncer.enqueued)
}

func TestWebhookIgnoresUnenrolledRepository(t *testing.T) {
	syncer := newFakeSyncer()
	h := newWebhookHandlers(syncer)

	body := pushPayload(t, "acme/unknown", "refs/heads/main", "abc123", []string{"docs/setup.md"})
	rec := postWebhook(h, body, signBody(body), "push")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, syncer.enqueued)
}

func TestWebhookIgnoresNonDocsChanges(t *testing.T) {
	syncer := newFakeSyncer()
	h := newWebhookHandlers(syncer)

	body := pushPayload(t, "acme/guide", "refs/heads/main", "abc123", []string{"src/main.go"})
	rec := postWebhook(h, body, signBody(body), "push")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp responses.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp.Status)
	assert.Empty(t, syncer.enqueued)
}

func TestWebhookDeduplicatesRepeatDelivery(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.seen[coordinator.DedupKey("acme", "guide", "abc123")] = true
	h := newWebhookHandlers(syncer)

	body := pushPayload(t, "acme/guide", "refs/heads/main", "abc123", []string{"docs/setup.md"})
	rec := postWebhook(h, body, signBody(body), "push")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp responses.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "deduplicated", resp.Status)
	assert.Empty(t, syncer.enqueued)
}

func TestWebhookIgnoresBranchDeletion(t *testing.T) {
	syncer := newFakeSyncer()
	h := newWebhookHandlers(syncer)

	payload := map[string]any{
		"ref":     "refs/heads/main",
		"deleted": true,
		"repository": map[string]any{
			"full_name": "acme/guide",
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	rec := postWebhook(h, body, signBody(body), "push")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, syncer.enqueued)
}
