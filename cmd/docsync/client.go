package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/docsync/internal/eventstore"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/registry"
	"git.home.luguber.info/inful/docsync/internal/search"
)

// apiClient talks to a running daemon's management API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type enrollResult struct {
	Enrollment *registry.Enrollment `json:"enrollment"`
	JobID      string               `json:"job_id,omitempty"`
}

type repositoryList struct {
	Repositories []*registry.Enrollment `json:"repositories"`
	Count        int                    `json:"count"`
}

type repositoryStatus struct {
	Enrollment *registry.Enrollment      `json:"enrollment"`
	History    []*eventstore.SyncSummary `json:"history"`
}

type triggerResult struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

func (c *apiClient) Enroll(ctx context.Context, owner, name, branch string) (*enrollResult, error) {
	body := map[string]string{"owner": owner, "name": name}
	if branch != "" {
		body["default_branch"] = branch
	}
	var out enrollResult
	if err := c.do(ctx, http.MethodPost, "/api/repos", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Unenroll(ctx context.Context, owner, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/repos/"+owner+"/"+name, nil, nil)
}

func (c *apiClient) ListRepositories(ctx context.Context) (*repositoryList, error) {
	var out repositoryList
	if err := c.do(ctx, http.MethodGet, "/api/repos", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Status(ctx context.Context, owner, name string) (*repositoryStatus, error) {
	var out repositoryStatus
	if err := c.do(ctx, http.MethodGet, "/api/repos/"+owner+"/"+name+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) TriggerSync(ctx context.Context, owner, name, revision string) (*triggerResult, error) {
	path := "/api/repos/" + owner + "/" + name + "/sync"
	if revision != "" {
		path += "?revision=" + url.QueryEscape(revision)
	}
	var out triggerResult
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Search(ctx context.Context, query string, limit int) (*search.Response, error) {
	path := "/api/search?q=" + url.QueryEscape(query)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var out search.Response
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Purge(ctx context.Context, owner, name string) error {
	return c.do(ctx, http.MethodPost, "/api/repos/"+owner+"/"+name+"/purge", nil, nil)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return ferrors.InternalError("failed to encode request body").WithCause(err).Build()
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return ferrors.ValidationError("invalid request").WithCause(err).Build()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ferrors.NetworkError("daemon is not reachable").
			WithCause(err).
			WithContext("server", c.base).
			Build()
	}
	defer resp.Body.Close() //nolint:errcheck // response body close failure is inconsequential

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ferrors.InternalError("failed to decode daemon response").WithCause(err).Build()
	}
	return nil
}

// decodeError reconstructs a classified error from the daemon's error
// payload so exit codes match server-side classification.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var payload ferrors.HTTPErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		category := ferrors.ErrorCategory(payload.Code)
		if category == "" {
			category = ferrors.CategoryInternal
		}
		return ferrors.NewError(category, payload.Error).Build()
	}
	return ferrors.InternalError(fmt.Sprintf("daemon returned %s", resp.Status)).Build()
}
