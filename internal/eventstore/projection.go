// Package eventstore persists the sync lifecycle journal and read models
// derived from it.
package eventstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	syncStatusQueued    = "queued"
	syncStatusRunning   = "running"
	syncStatusSucceeded = "succeeded"
)

// SyncSummary is a read model summarizing one sync job.
type SyncSummary struct {
	JobID          string           `json:"job_id"`
	Repository     string           `json:"repository"`
	Trigger        string           `json:"trigger,omitempty"`
	Status         string           `json:"status"` // "queued", "running", "succeeded", "failed", "canceled"
	QueuedAt       time.Time        `json:"queued_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	Duration       time.Duration    `json:"duration,omitempty"`
	Revision       string           `json:"revision,omitempty"`
	ErrorStage     string           `json:"error_stage,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	StageDurations map[string]int64 `json:"stage_durations_ms,omitempty"` // stage -> milliseconds
}

// SyncHistoryProjection maintains an in-memory view of sync history,
// reconstructed from journal events.
type SyncHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	jobs     map[string]*SyncSummary // jobID -> summary
	history  []*SyncSummary          // ordered by queue time, newest first
	maxSize  int
	lastSync time.Time
}

// NewSyncHistoryProjection creates a projection backed by the given store.
func NewSyncHistoryProjection(store Store, maxHistorySize int) *SyncHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &SyncHistoryProjection{
		store:   store,
		jobs:    make(map[string]*SyncSummary),
		history: make([]*SyncSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
// Typically called at startup.
func (p *SyncHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.jobs = make(map[string]*SyncSummary)
	p.history = make([]*SyncSummary, 0, p.maxSize)

	for _, event := range events {
		p.applyEventLocked(event)
	}

	p.sortHistoryLocked()
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneJobsLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection. Used for
// real-time updates as events are journaled.
func (p *SyncHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *SyncHistoryProjection) applyEventLocked(event Event) {
	jobID := event.JobID()
	if jobID == "" {
		return
	}

	summary, exists := p.jobs[jobID]
	if !exists {
		summary = &SyncSummary{
			JobID:    jobID,
			Status:   syncStatusQueued,
			QueuedAt: event.Timestamp(),
		}
		p.jobs[jobID] = summary
	}

	switch event.Type() {
	case TypeSyncQueued:
		summary.QueuedAt = event.Timestamp()
		summary.Status = syncStatusQueued
		var payload struct {
			Repository string `json:"repository"`
			Trigger    string `json:"trigger"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Repository = payload.Repository
			summary.Trigger = payload.Trigger
		}

	case TypeSyncStarted:
		started := event.Timestamp()
		summary.StartedAt = &started
		summary.Status = syncStatusRunning

	case TypeSyncStageCompleted:
		var payload struct {
			Stage    string `json:"stage"`
			Duration int64  `json:"duration_ms"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if summary.StageDurations == nil {
				summary.StageDurations = make(map[string]int64)
			}
			summary.StageDurations[payload.Stage] = payload.Duration
		}

	case TypeSyncCompleted:
		now := event.Timestamp()
		summary.CompletedAt = &now
		if summary.StartedAt != nil {
			summary.Duration = now.Sub(*summary.StartedAt)
		}
		summary.Status = syncStatusSucceeded
		var payload struct {
			Repository string `json:"repository"`
			Revision   string `json:"revision"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if payload.Repository != "" {
				summary.Repository = payload.Repository
			}
			summary.Revision = payload.Revision
		}
		p.addToHistoryLocked(summary)

	case TypeSyncFailed:
		now := event.Timestamp()
		summary.CompletedAt = &now
		if summary.StartedAt != nil {
			summary.Duration = now.Sub(*summary.StartedAt)
		}
		summary.Status = "failed"
		var payload struct {
			Repository string `json:"repository"`
			Status     string `json:"status"`
			Stage      string `json:"stage"`
			Error      string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if payload.Repository != "" {
				summary.Repository = payload.Repository
			}
			if payload.Status != "" {
				summary.Status = payload.Status
			}
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
		}
		p.addToHistoryLocked(summary)
	}
}

func (p *SyncHistoryProjection) addToHistoryLocked(summary *SyncSummary) {
	for _, h := range p.history {
		if h.JobID == summary.JobID {
			return
		}
	}

	p.history = append([]*SyncSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneJobsLocked()
}

// pruneJobsLocked drops completed jobs not present in the bounded history.
// Jobs still queued or running are kept.
func (p *SyncHistoryProjection) pruneJobsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		if h != nil {
			keep[h.JobID] = struct{}{}
		}
	}

	for id, summary := range p.jobs {
		if summary != nil && (summary.Status == syncStatusQueued || summary.Status == syncStatusRunning) {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.jobs, id)
		}
	}
}

func (p *SyncHistoryProjection) sortHistoryLocked() {
	// Insertion sort; history is small.
	for i := 1; i < len(p.history); i++ {
		for j := i; j > 0 && p.history[j].QueuedAt.After(p.history[j-1].QueuedAt); j-- {
			p.history[j], p.history[j-1] = p.history[j-1], p.history[j]
		}
	}
}

// GetHistory returns the sync history, newest first.
func (p *SyncHistoryProjection) GetHistory() []*SyncSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*SyncSummary, len(p.history))
	copy(result, p.history)
	return result
}

// HistoryForRepository returns completed syncs for one repository, newest
// first, capped at limit (0 means no cap).
func (p *SyncHistoryProjection) HistoryForRepository(repository string, limit int) []*SyncSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var result []*SyncSummary
	for _, h := range p.history {
		if h.Repository != repository {
			continue
		}
		cp := *h
		result = append(result, &cp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// GetJob returns the summary for a specific sync job.
func (p *SyncHistoryProjection) GetJob(jobID string) (*SyncSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.jobs[jobID]
	if !exists {
		return nil, false
	}

	cp := *summary
	return &cp, true
}

// GetLastCompleted returns the most recently completed sync, or nil.
func (p *SyncHistoryProjection) GetLastCompleted() *SyncSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.history) == 0 {
		return nil
	}
	cp := *p.history[0]
	return &cp
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *SyncHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
