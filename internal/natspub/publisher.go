// Package natspub mirrors sync lifecycle events onto NATS JetStream so
// other services can follow documentation syncs without polling the HTTP
// API. Publishing is best effort; a broker outage never fails a sync.
package natspub

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/coordinator"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
)

const (
	defaultSubjectPrefix = "docsync.sync"
	defaultStatusBucket  = "docsync-status"

	publishTimeout = 5 * time.Second
)

// Publisher mirrors sync events to JetStream subjects and keeps a KV bucket
// with each repository's last known sync status.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	kv      jetstream.KeyValue
	subject string
	bucket  string
}

// NewPublisher connects to NATS and prepares the status bucket. Returns an
// error when cfg is nil so callers can treat an absent nats section as
// "publishing disabled".
func NewPublisher(cfg *config.NATSConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("nats publishing is not configured").Build()
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, ferrors.DaemonError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", cfg.URL).
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.DaemonError("failed to create JetStream context").
			WithCause(err).
			Build()
	}

	p := &Publisher{
		conn:    conn,
		js:      js,
		subject: cfg.SubjectPrefix,
		bucket:  cfg.StatusBucket,
	}
	if p.subject == "" {
		p.subject = defaultSubjectPrefix
	}
	if p.bucket == "" {
		p.bucket = defaultStatusBucket
	}

	if err := p.initStatusBucket(); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("NATS sync event publisher initialized",
		logfields.URL(cfg.URL),
		slog.String("subject_prefix", p.subject),
		slog.String("status_bucket", p.bucket))

	return p, nil
}

func (p *Publisher) initStatusBucket() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := p.js.KeyValue(ctx, p.bucket)
	if err == nil {
		p.kv = kv
		return nil
	}

	kv, err = p.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      p.bucket,
		Description: "Last sync status per enrolled repository",
		History:     1,
	})
	if err != nil {
		return ferrors.DaemonError("failed to create status bucket").
			WithCause(err).
			WithContext("bucket", p.bucket).
			Build()
	}

	p.kv = kv
	return nil
}

// syncEvent is the wire shape of every published lifecycle event.
type syncEvent struct {
	JobID      string    `json:"job_id,omitempty"`
	Repository string    `json:"repository"`
	Trigger    string    `json:"trigger,omitempty"`
	Status     string    `json:"status,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Revision   string    `json:"revision,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RepoStatus is the KV value kept per repository.
type RepoStatus struct {
	Repository string    `json:"repository"`
	Status     string    `json:"status"`
	Revision   string    `json:"revision,omitempty"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JobQueued implements coordinator.Notifier.
func (p *Publisher) JobQueued(job coordinator.Job) {
	p.publish("queued", syncEvent{
		JobID:      job.ID,
		Repository: job.FullName(),
		Trigger:    string(job.Trigger),
		Revision:   job.Revision,
	})
}

// JobStarted implements coordinator.Notifier.
func (p *Publisher) JobStarted(job coordinator.Job) {
	p.publish("started", syncEvent{
		JobID:      job.ID,
		Repository: job.FullName(),
		Trigger:    string(job.Trigger),
	})
}

// JobStageCompleted implements coordinator.Notifier.
func (p *Publisher) JobStageCompleted(job coordinator.Job, stage coordinator.Stage, d time.Duration) {
	p.publish("stage", syncEvent{
		JobID:      job.ID,
		Repository: job.FullName(),
		Stage:      string(stage),
		DurationMS: d.Milliseconds(),
	})
}

// JobCompleted implements coordinator.Notifier.
func (p *Publisher) JobCompleted(job coordinator.Job) {
	p.publish("completed", syncEvent{
		JobID:      job.ID,
		Repository: job.FullName(),
		Trigger:    string(job.Trigger),
		Status:     string(job.Status),
		Revision:   job.SyncedRevision,
		DurationMS: job.Duration.Milliseconds(),
		Error:      job.Error,
	})

	p.putStatus(job.FullName(), RepoStatus{
		Repository: job.FullName(),
		Status:     string(job.Status),
		Revision:   job.SyncedRevision,
		Error:      job.Error,
	})
}

// EnrollmentSuspended implements coordinator.Notifier.
func (p *Publisher) EnrollmentSuspended(owner, name, reason string) {
	repo := owner + "/" + name
	p.publish("suspended", syncEvent{
		Repository: repo,
		Reason:     reason,
	})
	p.putStatus(repo, RepoStatus{
		Repository: repo,
		Status:     "suspended",
		Error:      reason,
	})
}

func (p *Publisher) publish(kind string, event syncEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	event.Timestamp = time.Now().UTC()
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal sync event",
			logfields.JobID(event.JobID), logfields.Error(err))
		return
	}

	subject := p.subject + "." + kind
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		slog.Warn("Failed to publish sync event",
			slog.String("subject", subject),
			logfields.Repository(event.Repository),
			logfields.Error(err))
		return
	}

	slog.Debug("Published sync event",
		slog.String("subject", subject),
		logfields.JobID(event.JobID),
		logfields.Repository(event.Repository))
}

func (p *Publisher) putStatus(repo string, status RepoStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	status.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(status)
	if err != nil {
		slog.Error("Failed to marshal repository status", logfields.Error(err))
		return
	}

	if _, err := p.kv.Put(ctx, statusKey(repo), data); err != nil {
		slog.Warn("Failed to update repository status bucket",
			logfields.Repository(repo), logfields.Error(err))
	}
}

// Status returns the last recorded status for a repository, or nil when none
// has been recorded.
func (p *Publisher) Status(ctx context.Context, owner, name string) (*RepoStatus, error) {
	entry, err := p.kv.Get(ctx, statusKey(owner+"/"+name))
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return nil, nil
		}
		return nil, ferrors.DaemonError("failed to read repository status").
			WithCause(err).
			Build()
	}

	var status RepoStatus
	if err := json.Unmarshal(entry.Value(), &status); err != nil {
		return nil, ferrors.DaemonError("failed to unmarshal repository status").
			WithCause(err).
			Build()
	}
	return &status, nil
}

// statusKey maps a repository full name onto a KV-safe key.
func statusKey(repo string) string {
	return strings.ReplaceAll(repo, "/", ".")
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
