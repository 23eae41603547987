// Package coordinator schedules sync jobs: one in-flight sync per repository,
// queued deliveries coalesced to the newest revision, and a global bound on
// concurrent syncs across repositories. Failures stay contained to their own
// repository; committed state from earlier syncs is never touched.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sync"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/registry"
)

// Runner executes one sync job against an enrollment. setStage reports
// progress through the job's phases; the returned string is the commit hash
// the job materialized. Runners record the terminal outcome on the registry
// themselves so the commit order stays under their control.
type Runner interface {
	Run(ctx context.Context, job *Job, enrollment *registry.Enrollment, setStage func(Stage)) (string, error)
}

// Options tunes the coordinator.
type Options struct {
	Concurrency int           // max repositories syncing at once
	JobDeadline time.Duration // wall-clock limit per job
	DedupWindow time.Duration // duplicate-delivery suppression window
	HistorySize int           // completed jobs retained for status queries
}

type repoState struct {
	inflight *Job
	pending  *Job
}

// Coordinator owns the per-repository serial queues and the worker pool.
type Coordinator struct {
	store    registry.Store
	runner   Runner
	recorder metrics.Recorder
	notifier Notifier
	dedup    *DedupWindow
	opts     Options
	sem      chan struct{}

	mu      sync.Mutex
	repos   map[string]*repoState
	history []Job
	queued  int
	active  int
	stopped bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a coordinator. Start must be called before Enqueue.
func New(store registry.Store, runner Runner, opts Options, recorder metrics.Recorder, notifier Notifier) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.JobDeadline <= 0 {
		opts.JobDeadline = 10 * time.Minute
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 50
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Coordinator{
		store:    store,
		runner:   runner,
		recorder: recorder,
		notifier: notifier,
		dedup:    NewDedupWindow(opts.DedupWindow),
		opts:     opts,
		sem:      make(chan struct{}, opts.Concurrency),
		repos:    make(map[string]*repoState),
	}
}

// Start makes the coordinator accept jobs. The context bounds the lifetime
// of every worker.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseCtx, c.cancel = context.WithCancel(ctx)
	c.stopped = false
	slog.Info("Sync coordinator started",
		slog.Int("concurrency", c.opts.Concurrency),
		slog.Duration("job_deadline", c.opts.JobDeadline))
}

// Stop rejects new jobs, cancels in-flight ones, and waits for workers to
// drain or the context to expire.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Sync coordinator stopped")
		return nil
	case <-ctx.Done():
		return ferrors.DaemonError("sync workers did not drain before shutdown deadline").Build()
	}
}

// SeenRecently records a delivery and reports whether an identical
// (owner, name, revision) was already delivered inside the dedup window.
func (c *Coordinator) SeenRecently(owner, name, revision string) bool {
	return c.dedup.Observe(DedupKey(owner, name, revision))
}

// Enqueue submits a job to its repository's serial queue. If a sync for the
// repository is already in flight the job waits in the single pending slot;
// a job already waiting there is superseded, since only the newest revision
// needs to run once the current sync finishes.
func (c *Coordinator) Enqueue(job *Job) error {
	if job == nil || job.Owner == "" || job.Name == "" {
		return ferrors.ValidationError("sync job requires a repository identity").Build()
	}

	c.mu.Lock()
	if c.stopped || c.baseCtx == nil {
		c.mu.Unlock()
		c.dedup.Forget(job.DedupKey())
		return ferrors.DaemonError("sync coordinator is not running").Build()
	}

	key := job.FullName()
	rs := c.repos[key]
	if rs == nil {
		rs = &repoState{}
		c.repos[key] = rs
	}

	var superseded *Job
	if rs.inflight == nil {
		rs.inflight = job
		c.wg.Add(1)
		go c.run(job)
	} else {
		if rs.pending != nil {
			superseded = rs.pending
			superseded.Status = JobCanceled
			superseded.Error = "superseded by a newer queued sync"
			c.appendHistoryLocked(*superseded)
		} else {
			c.queued++
		}
		rs.pending = job
	}
	depth := c.queued
	snapshot := *job
	c.mu.Unlock()

	c.recorder.SetQueueDepth(depth)
	c.notifier.JobQueued(snapshot)
	if superseded != nil {
		slog.Debug("Queued sync superseded",
			logfields.JobID(superseded.ID),
			logfields.Repository(key),
			logfields.Revision(job.Revision))
		c.notifier.JobCompleted(*superseded)
	}
	slog.Info("Sync job enqueued",
		logfields.JobID(job.ID),
		logfields.Repository(key),
		logfields.Trigger(string(job.Trigger)))
	return nil
}

func (c *Coordinator) run(job *Job) {
	defer c.wg.Done()

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-c.baseCtx.Done():
		c.finish(job, "", c.baseCtx.Err(), true)
		return
	}

	started := time.Now().UTC()
	c.mu.Lock()
	job.Status = JobRunning
	job.StartedAt = &started
	c.active++
	active := c.active
	snapshot := *job
	c.mu.Unlock()
	c.recorder.SetActiveSyncs(active)
	c.notifier.JobStarted(snapshot)

	slog.Info("Sync job started",
		logfields.JobID(job.ID),
		logfields.Repository(job.FullName()),
		logfields.Trigger(string(job.Trigger)))

	ctx, cancel := context.WithTimeout(c.baseCtx, c.opts.JobDeadline)
	revision, err := c.execute(ctx, job)
	jobCtxEnded := ctx.Err() != nil
	cancel()

	c.finish(job, revision, err, jobCtxEnded)
}

func (c *Coordinator) execute(ctx context.Context, job *Job) (string, error) {
	enrollment, err := c.store.Get(ctx, job.Owner, job.Name)
	if err != nil {
		return "", err
	}
	if enrollment.Status != registry.StatusActive {
		return "", ferrors.NotFoundError("enrollment is suspended").
			WithContext("repository", job.FullName()).
			Build()
	}

	var (
		lastStage  Stage
		stageStart time.Time
	)
	setStage := func(s Stage) {
		now := time.Now()
		c.mu.Lock()
		prev, prevStart := lastStage, stageStart
		job.Stage = s
		lastStage, stageStart = s, now
		snapshot := *job
		c.mu.Unlock()
		if prev != "" {
			d := now.Sub(prevStart)
			c.recorder.ObserveStageDuration(string(prev), d)
			c.notifier.JobStageCompleted(snapshot, prev, d)
		}
	}

	revision, err := c.runner.Run(ctx, job, enrollment, setStage)

	if lastStage != "" {
		d := time.Since(stageStart)
		c.recorder.ObserveStageDuration(string(lastStage), d)
		c.mu.Lock()
		snapshot := *job
		c.mu.Unlock()
		c.notifier.JobStageCompleted(snapshot, lastStage, d)
	}
	return revision, err
}

// finish records the terminal state and promotes the repository's pending
// job, if any. jobCtxEnded reports whether the job's own context was
// canceled or past deadline when the runner returned; only then does a
// cancellation-shaped error count as canceled. A fetch timeout classified by
// the runner wraps the same sentinel but is an ordinary failure.
func (c *Coordinator) finish(job *Job, revision string, err error, jobCtxEnded bool) {
	completed := time.Now().UTC()

	c.mu.Lock()
	job.CompletedAt = &completed
	if job.StartedAt != nil {
		job.Duration = completed.Sub(*job.StartedAt)
	}
	job.Stage = ""
	switch {
	case err == nil:
		job.Status = JobSucceeded
		job.SyncedRevision = revision
	case jobCtxEnded && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		job.Status = JobCanceled
		job.Error = err.Error()
	default:
		job.Status = JobFailed
		job.Error = err.Error()
	}
	c.appendHistoryLocked(*job)
	if c.active > 0 {
		c.active--
	}
	active := c.active

	key := job.FullName()
	var next *Job
	if rs := c.repos[key]; rs != nil {
		next = rs.pending
		rs.pending = nil
		rs.inflight = next
		if next != nil {
			if c.queued > 0 {
				c.queued--
			}
			c.wg.Add(1)
		} else {
			delete(c.repos, key)
		}
	}
	depth := c.queued
	snapshot := *job
	c.mu.Unlock()

	c.recorder.SetActiveSyncs(active)
	c.recorder.SetQueueDepth(depth)
	c.recorder.ObserveJobDuration(snapshot.Duration)
	switch snapshot.Status {
	case JobSucceeded:
		c.recorder.IncSyncOutcome(metrics.SyncSuccess)
		slog.Info("Sync job completed",
			logfields.JobID(snapshot.ID),
			logfields.Repository(key),
			logfields.Revision(snapshot.SyncedRevision),
			slog.Duration("duration", snapshot.Duration))
	case JobCanceled:
		c.recorder.IncSyncOutcome(metrics.SyncCanceled)
		slog.Warn("Sync job canceled",
			logfields.JobID(snapshot.ID),
			logfields.Repository(key),
			logfields.Error(err))
	default:
		c.recorder.IncSyncOutcome(metrics.SyncFailed)
		slog.Error("Sync job failed",
			logfields.JobID(snapshot.ID),
			logfields.Repository(key),
			slog.Duration("duration", snapshot.Duration),
			logfields.Error(err))
	}
	c.notifier.JobCompleted(snapshot)

	if next != nil {
		go c.run(next)
	}
}

func (c *Coordinator) appendHistoryLocked(job Job) {
	c.history = append([]Job{job}, c.history...)
	if len(c.history) > c.opts.HistorySize {
		c.history = c.history[:c.opts.HistorySize]
	}
}

// Snapshot is a point-in-time view of coordinator state for status queries.
type Snapshot struct {
	Active  []Job `json:"active"`
	Pending []Job `json:"pending"`
	Recent  []Job `json:"recent"`
}

// Status returns copies of the in-flight, pending, and recently completed
// jobs.
func (c *Coordinator) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var snap Snapshot
	for _, rs := range c.repos {
		if rs.inflight != nil && rs.inflight.Status == JobRunning {
			snap.Active = append(snap.Active, *rs.inflight)
		}
		if rs.pending != nil {
			snap.Pending = append(snap.Pending, *rs.pending)
		}
	}
	snap.Recent = append(snap.Recent, c.history...)
	return snap
}
