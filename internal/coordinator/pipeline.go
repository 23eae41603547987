package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docsync/internal/config"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/gitfetch"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/registry"
	"git.home.luguber.info/inful/docsync/internal/rewrite"
	"git.home.luguber.info/inful/docsync/internal/search"
	"git.home.luguber.info/inful/docsync/internal/siteconfig"
)

// Pipeline runs one repository sync end to end: materialize the working
// tree, rewrite its documents, then commit in order — published documents
// and navigation fragment first, search entries second, the regenerated
// unified config third, and the enrollment's sync outcome last. A failure
// at any point leaves every earlier repository's committed state untouched.
type Pipeline struct {
	store     registry.Store
	fetcher   *gitfetch.Fetcher
	publisher *siteconfig.Store
	writer    *siteconfig.Writer
	index     *search.Index
	site      config.SiteConfig
	docsDir   string
	recorder  metrics.Recorder
	notifier  Notifier

	// Serializes unified-config regeneration; last writer wins, always
	// computed from the latest committed fragments.
	configMu sync.Mutex
}

// NewPipeline wires the sync stages together.
func NewPipeline(
	store registry.Store,
	fetcher *gitfetch.Fetcher,
	publisher *siteconfig.Store,
	writer *siteconfig.Writer,
	index *search.Index,
	site config.SiteConfig,
	docsDir string,
	recorder metrics.Recorder,
	notifier Notifier,
) *Pipeline {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Pipeline{
		store:     store,
		fetcher:   fetcher,
		publisher: publisher,
		writer:    writer,
		index:     index,
		site:      site,
		docsDir:   docsDir,
		recorder:  recorder,
		notifier:  notifier,
	}
}

// Run implements Runner.
func (p *Pipeline) Run(ctx context.Context, job *Job, enrollment *registry.Enrollment, setStage func(Stage)) (string, error) {
	observedSeq := enrollment.SyncSeq

	setStage(StageFetching)
	tree, err := p.fetcher.Materialize(ctx, gitfetch.RepoSpec{
		Owner:  enrollment.Owner,
		Name:   enrollment.Name,
		Branch: enrollment.DefaultBranch,
	}, job.Revision)
	if err != nil {
		p.handleFetchFailure(ctx, job, enrollment, observedSeq, err)
		return "", err
	}

	setStage(StageRewriting)
	activeSlugs, err := p.activeSlugs(ctx)
	if err != nil {
		p.recordFailure(ctx, job, enrollment, observedSeq, err)
		return "", err
	}
	docs, err := rewrite.Build(rewrite.Tree{
		Slug:    enrollment.Slug,
		Dir:     tree.Path,
		DocsDir: p.docsDir,
	}, activeSlugs)
	if err != nil {
		p.recordFailure(ctx, job, enrollment, observedSeq, err)
		return "", err
	}
	if n := len(docs.Unresolved); n > 0 {
		p.recorder.AddUnresolvedLinks(enrollment.FullName(), n)
		for _, u := range docs.Unresolved {
			slog.Warn("Unresolved documentation link",
				logfields.Repository(enrollment.FullName()),
				logfields.File(u.DocPath),
				slog.String("target", u.Raw))
		}
	}

	setStage(StageIndexing)
	if err := p.publisher.ReplaceRepo(ctx, docs, tree.Path); err != nil {
		p.recordFailure(ctx, job, enrollment, observedSeq, err)
		return "", err
	}
	entries, err := search.EntriesForRepo(enrollment.Owner, enrollment.Name, docs)
	if err != nil {
		p.recordFailure(ctx, job, enrollment, observedSeq, err)
		return "", err
	}
	if err := p.index.Upsert(ctx, enrollment.FullName(), entries); err != nil {
		p.recordFailure(ctx, job, enrollment, observedSeq, err)
		return "", err
	}
	if err := p.RegenerateConfig(ctx); err != nil {
		p.recordFailure(ctx, job, enrollment, observedSeq, err)
		return "", err
	}

	err = p.store.RecordSyncOutcome(ctx, enrollment.Owner, enrollment.Name, registry.OutcomeRecord{
		Revision:    tree.Revision,
		Outcome:     registry.OutcomeSuccess,
		ObservedSeq: observedSeq,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		// A stale sequence means a newer sync committed while this one ran;
		// its artifacts already superseded ours.
		return "", err
	}

	return tree.Revision, nil
}

// RegenerateConfig rebuilds the unified configuration artifact from the
// latest committed navigation fragments of active enrollments. Safe to call
// concurrently; regenerations are serialized and the last one wins.
func (p *Pipeline) RegenerateConfig(ctx context.Context) error {
	p.configMu.Lock()
	defer p.configMu.Unlock()

	active, err := p.store.ListActive(ctx)
	if err != nil {
		return err
	}
	activeSet := make(map[string]struct{}, len(active))
	for _, e := range active {
		activeSet[e.Slug] = struct{}{}
	}

	fragments, err := p.publisher.Fragments(ctx)
	if err != nil {
		return err
	}
	merged := fragments[:0]
	for _, f := range fragments {
		if _, ok := activeSet[f.RepoSlug]; ok {
			merged = append(merged, f)
		}
	}

	data, err := siteconfig.Generate(p.site, merged)
	if err != nil {
		return err
	}
	return p.writer.Write(data)
}

// terminalWriteTimeout bounds the bookkeeping writes that follow a failed
// job. They run detached from the job's context: a job killed by its own
// deadline must still leave a recorded outcome behind.
const terminalWriteTimeout = 5 * time.Second

func terminalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
}

// handleFetchFailure records the failed outcome and auto-suspends the
// enrollment when the repository itself is gone. Suspension regenerates the
// unified config so the dead repository's navigation disappears; its search
// entries are retained until an explicit purge.
func (p *Pipeline) handleFetchFailure(ctx context.Context, job *Job, enrollment *registry.Enrollment, observedSeq int64, cause error) {
	p.recordFailure(ctx, job, enrollment, observedSeq, cause)

	if !ferrors.HasCategory(cause, ferrors.CategoryRepositoryGone) {
		return
	}
	ctx, cancel := terminalContext(ctx)
	defer cancel()

	reason := "repository gone: " + cause.Error()
	slog.Error("Repository gone, suspending enrollment",
		logfields.Repository(enrollment.FullName()),
		logfields.Slug(enrollment.Slug),
		logfields.Error(cause))
	if err := p.store.Suspend(ctx, enrollment.Owner, enrollment.Name, reason); err != nil {
		slog.Error("Failed to suspend enrollment",
			logfields.Repository(enrollment.FullName()), logfields.Error(err))
		return
	}
	p.notifier.EnrollmentSuspended(enrollment.Owner, enrollment.Name, reason)

	if err := p.RegenerateConfig(ctx); err != nil {
		slog.Error("Failed to regenerate unified config after suspension",
			logfields.Repository(enrollment.FullName()), logfields.Error(err))
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, job *Job, enrollment *registry.Enrollment, observedSeq int64, cause error) {
	ctx, cancel := terminalContext(ctx)
	defer cancel()

	rec := registry.OutcomeRecord{
		Revision:    job.Revision,
		Outcome:     registry.OutcomeFailed,
		Error:       cause.Error(),
		ObservedSeq: observedSeq,
		CompletedAt: time.Now().UTC(),
	}
	if err := p.store.RecordSyncOutcome(ctx, enrollment.Owner, enrollment.Name, rec); err != nil {
		slog.Error("Failed to record sync outcome",
			logfields.Repository(enrollment.FullName()), logfields.Error(err))
	}
}

func (p *Pipeline) activeSlugs(ctx context.Context) ([]string, error) {
	active, err := p.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(active))
	for _, e := range active {
		slugs = append(slugs, e.Slug)
	}
	return slugs, nil
}
