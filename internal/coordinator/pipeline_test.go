package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/config"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/gitfetch"
	"git.home.luguber.info/inful/docsync/internal/registry"
	"git.home.luguber.info/inful/docsync/internal/search"
	"git.home.luguber.info/inful/docsync/internal/siteconfig"
	"git.home.luguber.info/inful/docsync/internal/workspace"
)

// recordingNotifier captures suspension notifications for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	suspended []string
}

func (n *recordingNotifier) JobQueued(Job)                               {}
func (n *recordingNotifier) JobStarted(Job)                              {}
func (n *recordingNotifier) JobStageCompleted(Job, Stage, time.Duration) {}
func (n *recordingNotifier) JobCompleted(Job)                            {}

func (n *recordingNotifier) EnrollmentSuspended(owner, name, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.suspended = append(n.suspended, owner+"/"+name)
}

func (n *recordingNotifier) suspensions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.suspended...)
}

// pipelineFixture runs the full sync pipeline against real stores: a sqlite
// registry, a sqlite search index, an on-disk site output tree, and git
// origins served over the file transport.
type pipelineFixture struct {
	store      registry.Store
	index      *search.Index
	ws         *workspace.Manager
	pipe       *Pipeline
	notifier   *recordingNotifier
	originBase string
	configPath string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	root := t.TempDir()

	store, err := registry.NewSQLiteStore(filepath.Join(root, "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	index, err := search.NewIndex(filepath.Join(root, "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	publisher, err := siteconfig.NewStore(filepath.Join(root, "site"))
	require.NoError(t, err)
	configPath := filepath.Join(root, "site", "docsync.yaml")
	writer := siteconfig.NewWriter(configPath)

	ws := workspace.NewManager(filepath.Join(root, "ws"))
	require.NoError(t, ws.Ensure())

	originBase := filepath.Join(root, "origins")
	fetcher := gitfetch.NewFetcher(ws, config.GitConfig{CloneBaseURL: originBase}, config.SyncConfig{
		FetchTimeout:      "30s",
		RetryInitialDelay: "1ms",
		RetryMaxDelay:     "5ms",
	}, nil)

	notifier := &recordingNotifier{}
	site := config.SiteConfig{Title: "Unified Docs"}
	pipe := NewPipeline(store, fetcher, publisher, writer, index, site, "docs", nil, notifier)

	return &pipelineFixture{
		store:      store,
		index:      index,
		ws:         ws,
		pipe:       pipe,
		notifier:   notifier,
		originBase: originBase,
		configPath: configPath,
	}
}

// initOrigin creates a git origin under <base>/<owner>/<name>.git with one
// committed document and enrolls the repository.
func (fx *pipelineFixture) initOrigin(t *testing.T, owner, name, body string) *git.Repository {
	t.Helper()
	path := filepath.Join(fx.originBase, owner, name+".git")
	require.NoError(t, os.MkdirAll(path, 0o750))
	repo, err := git.PlainInit(path, false)
	require.NoError(t, err)
	commitFile(t, repo, path, "docs/index.md", body)
	_, err = fx.store.Enroll(t.Context(), owner, name, "master")
	require.NoError(t, err)
	return repo
}

func commitFile(t *testing.T, repo *git.Repository, repoPath, name, content string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	full := filepath.Join(repoPath, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash
}

// runSync executes one pipeline run for the repository at its branch head.
func (fx *pipelineFixture) runSync(t *testing.T, owner, name, revision string) (string, error) {
	t.Helper()
	enrollment, err := fx.store.Get(t.Context(), owner, name)
	require.NoError(t, err)
	job := NewJob(owner, name, revision, TriggerManual)
	return fx.pipe.Run(t.Context(), job, enrollment, func(Stage) {})
}

func (fx *pipelineFixture) readConfig(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(fx.configPath)
	require.NoError(t, err)
	return string(data)
}

func TestPipelineFailureLeavesOtherRepositoriesUntouched(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.initOrigin(t, "acme", "guide", "# Guide\n\nThe quarterly onboarding walkthrough.")
	fx.initOrigin(t, "acme", "handbook", "# Handbook\n\nOperations handbook content.")

	rev, err := fx.runSync(t, "acme", "guide", "")
	require.NoError(t, err)
	require.NotEmpty(t, rev)

	before := fx.readConfig(t)
	require.Contains(t, before, "guide")

	// Handbook sync dies resolving a revision its origin never had.
	_, err = fx.runSync(t, "acme", "handbook", strings.Repeat("d", 40))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRevision))

	// The guide's committed state survives the handbook's failure.
	assert.Equal(t, before, fx.readConfig(t), "unified config unchanged by another repository's failure")
	resp, err := fx.index.Query(t.Context(), "onboarding", []string{"acme/guide"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total, "guide entries still searchable")

	guide, err := fx.store.Get(t.Context(), "acme", "guide")
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeSuccess, guide.LastOutcome)
	assert.Equal(t, rev, guide.LastSyncedRevision)

	handbook, err := fx.store.Get(t.Context(), "acme", "handbook")
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeFailed, handbook.LastOutcome)
	assert.NotEmpty(t, handbook.LastError)
	assert.Empty(t, handbook.LastSyncedRevision, "failure never records a synced revision")
}

func TestPipelineRecordsOutcomeAfterJobDeadline(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.initOrigin(t, "acme", "guide", "# Guide")

	enrollment, err := fx.store.Get(t.Context(), "acme", "guide")
	require.NoError(t, err)

	// The job context is already past its deadline when the run starts, as
	// when a sync exhausts its wall-clock budget mid-fetch.
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	job := NewJob("acme", "guide", "", TriggerManual)
	_, err = fx.pipe.Run(ctx, job, enrollment, func(Stage) {})
	require.Error(t, err)

	// The terminal bookkeeping must land even though the job's own context
	// is dead.
	after, err := fx.store.Get(t.Context(), "acme", "guide")
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeFailed, after.LastOutcome)
	assert.NotEmpty(t, after.LastError)
}

func TestPipelineGoneRepositorySuspendsAndDropsNavigation(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.initOrigin(t, "acme", "guide", "# Guide\n\nThe quarterly onboarding walkthrough.")
	fx.initOrigin(t, "acme", "ghost", "# Ghost\n\nPhantom release checklist.")

	_, err := fx.runSync(t, "acme", "guide", "")
	require.NoError(t, err)
	_, err = fx.runSync(t, "acme", "ghost", "")
	require.NoError(t, err)
	require.Contains(t, fx.readConfig(t), "ghost")

	// The origin disappears; the next sync makes first contact again.
	require.NoError(t, os.RemoveAll(filepath.Join(fx.originBase, "acme", "ghost.git")))
	require.NoError(t, fx.ws.RemoveRepoDir("acme", "ghost"))

	_, err = fx.runSync(t, "acme", "ghost", "")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRepositoryGone))

	ghost, err := fx.store.Get(t.Context(), "acme", "ghost")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusSuspended, ghost.Status)
	assert.Equal(t, registry.OutcomeFailed, ghost.LastOutcome)
	assert.Equal(t, []string{"acme/ghost"}, fx.notifier.suspensions())

	after := fx.readConfig(t)
	assert.Contains(t, after, "guide", "active repositories keep their navigation")
	assert.NotContains(t, after, "ghost", "suspended repository omitted from the unified config")

	// Search entries survive suspension until an explicit purge.
	resp, err := fx.index.Query(t.Context(), "phantom", []string{"acme/ghost"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
}

func TestPipelineStaleSequenceRejectsOutcomeLast(t *testing.T) {
	fx := newPipelineFixture(t)
	repo := fx.initOrigin(t, "acme", "guide", "v1 body")
	originPath := filepath.Join(fx.originBase, "acme", "guide.git")

	stale, err := fx.store.Get(t.Context(), "acme", "guide")
	require.NoError(t, err)

	firstRev, err := fx.runSync(t, "acme", "guide", "")
	require.NoError(t, err)

	// A second run holding the pre-sync enrollment snapshot presents a
	// stale sequence. Its artifacts commit, but the outcome is rejected.
	commitFile(t, repo, originPath, "docs/index.md", "v2 body")
	job := NewJob("acme", "guide", "", TriggerManual)
	_, err = fx.pipe.Run(t.Context(), job, stale, func(Stage) {})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryStaleRevision))

	after, err := fx.store.Get(t.Context(), "acme", "guide")
	require.NoError(t, err)
	assert.Equal(t, firstRev, after.LastSyncedRevision, "rejected outcome leaves the recorded revision alone")
	assert.Equal(t, registry.OutcomeSuccess, after.LastOutcome)
}
