package gitfetch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/retry"
	"git.home.luguber.info/inful/docsync/internal/workspace"
)

// RepoSpec identifies the repository and branch to materialize.
type RepoSpec struct {
	Owner  string
	Name   string
	Branch string
}

// FullName returns the owner/name identity.
func (s RepoSpec) FullName() string { return s.Owner + "/" + s.Name }

// Result describes a materialized working copy.
type Result struct {
	Path     string // working copy root on disk
	Revision string // resolved commit hash
	Branch   string // branch the revision was taken from, if known
}

// Fetcher brings repository working copies to requested revisions.
type Fetcher struct {
	workspace *workspace.Manager
	gitCfg    config.GitConfig
	syncCfg   config.SyncConfig
	policy    retry.Policy
	recorder  metrics.Recorder
}

// NewFetcher creates a fetcher over the given workspace.
func NewFetcher(ws *workspace.Manager, gitCfg config.GitConfig, syncCfg config.SyncConfig, recorder metrics.Recorder) *Fetcher {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Fetcher{
		workspace: ws,
		gitCfg:    gitCfg,
		syncCfg:   syncCfg,
		policy:    retry.FromConfig(syncCfg),
		recorder:  recorder,
	}
}

// CloneURL forms the remote URL for a repository.
func (f *Fetcher) CloneURL(owner, name string) string {
	return strings.TrimRight(f.gitCfg.CloneBaseURL, "/") + "/" + owner + "/" + name + ".git"
}

// Materialize brings the working copy for a repository to the requested
// revision, cloning on first contact and fetching afterwards. An empty
// revision resolves to the head of the spec's branch. Errors carry taxonomy
// categories so callers can route on them.
func (f *Fetcher) Materialize(ctx context.Context, spec RepoSpec, revision string) (Result, error) {
	result, err := f.withRetry(ctx, spec, func(ctx context.Context) (Result, error) {
		return f.materializeOnce(ctx, spec, revision)
	})
	if err != nil {
		return Result{}, asClassified(err, spec.FullName())
	}
	return result, nil
}

func (f *Fetcher) materializeOnce(ctx context.Context, spec RepoSpec, revision string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.syncCfg.FetchTimeoutDuration())
	defer cancel()

	url := f.CloneURL(spec.Owner, spec.Name)
	if f.workspace.HasRepoDir(spec.Owner, spec.Name) {
		result, err := f.updateExisting(ctx, spec, url, revision)
		if err == nil {
			return result, nil
		}
		if isTyped(err) {
			return Result{}, err
		}
		// An unrecognized failure usually means a wedged working copy;
		// heal it with a fresh clone.
		slog.Warn("working copy update failed, recloning",
			logfields.Repository(spec.FullName()), logfields.Error(err))
		if rmErr := f.workspace.RemoveRepoDir(spec.Owner, spec.Name); rmErr != nil {
			return Result{}, rmErr
		}
	}
	return f.cloneFresh(ctx, spec, url, revision)
}

func (f *Fetcher) cloneFresh(ctx context.Context, spec RepoSpec, url, revision string) (Result, error) {
	path, err := f.workspace.EnsureRepoDir(spec.Owner, spec.Name)
	if err != nil {
		return Result{}, err
	}
	if err := os.RemoveAll(path); err != nil {
		return Result{}, err
	}

	slog.Debug("Cloning repository", logfields.URL(url), logfields.Path(path),
		slog.String("branch", spec.Branch))

	opts := &git.CloneOptions{URL: url, Tags: git.NoTags}
	if spec.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(spec.Branch)
		opts.SingleBranch = true
	}
	// Shallow clones only when no explicit revision is pinned; an older
	// commit may not be reachable inside the truncated history.
	if f.syncCfg.ShallowDepth > 0 && revision == "" {
		opts.Depth = f.syncCfg.ShallowDepth
	}
	auth, err := f.authentication()
	if err != nil {
		return Result{}, err
	}
	opts.Auth = auth

	repository, err := git.PlainCloneContext(ctx, path, false, opts)
	if err != nil {
		_ = os.RemoveAll(path)
		return Result{}, classify("clone", url, revision, err)
	}

	result, err := f.checkoutTarget(repository, spec, url, revision)
	if err != nil {
		return Result{}, err
	}
	result.Path = path

	slog.Info("Repository cloned", logfields.Repository(spec.FullName()),
		logfields.Revision(shortHash(result.Revision)), logfields.Path(path))
	return result, nil
}

func (f *Fetcher) updateExisting(ctx context.Context, spec RepoSpec, url, revision string) (Result, error) {
	path := f.workspace.RepoDir(spec.Owner, spec.Name)
	repository, err := git.PlainOpen(path)
	if err != nil {
		return Result{}, classify("open", url, revision, err)
	}

	auth, err := f.authentication()
	if err != nil {
		return Result{}, err
	}
	fetchOpts := &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.NoTags,
		RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Auth:       auth,
		Force:      true,
	}
	if f.syncCfg.ShallowDepth > 0 && revision == "" {
		fetchOpts.Depth = f.syncCfg.ShallowDepth
	}
	if err := repository.FetchContext(ctx, fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return Result{}, classify("fetch", url, revision, err)
	}

	result, err := f.checkoutTarget(repository, spec, url, revision)
	if err != nil {
		return Result{}, err
	}
	result.Path = path

	slog.Info("Repository updated", logfields.Repository(spec.FullName()),
		logfields.Revision(shortHash(result.Revision)))
	return result, nil
}

// checkoutTarget resolves the requested revision (or the branch head when no
// revision is pinned) and force-checks it out, leaving a clean tree.
func (f *Fetcher) checkoutTarget(repository *git.Repository, spec RepoSpec, url, revision string) (Result, error) {
	var hash plumbing.Hash
	branch := spec.Branch

	if revision != "" {
		resolved, err := repository.ResolveRevision(plumbing.Revision(revision))
		if err != nil {
			return Result{}, classify("resolve", url, revision, err)
		}
		hash = *resolved
	} else {
		ref, err := f.branchHead(repository, branch)
		if err != nil {
			return Result{}, classify("resolve", url, revision, err)
		}
		hash = ref.Hash()
		if branch == "" && ref.Name().IsBranch() {
			branch = ref.Name().Short()
		}
	}

	worktree, err := repository.Worktree()
	if err != nil {
		return Result{}, classify("worktree", url, revision, err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return Result{}, classify("checkout", url, revision, err)
	}
	if err := worktree.Clean(&git.CleanOptions{Dir: true}); err != nil {
		slog.Warn("clean untracked failed", logfields.Repository(spec.FullName()), logfields.Error(err))
	}

	return Result{Revision: hash.String(), Branch: branch}, nil
}

// branchHead returns the freshest reference for a branch, preferring the
// remote-tracking ref over a possibly stale local one. With no branch pinned
// the remote default decides; local HEAD is only a last resort since checkouts
// leave it detached.
func (f *Fetcher) branchHead(repository *git.Repository, branch string) (*plumbing.Reference, error) {
	if branch == "" {
		if ref, err := repository.Reference(plumbing.ReferenceName("refs/remotes/origin/HEAD"), true); err == nil {
			return ref, nil
		}
		return repository.Head()
	}
	if ref, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", branch), true); err == nil {
		return ref, nil
	}
	if ref, err := repository.Reference(plumbing.NewBranchReferenceName(branch), true); err == nil {
		return ref, nil
	}
	return nil, plumbing.ErrReferenceNotFound
}

// authentication builds the transport auth method from configuration.
func (f *Fetcher) authentication() (transport.AuthMethod, error) {
	auth := f.gitCfg.Auth
	if auth == nil {
		return nil, nil
	}
	switch auth.Type {
	case "none", "":
		return nil, nil

	case "ssh":
		keyPath := auth.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		publicKeys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, &AuthError{Op: "auth", URL: keyPath, Err: err}
		}
		return publicKeys, nil

	case "token":
		// Forges accept any username when a token is the password.
		return &http.BasicAuth{Username: "token", Password: auth.Token}, nil

	case "basic":
		return &http.BasicAuth{Username: auth.Username, Password: auth.Password}, nil

	default:
		return nil, &AuthError{Op: "auth", URL: auth.Type, Err: errors.New("unsupported authentication type")}
	}
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
