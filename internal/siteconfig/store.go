package siteconfig

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/rewrite"
)

// Store keeps the published output for every repository under one root:
//
//	<root>/
//	  content/<slug>/...     rewritten documents plus copied assets
//	  fragments/<slug>.json  navigation fragment snapshot
//
// Fragment snapshots let the unified configuration be regenerated from
// every repository's latest committed state, not only the one that just
// synced.
type Store struct {
	root string
	mu   sync.RWMutex
}

// NewStore creates the output layout under root.
func NewStore(root string) (*Store, error) {
	dirs := []string{
		filepath.Join(root, "content"),
		filepath.Join(root, "fragments"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryStore, "failed to create site output directory").
				WithContext("dir", dir).
				Build()
		}
	}

	// Staging directories left behind by an interrupted publish.
	leftovers, _ := filepath.Glob(filepath.Join(root, "content", ".staging-*"))
	for _, dir := range leftovers {
		os.RemoveAll(dir) // Best effort
	}

	return &Store{root: root}, nil
}

// ReplaceRepo swaps one repository's published output wholesale. The new
// tree is staged beside the old one and renamed into place, then the
// fragment snapshot is replaced the same way. Other repositories' output
// is untouched.
func (s *Store) ReplaceRepo(ctx context.Context, docs *rewrite.RepoDocs, worktree string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contentDir := filepath.Join(s.root, "content")
	staging, err := os.MkdirTemp(contentDir, ".staging-"+docs.Slug+"-")
	if err != nil {
		return storeErr(err, "failed to create staging directory", docs.Slug)
	}
	defer os.RemoveAll(staging)

	rels := make([]string, 0, len(docs.Nodes)+len(docs.Assets))
	for i := range docs.Nodes {
		rels = append(rels, docs.Nodes[i].Path)
	}
	rels = append(rels, docs.Assets...)
	dest := destinations(docs.DocsDir, rels)

	for i := range docs.Nodes {
		node := &docs.Nodes[i]
		target := filepath.Join(staging, filepath.FromSlash(dest[node.Path]))
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return storeErr(err, "failed to stage document directory", docs.Slug)
		}
		if err := os.WriteFile(target, node.Content, 0o644); err != nil {
			return storeErr(err, "failed to stage document", docs.Slug)
		}
	}

	for _, rel := range docs.Assets {
		src := filepath.Join(worktree, filepath.FromSlash(rel))
		target := filepath.Join(staging, filepath.FromSlash(dest[rel]))
		if err := copyFile(src, target); err != nil {
			return storeErr(err, "failed to stage asset", docs.Slug)
		}
	}

	final := filepath.Join(contentDir, docs.Slug)
	if err := os.RemoveAll(final); err != nil {
		return storeErr(err, "failed to clear previous content", docs.Slug)
	}
	if err := os.Rename(staging, final); err != nil {
		return storeErr(err, "failed to publish content", docs.Slug)
	}

	if err := s.writeFragment(docs.Slug, docs.Navigation); err != nil {
		return err
	}

	slog.Debug("published repository output",
		logfields.Slug(docs.Slug),
		slog.Int("documents", len(docs.Nodes)),
		slog.Int("assets", len(docs.Assets)))
	return nil
}

// RemoveRepo deletes a repository's published output. Missing output is
// not an error; purge stays idempotent.
func (s *Store) RemoveRepo(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.root, "content", slug)); err != nil {
		return storeErr(err, "failed to remove published content", slug)
	}
	if err := os.Remove(s.fragmentPath(slug)); err != nil && !os.IsNotExist(err) {
		return storeErr(err, "failed to remove navigation fragment", slug)
	}
	return nil
}

// Fragments loads every persisted navigation fragment, ordered by slug.
// Callers filter against the active enrollment set before regenerating the
// unified configuration.
func (s *Store) Fragments(ctx context.Context) ([]rewrite.NavigationFragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.root, "fragments")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStore, "failed to list navigation fragments").
			WithContext("dir", dir).
			Build()
	}

	var fragments []rewrite.NavigationFragment
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		slug := strings.TrimSuffix(name, ".json")

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, storeErr(err, "failed to read navigation fragment", slug)
		}
		var frag rewrite.NavigationFragment
		if err := json.Unmarshal(data, &frag); err != nil {
			return nil, storeErr(err, "failed to decode navigation fragment", slug)
		}
		fragments = append(fragments, frag)
	}

	sort.Slice(fragments, func(i, j int) bool { return fragments[i].RepoSlug < fragments[j].RepoSlug })
	return fragments, nil
}

// writeFragment snapshots the navigation fragment with the same temp file
// plus rename swap used for the content tree.
func (s *Store) writeFragment(slug string, frag rewrite.NavigationFragment) error {
	data, err := json.MarshalIndent(frag, "", "  ")
	if err != nil {
		return storeErr(err, "failed to encode navigation fragment", slug)
	}

	path := s.fragmentPath(slug)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return storeErr(err, "failed to write navigation fragment", slug)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return storeErr(err, "failed to publish navigation fragment", slug)
	}
	return nil
}

func (s *Store) fragmentPath(slug string) string {
	return filepath.Join(s.root, "fragments", slug+".json")
}

// destinations maps every published file to a unique location. Stripping
// the docs prefix can collide with a file outside it, so identity paths
// are claimed first and a stripped path that collides falls back to its
// full repository path.
func destinations(docsDir string, rels []string) map[string]string {
	dest := make(map[string]string, len(rels))
	taken := make(map[string]struct{}, len(rels))

	var stripped []string
	for _, rel := range rels {
		p := publishPath(docsDir, rel)
		if p == rel {
			dest[rel] = rel
			taken[rel] = struct{}{}
			continue
		}
		stripped = append(stripped, rel)
	}
	for _, rel := range stripped {
		p := publishPath(docsDir, rel)
		if _, clash := taken[p]; clash {
			p = rel
		}
		dest[rel] = p
		taken[p] = struct{}{}
	}
	return dest
}

// publishPath strips the docs prefix so the published layout matches site
// paths. Files outside the docs dir keep their full repository path.
func publishPath(docsDir, rel string) string {
	docsDir = strings.Trim(docsDir, "/")
	if docsDir == "" {
		return rel
	}
	if strings.HasPrefix(rel, docsDir+"/") {
		return strings.TrimPrefix(rel, docsDir+"/")
	}
	return rel
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func storeErr(err error, message, slug string) error {
	return ferrors.WrapError(err, ferrors.CategoryStore, message).
		WithContext("slug", slug).
		Build()
}
