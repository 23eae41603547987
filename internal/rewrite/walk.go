package rewrite

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/inful/mdfp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/frontmatter"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/markdown"
)

// DocumentNode is one rewritten documentation file. Nodes are owned by a
// single sync pass and replaced wholesale on the next one.
type DocumentNode struct {
	RepoSlug string       `json:"repo_slug"`
	Path     string       `json:"path"`
	SitePath string       `json:"site_path"`
	Title    string       `json:"title"`
	Weight   int          `json:"weight,omitempty"`
	Hidden   bool         `json:"hidden,omitempty"`
	Raw      []byte       `json:"-"`
	Content  []byte       `json:"-"`
	Hash     string       `json:"hash"`
	Links    []LinkTarget `json:"links,omitempty"`
}

// UnresolvedLink identifies a destination that could not be mapped, kept
// for operator visibility. Broken links never fail a sync.
type UnresolvedLink struct {
	DocPath string `json:"doc_path"`
	Raw     string `json:"raw"`
}

// RepoDocs is the full rewrite output for one repository working tree.
// Assets are repository-relative paths of non-Markdown files that belong
// in the published tree alongside the rewritten documents.
type RepoDocs struct {
	Slug       string
	DocsDir    string
	Nodes      []DocumentNode
	Assets     []string
	Navigation NavigationFragment
	Unresolved []UnresolvedLink
}

// Tree locates one repository working tree for a rewrite pass.
type Tree struct {
	Slug    string
	Dir     string
	DocsDir string
}

// Directories never walked for content. Dot directories are skipped
// separately.
var skippedDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
}

// Build walks the working tree, rewrites every Markdown document, and
// assembles the repository's nodes and navigation fragment. Nodes come
// back sorted by repository path. A .docignore file at the tree root opts
// the repository out entirely.
func Build(tree Tree, activeSlugs []string) (*RepoDocs, error) {
	docs := &RepoDocs{Slug: tree.Slug, DocsDir: tree.DocsDir}

	if _, err := os.Stat(filepath.Join(tree.Dir, ".docignore")); err == nil {
		slog.Info("repository opts out of documentation sync", logfields.Slug(tree.Slug))
		docs.Navigation = NavigationFragment{RepoSlug: tree.Slug}
		return docs, nil
	}

	files, pages, err := collectFiles(tree.Dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryLink, "walking working tree").
			WithContext("slug", tree.Slug).
			Build()
	}

	for _, rel := range files {
		if isAssetFile(rel) {
			docs.Assets = append(docs.Assets, rel)
		}
	}

	rw := NewRewriter(tree.Slug, tree.DocsDir, files, activeSlugs)

	taken := make(map[string]struct{}, len(pages))
	for _, rel := range pages {
		raw, err := os.ReadFile(filepath.Join(tree.Dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryLink, "reading document").
				WithContext("slug", tree.Slug).
				WithContext("path", rel).
				Build()
		}

		node, err := buildNode(rw, tree.Slug, rel, raw)
		if err != nil {
			return nil, err
		}

		// Docs-prefix stripping can map two files onto one site path; the
		// first (sorted) wins and later ones keep their extension visible.
		if _, clash := taken[node.SitePath]; clash {
			node.SitePath = "/" + tree.Slug + "/" + rel
		}
		taken[node.SitePath] = struct{}{}

		for _, target := range node.Links {
			if target.Kind == KindUnresolved {
				docs.Unresolved = append(docs.Unresolved, UnresolvedLink{DocPath: rel, Raw: target.Raw})
			}
		}
		docs.Nodes = append(docs.Nodes, node)
	}

	docs.Navigation = BuildNavigation(tree.Slug, tree.DocsDir, docs.Nodes)

	slog.Debug("repository rewritten",
		logfields.Slug(tree.Slug),
		slog.Int("documents", len(docs.Nodes)),
		slog.Int("assets", len(docs.Assets)),
		slog.Int("unresolved_links", len(docs.Unresolved)))

	return docs, nil
}

// collectFiles gathers every repository-relative file path plus the subset
// that are Markdown pages, both slash separated and sorted.
func collectFiles(root string) (files []string, pages []string, err error) {
	err = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := info.Name()
		if info.IsDir() {
			if p == root {
				return nil
			}
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if _, skip := skippedDirs[name]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		files = append(files, rel)
		if isMarkdownFile(rel) {
			pages = append(pages, rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(files)
	sort.Strings(pages)
	return files, pages, nil
}

func buildNode(rw *Rewriter, slug, rel string, raw []byte) (DocumentNode, error) {
	content, links, err := rw.RewriteDocument(rel, raw)
	if err != nil {
		return DocumentNode{}, ferrors.WrapError(err, ferrors.CategoryLink, "rewriting document").
			WithContext("slug", slug).
			WithContext("path", rel).
			Build()
	}

	doc, perr := frontmatter.Parse(content)
	if perr != nil {
		doc = frontmatter.Document{Body: content, Style: doc.Style}
	}
	fields, ferr := doc.Fields()
	if ferr != nil {
		// Unparseable frontmatter demotes the document to body-only metadata.
		fields = map[string]any{}
	}

	node := DocumentNode{
		RepoSlug: slug,
		Path:     rel,
		SitePath: rw.SitePath(rel),
		Title:    documentTitle(fields, doc.Body, rel),
		Hidden:   frontmatter.Hidden(fields),
		Raw:      raw,
		Content:  content,
		Hash:     mdfp.CalculateFingerprintFromParts(string(doc.Frontmatter), string(doc.Body)),
		Links:    links,
	}
	if w, ok := frontmatter.Weight(fields); ok {
		node.Weight = w
	}
	return node, nil
}

// documentTitle picks the display title: frontmatter first, then the first
// level-1 heading, then the titleized file stem.
func documentTitle(fields map[string]any, body []byte, rel string) string {
	if t := frontmatter.Title(fields); t != "" {
		return t
	}
	if h, err := markdown.FirstHeading(body, markdown.Options{}); err == nil && h != "" {
		return h
	}
	stem := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	return Titleize(stem)
}

// Titleize turns a file or directory name into a display title. The caser
// is created per call; cases.Caser carries transformer state and must not
// be shared across goroutines.
func Titleize(name string) string {
	cleaned := strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.English).String(cleaned)
}

// isAssetFile reports whether a file should be published next to the
// rewritten documents: images, media, and data files that pages commonly
// reference.
func isAssetFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".bmp", ".ico",
		".pdf",
		".mp4", ".webm", ".ogv",
		".csv", ".json", ".yaml", ".yml", ".xml":
		return true
	}
	return false
}

func isMarkdownFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".mdown", ".mkd":
		return true
	}
	return false
}
