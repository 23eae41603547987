// Package rewrite transforms repository-relative documentation links into
// their unified-site form and produces the per-repository artifacts the
// pipeline commits: document nodes, link records, and a navigation fragment.
//
// Resolution is a pure function of the repository file set and the enrolled
// namespace set. Rewriting is idempotent: already-unified destinations
// (leading slash) pass through untouched, so running the rewriter over its
// own output changes nothing.
package rewrite

import (
	"errors"
	"path"
	"strings"

	"git.home.luguber.info/inful/docsync/internal/frontmatter"
	"git.home.luguber.info/inful/docsync/internal/markdown"
)

// LinkKind classifies how a link destination was resolved.
type LinkKind string

const (
	KindInternal   LinkKind = "internal-same-repo"
	KindCrossRepo  LinkKind = "cross-repo"
	KindExternal   LinkKind = "external"
	KindUnresolved LinkKind = "unresolved"
)

// LinkTarget records the resolution of one outbound link destination.
// Raw is the destination as authored. Path is the unified site path for
// internal and cross-repo links, the original URL for external links, and
// empty when unresolved. Anchor carries the fragment without the '#'.
type LinkTarget struct {
	Raw    string   `json:"raw"`
	Path   string   `json:"path,omitempty"`
	Anchor string   `json:"anchor,omitempty"`
	Kind   LinkKind `json:"kind"`
}

// Resolution is the outcome of resolving one destination. Rewritten is the
// replacement destination text, empty when the original passes through
// untouched. Target is nil for constructs that are not outbound links,
// such as anchor-only references.
type Resolution struct {
	Rewritten string
	Target    *LinkTarget
}

// Rewriter resolves link destinations for one repository against its file
// set and the set of enrolled namespaces.
type Rewriter struct {
	slug    string
	docsDir string
	files   map[string]struct{}
	slugs   map[string]struct{}
}

// NewRewriter builds a resolver for one sync pass. files holds every
// repository-relative path in the working tree; activeSlugs the namespace
// slugs of currently active enrollments, consulted for cross-repo links.
func NewRewriter(slug, docsDir string, files []string, activeSlugs []string) *Rewriter {
	r := &Rewriter{
		slug:    slug,
		docsDir: strings.Trim(docsDir, "/"),
		files:   make(map[string]struct{}, len(files)),
		slugs:   make(map[string]struct{}, len(activeSlugs)),
	}
	for _, f := range files {
		r.files[path.Clean(f)] = struct{}{}
	}
	for _, s := range activeSlugs {
		r.slugs[s] = struct{}{}
	}
	return r
}

// RewriteDocument rewrites every resolvable link destination in one
// Markdown document and reports each distinct destination once. The
// returned bytes carry the frontmatter reattached; everything outside the
// rewritten destinations survives byte for byte.
func (r *Rewriter) RewriteDocument(srcPath string, content []byte) ([]byte, []LinkTarget, error) {
	doc, err := frontmatter.Parse(content)
	if errors.Is(err, frontmatter.ErrMissingClosingDelimiter) {
		// An unterminated frontmatter block is treated as body text.
		doc = frontmatter.Document{Body: content, Style: doc.Style}
	} else if err != nil {
		return nil, nil, err
	}

	links, err := markdown.ExtractLinks(doc.Body, markdown.Options{})
	if err != nil {
		return nil, nil, err
	}

	var (
		targets []LinkTarget
		edits   []markdown.Edit
		seen    = make(map[string]struct{}, len(links))
	)
	for _, link := range links {
		dest := link.Destination
		if _, dup := seen[dest]; dup {
			continue
		}
		seen[dest] = struct{}{}

		var res Resolution
		if link.Kind == markdown.LinkKindAuto {
			// Autolinks are absolute by construction.
			res = Resolution{Target: &LinkTarget{Raw: dest, Path: dest, Kind: KindExternal}}
		} else {
			res = r.Resolve(srcPath, dest)
		}

		if res.Target != nil {
			targets = append(targets, *res.Target)
		}
		if res.Rewritten == "" || res.Rewritten == dest {
			continue
		}
		for _, span := range markdown.DestinationSpans(doc.Body, dest) {
			edits = append(edits, markdown.Edit{
				Start:       span.Start,
				End:         span.End,
				Replacement: []byte(res.Rewritten),
			})
		}
	}

	body, err := markdown.ApplyEdits(doc.Body, edits)
	if err != nil {
		return nil, nil, err
	}
	doc.Body = body
	return doc.Assemble(), targets, nil
}

// Resolve maps one authored destination to its unified form.
func (r *Rewriter) Resolve(srcPath, dest string) Resolution {
	switch {
	case dest == "" || strings.HasPrefix(dest, "#"):
		// Anchor-only references stay within the page.
		return Resolution{}
	case isExternal(dest):
		return Resolution{Target: &LinkTarget{Raw: dest, Path: dest, Kind: KindExternal}}
	case strings.HasPrefix(dest, "//"):
		return r.resolveCrossRepo(dest)
	case strings.HasPrefix(dest, "/"):
		// Already a unified path; never rewrite twice.
		p, _, anchor := splitParts(dest)
		return Resolution{Target: &LinkTarget{Raw: dest, Path: p, Anchor: anchor, Kind: KindInternal}}
	default:
		return r.resolveRelative(srcPath, dest)
	}
}

// SitePath maps a repository-relative file path to its unified site path.
// The configured docs directory prefix is dropped, page extensions are
// stripped with a trailing slash added, and index/README pages collapse
// into their directory. Other files keep their name under the namespace.
func (r *Rewriter) SitePath(repoPath string) string {
	rel := path.Clean(repoPath)
	if r.docsDir != "" {
		if rel == r.docsDir {
			rel = "."
		} else if strings.HasPrefix(rel, r.docsDir+"/") {
			rel = rel[len(r.docsDir)+1:]
		}
	}
	return namespacePath(r.slug, rel)
}

func (r *Rewriter) resolveRelative(srcPath, dest string) Resolution {
	p, query, anchor := splitParts(dest)
	if p == "" {
		return Resolution{}
	}

	resolved := path.Join(path.Dir(srcPath), p)
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return Resolution{Target: &LinkTarget{Raw: dest, Anchor: anchor, Kind: KindUnresolved}}
	}
	if _, ok := r.files[resolved]; !ok {
		return Resolution{Target: &LinkTarget{Raw: dest, Anchor: anchor, Kind: KindUnresolved}}
	}

	site := r.SitePath(resolved)
	return Resolution{
		Rewritten: rejoin(site, query, anchor),
		Target:    &LinkTarget{Raw: dest, Path: site, Anchor: anchor, Kind: KindInternal},
	}
}

// resolveCrossRepo handles the explicit //{slug}/path form. A first segment
// containing a dot is a protocol-relative URL host, not a namespace, and
// passes through as external.
func (r *Rewriter) resolveCrossRepo(dest string) Resolution {
	p, query, anchor := splitParts(dest)
	slug, sub, _ := strings.Cut(strings.TrimPrefix(p, "//"), "/")

	if slug == "" || strings.Contains(slug, ".") {
		return Resolution{Target: &LinkTarget{Raw: dest, Path: dest, Kind: KindExternal}}
	}
	if _, ok := r.slugs[slug]; !ok {
		return Resolution{Target: &LinkTarget{Raw: dest, Anchor: anchor, Kind: KindUnresolved}}
	}

	rel := path.Clean("/" + sub)[1:]
	site := namespacePath(slug, rel)
	return Resolution{
		Rewritten: rejoin(site, query, anchor),
		Target:    &LinkTarget{Raw: dest, Path: site, Anchor: anchor, Kind: KindCrossRepo},
	}
}

// namespacePath joins a namespace-relative file path under its slug.
func namespacePath(slug, rel string) string {
	if rel == "." || rel == "" {
		return "/" + slug + "/"
	}
	page, isPage := pagePath(rel)
	switch {
	case !isPage:
		return "/" + slug + "/" + rel
	case page == "":
		return "/" + slug + "/"
	default:
		return "/" + slug + "/" + page + "/"
	}
}

// pagePath strips a page extension and collapses index/README files into
// their directory. The second return reports whether rel was a page.
func pagePath(rel string) (string, bool) {
	ext := strings.ToLower(path.Ext(rel))
	if !isPageExtension(ext) {
		return rel, false
	}
	rel = rel[:len(rel)-len(ext)]
	base := path.Base(rel)
	if strings.EqualFold(base, "index") || strings.EqualFold(base, "readme") {
		rel = path.Dir(rel)
		if rel == "." {
			rel = ""
		}
	}
	return rel, true
}

func isPageExtension(ext string) bool {
	switch ext {
	case ".md", ".markdown", ".mdown", ".mkd", ".rst":
		return true
	}
	return false
}

func isExternal(dest string) bool {
	if strings.Contains(dest, "://") {
		return true
	}
	lower := strings.ToLower(dest)
	return strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:")
}

// splitParts separates a destination into path, query, and anchor. The
// anchor splits first, matching how authors write `page.md?v=2#section`.
func splitParts(dest string) (p, query, anchor string) {
	p = dest
	if i := strings.IndexByte(p, '#'); i >= 0 {
		anchor = p[i+1:]
		p = p[:i]
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		query = p[i+1:]
		p = p[:i]
	}
	return p, query, anchor
}

func rejoin(p, query, anchor string) string {
	var b strings.Builder
	b.WriteString(p)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	if anchor != "" {
		b.WriteByte('#')
		b.WriteString(anchor)
	}
	return b.String()
}
