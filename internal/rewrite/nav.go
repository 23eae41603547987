package rewrite

import (
	"path"
	"sort"
	"strings"
)

// NavItem is one entry in a repository's navigation tree. Section entries
// without their own page carry a title and children but no site path.
type NavItem struct {
	Title    string    `json:"title"`
	SitePath string    `json:"site_path,omitempty"`
	Children []NavItem `json:"children,omitempty"`
}

// NavigationFragment is the per-repository ordered navigation tree. It is
// owned by one repository and replaced atomically on each successful sync.
type NavigationFragment struct {
	RepoSlug string    `json:"repo_slug"`
	Items    []NavItem `json:"items"`
}

// BuildNavigation derives a repository's navigation tree from its document
// set. Hidden documents are excluded. Within each section, pages sort by
// weight (positive weights first, ascending; unweighted after, by path)
// followed by subsections ordered the same way using their index page's
// weight. An index or README page titles its section; a root-level one
// becomes the first entry.
func BuildNavigation(slug, docsDir string, nodes []DocumentNode) NavigationFragment {
	docsDir = strings.Trim(docsDir, "/")
	root := newNavSection()

	for i := range nodes {
		node := &nodes[i]
		if node.Hidden {
			continue
		}

		rel := node.Path
		if docsDir != "" && strings.HasPrefix(rel, docsDir+"/") {
			rel = rel[len(docsDir)+1:]
		}

		dir, base := path.Split(rel)
		sec := root
		if trimmed := strings.Trim(dir, "/"); trimmed != "" {
			sec = root.descend(strings.Split(trimmed, "/"))
		}

		stem := strings.TrimSuffix(base, path.Ext(base))
		if (strings.EqualFold(stem, "index") || strings.EqualFold(stem, "readme")) && sec.page == nil {
			sec.page = node
			continue
		}
		sec.pages = append(sec.pages, node)
	}

	items := root.items()
	if root.page != nil {
		items = append([]NavItem{{Title: root.page.Title, SitePath: root.page.SitePath}}, items...)
	}
	return NavigationFragment{RepoSlug: slug, Items: items}
}

type navSection struct {
	page     *DocumentNode
	pages    []*DocumentNode
	children map[string]*navSection
}

func newNavSection() *navSection {
	return &navSection{children: make(map[string]*navSection)}
}

func (s *navSection) descend(segments []string) *navSection {
	cur := s
	for _, seg := range segments {
		child, ok := cur.children[seg]
		if !ok {
			child = newNavSection()
			cur.children[seg] = child
		}
		cur = child
	}
	return cur
}

func (s *navSection) weight() int {
	if s.page != nil {
		return s.page.Weight
	}
	return 0
}

func (s *navSection) items() []NavItem {
	pages := append([]*DocumentNode(nil), s.pages...)
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Weight != pages[j].Weight {
			return weightLess(pages[i].Weight, pages[j].Weight)
		}
		return pages[i].Path < pages[j].Path
	})

	names := make([]string, 0, len(s.children))
	for name := range s.children {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.children[names[i]], s.children[names[j]]
		if a.weight() != b.weight() {
			return weightLess(a.weight(), b.weight())
		}
		return names[i] < names[j]
	})

	items := make([]NavItem, 0, len(pages)+len(names))
	for _, p := range pages {
		items = append(items, NavItem{Title: p.Title, SitePath: p.SitePath})
	}
	for _, name := range names {
		child := s.children[name]
		item := NavItem{Title: Titleize(name), Children: child.items()}
		if child.page != nil {
			item.Title = child.page.Title
			item.SitePath = child.page.SitePath
		}
		items = append(items, item)
	}
	return items
}

// weightLess orders by explicit weight ascending with unweighted (zero)
// entries last.
func weightLess(a, b int) bool {
	if a == b {
		return false
	}
	if a == 0 {
		return false
	}
	if b == 0 {
		return true
	}
	return a < b
}
