// Package siteconfig assembles the unified site configuration artifact and
// the published output tree behind it. The artifact is the hand-off point to
// the downstream renderer: one YAML document carrying the global chrome and
// a navigation namespace per active repository.
package siteconfig

import (
	"sort"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/frontmatter"
	"git.home.luguber.info/inful/docsync/internal/rewrite"
)

// Generate merges the site chrome with the given navigation fragments.
// Namespaces are ordered by slug and map keys serialize sorted, so equal
// inputs always produce identical bytes. Callers pass only fragments that
// belong to active enrollments; suspended repositories contribute nothing.
func Generate(site config.SiteConfig, fragments []rewrite.NavigationFragment) ([]byte, error) {
	ordered := make([]rewrite.NavigationFragment, len(fragments))
	copy(ordered, fragments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].RepoSlug < ordered[j].RepoSlug })

	namespaces := make([]any, 0, len(ordered))
	for _, frag := range ordered {
		namespaces = append(namespaces, map[string]any{
			"slug": frag.RepoSlug,
			"path": "/" + frag.RepoSlug + "/",
			"nav":  navItems(frag.Items),
		})
	}

	root := map[string]any{
		"title":      site.Title,
		"namespaces": namespaces,
	}
	if site.Description != "" {
		root["description"] = site.Description
	}
	if site.BaseURL != "" {
		root["base_url"] = site.BaseURL
	}
	if site.Theme != "" {
		root["theme"] = site.Theme
	}

	return frontmatter.SerializeYAML(root, frontmatter.Style{Newline: "\n"})
}

func navItems(items []rewrite.NavItem) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		entry := map[string]any{"title": item.Title}
		if item.SitePath != "" {
			entry["path"] = item.SitePath
		}
		if len(item.Children) > 0 {
			entry["children"] = navItems(item.Children)
		}
		out = append(out, entry)
	}
	return out
}
