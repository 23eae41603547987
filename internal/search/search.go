// Package search maintains the full-text index over every synchronized
// document. Entries are tagged with their repository so one repository's
// sync replaces exactly its own rows, and reads are filtered through an
// access policy before ranking.
package search

import "context"

// Entry is one indexable document: its unified site path, owning
// repository, display title, extracted body text, and heading anchors.
type Entry struct {
	Repository string `json:"repository"` // owner/name
	Slug       string `json:"slug"`
	SitePath   string `json:"site_path"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Anchors    string `json:"anchors,omitempty"`
}

// Result is one ranked hit.
type Result struct {
	SitePath   string `json:"path"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	Repository string `json:"repository"`
}

// Response is a paginated result page with the total match count.
type Response struct {
	Query   string   `json:"query"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
}

// AccessPolicy narrows the repository set an identity may search. The
// service hands it the enrolled active repositories; the policy returns
// the visible subset. The gate deployed in front of the service supplies
// the real implementation.
type AccessPolicy interface {
	VisibleRepositories(ctx context.Context, identity string, enrolled []string) ([]string, error)
}

/// AllowAll is the default policy: every enrolled repository is visible to
// every identity.
type AllowAll struct{}

func (AllowAll) VisibleRepositories(ctx context.Context, identity string, enrolled []string) ([]string, error) {
	return enrolled, nil
}
