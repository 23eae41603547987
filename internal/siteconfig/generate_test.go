package siteconfig

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/rewrite"
)

func testFragments() []rewrite.NavigationFragment {
	// Deliberately out of slug order.
	return []rewrite.NavigationFragment{
		{
			RepoSlug: "payments",
			Items: []rewrite.NavItem{
				{Title: "Payments", SitePath: "/payments/"},
				{Title: "API", Children: []rewrite.NavItem{
					{Title: "Auth", SitePath: "/payments/api/auth/"},
				}},
			},
		},
		{
			RepoSlug: "guide",
			Items: []rewrite.NavItem{
				{Title: "Guide Home", SitePath: "/guide/"},
				{Title: "Setup", SitePath: "/guide/setup/"},
			},
		},
	}
}

func TestGenerateOrdersNamespacesBySlug(t *testing.T) {
	site := config.SiteConfig{Title: "Docs Portal", BaseURL: "https://docs.example.com"}

	data, err := Generate(site, testFragments())
	require.NoError(t, err)

	want := `base_url: https://docs.example.com
namespaces:
  - nav:
      - path: /guide/
        title: Guide Home
      - path: /guide/setup/
        title: Setup
    path: /guide/
    slug: guide
  - nav:
      - path: /payments/
        title: Payments
      - children:
          - path: /payments/api/auth/
            title: Auth
        title: API
    path: /payments/
    slug: payments
title: Docs Portal
`
	require.Equal(t, want, string(data))
}

func TestGenerateIsByteDeterministic(t *testing.T) {
	site := config.SiteConfig{Title: "Docs Portal", Theme: "plain"}

	first, err := Generate(site, testFragments())
	require.NoError(t, err)

	// Same fragments handed over in the opposite order.
	reversed := testFragments()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	second, err := Generate(site, reversed)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestGenerateOmitsEmptyChrome(t *testing.T) {
	data, err := Generate(config.SiteConfig{Title: "Documentation"}, nil)
	require.NoError(t, err)
	require.Equal(t, "namespaces: []\ntitle: Documentation\n", string(data))
}

func TestGenerateDoesNotMutateInput(t *testing.T) {
	fragments := testFragments()

	_, err := Generate(config.SiteConfig{Title: "Docs"}, fragments)
	require.NoError(t, err)

	require.Equal(t, "payments", fragments[0].RepoSlug)
	require.Equal(t, "guide", fragments[1].RepoSlug)
}
