package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/rewrite"
)

func TestEntriesForRepoExtractsTextAndAnchors(t *testing.T) {
	docs := &rewrite.RepoDocs{
		Slug: "guide",
		Nodes: []rewrite.DocumentNode{{
			RepoSlug: "guide",
			Path:     "docs/install.md",
			SitePath: "/guide/install/",
			Title:    "Install Guide",
			Content: []byte(`---
title: Install Guide
---
# Install Guide

Some **bold** text with a [link](/guide/setup/).

## Configure
`),
		}},
	}

	entries, err := EntriesForRepo("acme", "guide", docs)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, "acme/guide", entry.Repository)
	require.Equal(t, "guide", entry.Slug)
	require.Equal(t, "/guide/install/", entry.SitePath)
	require.Equal(t, "Install Guide", entry.Title)

	require.Contains(t, entry.Body, "Some bold text with a link")
	require.NotContains(t, entry.Body, "**")
	require.NotContains(t, entry.Body, "](")
	// Frontmatter stays out of the indexed text.
	require.NotContains(t, entry.Body, "title:")

	require.Equal(t, "install-guide configure", entry.Anchors)
}

func TestEntriesForRepoSkipsHidden(t *testing.T) {
	docs := &rewrite.RepoDocs{
		Slug: "guide",
		Nodes: []rewrite.DocumentNode{
			{RepoSlug: "guide", SitePath: "/guide/", Title: "Home", Content: []byte("# Home\n")},
			{RepoSlug: "guide", SitePath: "/guide/draft/", Title: "Draft", Hidden: true, Content: []byte("# Draft\n")},
		},
	}

	entries, err := EntriesForRepo("acme", "guide", docs)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "/guide/", entries[0].SitePath)
}

func TestDocumentTextIncludesCodeBlocks(t *testing.T) {
	text, err := documentText([]byte("Run this:\n\n```\ndocsync serve --config ./config.yaml\n```\n"))
	require.NoError(t, err)
	require.Contains(t, text, "docsync serve --config ./config.yaml")
}
