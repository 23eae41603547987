package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testRewriter() *Rewriter {
	files := []string{
		"docs/index.md",
		"docs/setup.md",
		"docs/intro.md",
		"docs/api/index.md",
		"docs/api/auth.md",
		"docs/img/arch.png",
		"docs/notes.rst",
		"install/steps.md",
	}
	return NewRewriter("guide", "docs", files, []string{"guide", "payments"})
}

func TestResolveRelativeAcrossDocsRoot(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "../install/steps.md")
	require.Equal(t, "/guide/install/steps/", res.Rewritten)
	require.NotNil(t, res.Target)
	require.Equal(t, KindInternal, res.Target.Kind)
	require.Equal(t, "/guide/install/steps/", res.Target.Path)
}

func TestResolveSiblingStripsDocsPrefix(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "intro.md")
	require.Equal(t, "/guide/intro/", res.Rewritten)
	require.Equal(t, KindInternal, res.Target.Kind)
}

func TestResolvePreservesAnchorAndQuery(t *testing.T) {
	rw := testRewriter()

	res := rw.Resolve("docs/setup.md", "intro.md#config")
	require.Equal(t, "/guide/intro/#config", res.Rewritten)
	require.Equal(t, "config", res.Target.Anchor)
	require.Equal(t, "/guide/intro/", res.Target.Path)

	res = rw.Resolve("docs/setup.md", "intro.md?v=2#top")
	require.Equal(t, "/guide/intro/?v=2#top", res.Rewritten)
	require.Equal(t, "top", res.Target.Anchor)
}

func TestResolveIndexCollapses(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "api/index.md")
	require.Equal(t, "/guide/api/", res.Rewritten)
}

func TestResolveRstTarget(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "notes.rst")
	require.Equal(t, "/guide/notes/", res.Rewritten)
}

func TestResolveAssetKeepsExtension(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "img/arch.png")
	require.Equal(t, "/guide/img/arch.png", res.Rewritten)
	require.Equal(t, KindInternal, res.Target.Kind)
}

func TestResolveAnchorOnlyPassesThrough(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "#section")
	require.Empty(t, res.Rewritten)
	require.Nil(t, res.Target)
}

func TestResolveExternalPassesThrough(t *testing.T) {
	rw := testRewriter()
	for _, dest := range []string{"https://example.com/docs", "mailto:ops@example.com", "tel:+15551234"} {
		res := rw.Resolve("docs/setup.md", dest)
		require.Empty(t, res.Rewritten, "dest %q", dest)
		require.Equal(t, KindExternal, res.Target.Kind, "dest %q", dest)
		require.Equal(t, dest, res.Target.Path, "dest %q", dest)
	}
}

func TestResolveUnifiedPathIsStable(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "/guide/intro/#top")
	require.Empty(t, res.Rewritten)
	require.Equal(t, KindInternal, res.Target.Kind)
	require.Equal(t, "/guide/intro/", res.Target.Path)
	require.Equal(t, "top", res.Target.Anchor)
}

func TestResolveMissingFileIsUnresolved(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "missing.md#x")
	require.Empty(t, res.Rewritten)
	require.Equal(t, KindUnresolved, res.Target.Kind)
	require.Equal(t, "missing.md#x", res.Target.Raw)
	require.Empty(t, res.Target.Path)
}

func TestResolveEscapingRepoRootIsUnresolved(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "../../elsewhere/readme.md")
	require.Empty(t, res.Rewritten)
	require.Equal(t, KindUnresolved, res.Target.Kind)
}

func TestResolveCrossRepo(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "//payments/api/auth.md#tokens")
	require.Equal(t, "/payments/api/auth/#tokens", res.Rewritten)
	require.Equal(t, KindCrossRepo, res.Target.Kind)
	require.Equal(t, "/payments/api/auth/", res.Target.Path)
	require.Equal(t, "tokens", res.Target.Anchor)
}

func TestResolveCrossRepoRootAndIndex(t *testing.T) {
	rw := testRewriter()

	res := rw.Resolve("docs/setup.md", "//payments/")
	require.Equal(t, "/payments/", res.Rewritten)

	res = rw.Resolve("docs/setup.md", "//payments/index.md")
	require.Equal(t, "/payments/", res.Rewritten)
}

func TestResolveCrossRepoUnknownSlug(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "//billing/overview.md")
	require.Empty(t, res.Rewritten)
	require.Equal(t, KindUnresolved, res.Target.Kind)
}

func TestResolveProtocolRelativeURLIsExternal(t *testing.T) {
	res := testRewriter().Resolve("docs/setup.md", "//cdn.example.com/lib.js")
	require.Empty(t, res.Rewritten)
	require.Equal(t, KindExternal, res.Target.Kind)
}

func TestRewriteDocument(t *testing.T) {
	src := []byte("" +
		"---\n" +
		"title: Setup\n" +
		"---\n" +
		"# Setup\n" +
		"\n" +
		"Start with [the intro](intro.md), then [install](../install/steps.md#prereqs).\n" +
		"\n" +
		"Links look like `[text](intro.md)` in Markdown.\n" +
		"\n" +
		"See [billing docs](//payments/api/auth.md) and [missing](gone.md).\n" +
		"\n" +
		"[ref]: api/auth.md\n")

	out, targets, err := testRewriter().RewriteDocument("docs/setup.md", src)
	require.NoError(t, err)

	want := "" +
		"---\n" +
		"title: Setup\n" +
		"---\n" +
		"# Setup\n" +
		"\n" +
		"Start with [the intro](/guide/intro/), then [install](/guide/install/steps/#prereqs).\n" +
		"\n" +
		"Links look like `[text](intro.md)` in Markdown.\n" +
		"\n" +
		"See [billing docs](/payments/api/auth/) and [missing](gone.md).\n" +
		"\n" +
		"[ref]: /guide/api/auth/\n"
	require.Equal(t, want, string(out))

	kinds := make(map[string]LinkKind, len(targets))
	for _, target := range targets {
		kinds[target.Raw] = target.Kind
	}
	require.Equal(t, KindInternal, kinds["intro.md"])
	require.Equal(t, KindInternal, kinds["../install/steps.md#prereqs"])
	require.Equal(t, KindCrossRepo, kinds["//payments/api/auth.md"])
	require.Equal(t, KindUnresolved, kinds["gone.md"])
	require.Equal(t, KindInternal, kinds["api/auth.md"])
}

func TestRewriteDocumentIsIdempotent(t *testing.T) {
	src := []byte("See [intro](intro.md) and [external](https://example.com/).\n")

	rw := testRewriter()
	once, _, err := rw.RewriteDocument("docs/setup.md", src)
	require.NoError(t, err)

	twice, _, err := rw.RewriteDocument("docs/setup.md", once)
	require.NoError(t, err)
	require.Equal(t, string(once), string(twice))
}

func TestRewriteDocumentRecordsEachDestinationOnce(t *testing.T) {
	src := []byte("[a](intro.md) and again [b](intro.md).\n")

	out, targets, err := testRewriter().RewriteDocument("docs/setup.md", src)
	require.NoError(t, err)
	require.Equal(t, "[a](/guide/intro/) and again [b](/guide/intro/).\n", string(out))
	require.Len(t, targets, 1)
}

func TestRewriteDocumentUnterminatedFrontmatter(t *testing.T) {
	src := []byte("---\ntitle: Broken\nSee [intro](intro.md).\n")

	out, _, err := testRewriter().RewriteDocument("docs/setup.md", src)
	require.NoError(t, err)
	require.Equal(t, "---\ntitle: Broken\nSee [intro](/guide/intro/).\n", string(out))
}
