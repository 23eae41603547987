package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractLinksInline(t *testing.T) {
	links, err := ExtractLinks([]byte("See [the guide](setup/install.md) before deploying."), Options{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, LinkKindInline, links[0].Kind)
	require.Equal(t, "setup/install.md", links[0].Destination)
}

func TestExtractLinksImageAndAuto(t *testing.T) {
	src := []byte("![Topology](img/topology.png)\n\n<https://status.example.com>\n")
	links, err := ExtractLinks(src, Options{})
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, LinkKindImage, links[0].Kind)
	require.Equal(t, "img/topology.png", links[0].Destination)
	require.Equal(t, LinkKindAuto, links[1].Kind)
	require.Equal(t, "https://status.example.com", links[1].Destination)
}

func TestExtractLinksReferenceUsageAndDefinition(t *testing.T) {
	src := []byte("Read [the API][api].\n\n[api]: reference/api.md\n")
	links, err := ExtractLinks(src, Options{})
	require.NoError(t, err)

	// A used reference shows up twice: Goldmark resolves the usage into a
	// Link node, and the definition is reported separately.
	require.Len(t, links, 2)
	require.Equal(t, LinkKindInline, links[0].Kind)
	require.Equal(t, "reference/api.md", links[0].Destination)
	require.Equal(t, LinkKindReferenceDefinition, links[1].Kind)
	require.Equal(t, "reference/api.md", links[1].Destination)
}

func TestExtractLinksIgnoresCode(t *testing.T) {
	src := []byte("" +
		"Write links as `[text](target.md)` in prose.\n" +
		"\n" +
		"```markdown\n" +
		"[example](fenced.md)\n" +
		"```\n" +
		"\n" +
		"[Real](real.md)\n")

	links, err := ExtractLinks(src, Options{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "real.md", links[0].Destination)
}
