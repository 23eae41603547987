package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeadings(t *testing.T) {
	src := []byte("" +
		"# Getting Started\n" +
		"\n" +
		"Intro text.\n" +
		"\n" +
		"## Install & Configure\n" +
		"\n" +
		"### With `docker run`\n")

	headings, err := Headings(src, Options{})
	require.NoError(t, err)
	require.Len(t, headings, 3)

	require.Equal(t, 1, headings[0].Level)
	require.Equal(t, "Getting Started", headings[0].Text)
	require.Equal(t, "getting-started", headings[0].Anchor)

	require.Equal(t, 2, headings[1].Level)
	require.Equal(t, "install--configure", headings[1].Anchor)

	// Inline code inside a heading contributes its literal text.
	require.Equal(t, "With docker run", headings[2].Text)
	require.Equal(t, "with-docker-run", headings[2].Anchor)
}

func TestFirstHeading(t *testing.T) {
	src := []byte("Preamble.\n\n## Minor\n\n# The Title\n")
	title, err := FirstHeading(src, Options{})
	require.NoError(t, err)
	require.Equal(t, "The Title", title)
}

func TestFirstHeadingMissing(t *testing.T) {
	title, err := FirstHeading([]byte("Just prose, no headings.\n"), Options{})
	require.NoError(t, err)
	require.Equal(t, "", title)
}

func TestAnchorize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Getting Started", "getting-started"},
		{"Install & Configure", "install--configure"},
		{"FAQ: v2.0?", "faq-v20"},
		{"  padded  ", "padded"},
		{"snake_case stays", "snake_case-stays"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Anchorize(tc.in), "input %q", tc.in)
	}
}
