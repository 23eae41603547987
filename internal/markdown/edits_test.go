package markdown

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyEditsSingleReplacement(t *testing.T) {
	src := []byte("See [setup](setup.md) for details.\n")
	old := []byte("setup.md")
	idx := bytes.Index(src, old)
	require.NotEqual(t, -1, idx)

	out, err := ApplyEdits(src, []Edit{{Start: idx, End: idx + len(old), Replacement: []byte("/guide/setup/")}})
	require.NoError(t, err)
	require.Equal(t, "See [setup](/guide/setup/) for details.\n", string(out))
}

func TestApplyEditsOutOfOrderInput(t *testing.T) {
	src := []byte("A: one.md\nB: two.md\n")
	idx1 := bytes.Index(src, []byte("one.md"))
	idx2 := bytes.Index(src, []byte("two.md"))

	// Later edit supplied first; ApplyEdits orders them itself.
	out, err := ApplyEdits(src, []Edit{
		{Start: idx2, End: idx2 + len("two.md"), Replacement: []byte("/d/two/")},
		{Start: idx1, End: idx1 + len("one.md"), Replacement: []byte("/d/one/")},
	})
	require.NoError(t, err)
	require.Equal(t, "A: /d/one/\nB: /d/two/\n", string(out))
}

func TestApplyEditsPreservesUntouchedBytes(t *testing.T) {
	src := []byte("A: old.md\r\nB: old.md\r\n")
	idx := bytes.Index(src, []byte("old.md"))

	out, err := ApplyEdits(src, []Edit{{Start: idx, End: idx + len("old.md"), Replacement: []byte("new.md")}})
	require.NoError(t, err)
	require.Equal(t, "A: new.md\r\nB: old.md\r\n", string(out))
}

func TestApplyEditsRejectsOverlap(t *testing.T) {
	_, err := ApplyEdits([]byte("abcdef"), []Edit{
		{Start: 1, End: 4, Replacement: []byte("X")},
		{Start: 3, End: 5, Replacement: []byte("Y")},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "overlaps")
}

func TestApplyEditsRejectsOutOfBounds(t *testing.T) {
	_, err := ApplyEdits([]byte("short"), []Edit{{Start: 2, End: 99, Replacement: []byte("X")}})
	require.Error(t, err)
}

func TestApplyEditsEmptyIsIdentity(t *testing.T) {
	src := []byte("unchanged\n")
	out, err := ApplyEdits(src, nil)
	require.NoError(t, err)
	require.Equal(t, src, out)
}
