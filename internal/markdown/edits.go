package markdown

import (
	"fmt"
	"sort"
)

// Edit is a targeted byte-range replacement. Start and End are offsets into
// the original source with End exclusive; Replacement substitutes
// source[Start:End]. Rewrites are expressed as edits so that everything
// outside the touched ranges survives byte for byte.
type Edit struct {
	Start       int
	End         int
	Replacement []byte
}

// ApplyEdits applies non-overlapping edits to source and returns the result.
// Offsets refer to the original source; ApplyEdits orders the edits itself,
// so callers may collect them in any order.
func ApplyEdits(source []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return source, nil
	}

	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make([]byte, 0, len(source))
	cursor := 0
	for i, e := range sorted {
		if e.Start < 0 || e.End < e.Start || e.End > len(source) {
			return nil, fmt.Errorf("edit %d: range [%d,%d) outside source of %d bytes", i, e.Start, e.End, len(source))
		}
		if e.Start < cursor {
			return nil, fmt.Errorf("edit %d: range [%d,%d) overlaps a preceding edit", i, e.Start, e.End)
		}
		out = append(out, source[cursor:e.Start]...)
		out = append(out, e.Replacement...)
		cursor = e.End
	}
	out = append(out, source[cursor:]...)

	return out, nil
}
