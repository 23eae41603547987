package markdown

import "strings"

// Span marks a byte range in the original source, End exclusive.
type Span struct {
	Start int
	End   int
}

// DestinationSpans returns the byte ranges where dest occurs as a link
// destination in body: inline links and images in the `](dest)`,
// `](dest "title")` and `](<dest>)` forms, plus reference definitions
// `[label]: dest`. Occurrences inside fenced code blocks and inline code
// spans are skipped, so example Markdown in documentation stays untouched.
//
// The scan is line based and byte exact. Destinations that Goldmark
// normalizes away from their source form (padded or escaped targets) are
// not found; callers treat a missing span as "leave the line alone".
func DestinationSpans(body []byte, dest string) []Span {
	if dest == "" {
		return nil
	}

	var (
		spans       []Span
		inCodeBlock bool
		activeFence string
	)

	offset := 0
	for _, line := range strings.Split(string(body), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```"):
			inCodeBlock, activeFence = toggleFence(inCodeBlock, activeFence, "```")
		case strings.HasPrefix(trimmed, "~~~"):
			inCodeBlock, activeFence = toggleFence(inCodeBlock, activeFence, "~~~")
		case !inCodeBlock:
			code := codeSpanRanges(line)
			spans = append(spans, inlineSpans(line, offset, dest, code)...)
			spans = append(spans, referenceDefinitionSpans(line, offset, dest, code)...)
		}
		offset += len(line) + 1
	}

	return spans
}

func toggleFence(inCodeBlock bool, activeFence string, fence string) (bool, string) {
	if !inCodeBlock {
		return true, fence
	}
	if activeFence == fence {
		return false, ""
	}
	return inCodeBlock, activeFence
}

// codeSpanRanges returns the ranges of inline code spans within line,
// delimiters included. Unclosed backtick runs are left as regular text.
func codeSpanRanges(line string) []Span {
	if !strings.Contains(line, "`") {
		return nil
	}

	var spans []Span
	for i := 0; i < len(line); {
		if line[i] != '`' {
			i++
			continue
		}

		run := 1
		for i+run < len(line) && line[i+run] == '`' {
			run++
		}

		marker := strings.Repeat("`", run)
		closeRel := strings.Index(line[i+run:], marker)
		if closeRel == -1 {
			i += run
			continue
		}

		end := i + run + closeRel + run
		spans = append(spans, Span{Start: i, End: end})
		i = end
	}
	return spans
}

func insideAny(spans []Span, start, end int) bool {
	for _, s := range spans {
		if start < s.End && end > s.Start {
			return true
		}
	}
	return false
}

func inlineSpans(line string, base int, dest string, code []Span) []Span {
	var out []Span

	needle := "](" + dest
	for from := 0; ; {
		i := strings.Index(line[from:], needle)
		if i == -1 {
			break
		}
		i += from
		from = i + 1

		start := i + 2
		end := start + len(dest)
		if end >= len(line) {
			continue
		}
		switch line[end] {
		case ')':
		case ' ', '\t':
			// Title form; require the closing paren on the same line.
			if strings.IndexByte(line[end:], ')') == -1 {
				continue
			}
		default:
			// dest is a prefix of a longer destination.
			continue
		}
		if insideAny(code, i, end+1) {
			continue
		}
		out = append(out, Span{Start: base + start, End: base + end})
	}

	needle = "](<" + dest + ">"
	for from := 0; ; {
		i := strings.Index(line[from:], needle)
		if i == -1 {
			break
		}
		i += from
		from = i + 1

		start := i + 3
		end := start + len(dest)
		if insideAny(code, i, end+1) {
			continue
		}
		out = append(out, Span{Start: base + start, End: base + end})
	}

	return out
}

func referenceDefinitionSpans(line string, base int, dest string, code []Span) []Span {
	trimmed := strings.TrimLeft(line, " \t")
	// Footnote definitions ([^1]: ...) are not reference link definitions.
	if !strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "[^") {
		return nil
	}

	colon := strings.Index(trimmed, "]:")
	if colon == -1 {
		return nil
	}

	lead := len(line) - len(trimmed)
	rest := trimmed[colon+2:]
	pad := len(rest) - len(strings.TrimLeft(rest, " \t"))
	tokenStart := lead + colon + 2 + pad

	token := line[tokenStart:]
	if cut := strings.IndexAny(token, " \t\r"); cut != -1 {
		token = token[:cut]
	}
	if token != dest {
		return nil
	}

	start := tokenStart
	end := start + len(token)
	if insideAny(code, start, end) {
		return nil
	}
	return []Span{{Start: base + start, End: base + end}}
}
