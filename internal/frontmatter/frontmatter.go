// Package frontmatter separates YAML frontmatter from Markdown bodies and
// serializes YAML deterministically. The sync pipeline splits every document
// before rewriting so link edits never touch frontmatter, and reassembles it
// afterwards preserving the original newline style.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates a document opened a frontmatter block
// but never closed it.
var ErrMissingClosingDelimiter = errors.New("frontmatter opened with --- but the closing delimiter is missing")

// Style captures the newline shape needed to reassemble a document without
// spurious diffs. It does not attempt to preserve YAML formatting.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

// Document is a Markdown file separated into frontmatter and body.
// Frontmatter holds the raw YAML between the --- delimiters, without them.
type Document struct {
	Frontmatter []byte
	Body        []byte
	Has         bool
	Style       Style
}

// Parse splits content into frontmatter and body. A document without a
// leading --- line has Has false and the full content as Body.
func Parse(content []byte) (Document, error) {
	style := detectStyle(content)
	doc := Document{Body: content, Style: style}

	nl := style.Newline
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return doc, nil
	}

	after := content[len(open):]

	// An immediately repeated delimiter is an empty frontmatter block.
	if bytes.HasPrefix(after, open) {
		doc.Frontmatter = []byte{}
		doc.Body = after[len(open):]
		doc.Has = true
		return doc, nil
	}

	closing := []byte(nl + "---" + nl)
	idx := bytes.Index(after, closing)
	if idx < 0 {
		return Document{Style: style}, ErrMissingClosingDelimiter
	}

	doc.Frontmatter = after[:idx+len(nl)]
	doc.Body = after[idx+len(closing):]
	doc.Has = true
	return doc, nil
}

// Assemble reconstructs the document bytes. Parse followed by Assemble is
// the identity on well formed input.
func (d Document) Assemble() []byte {
	if !d.Has {
		return d.Body
	}

	nl := d.Style.Newline
	if nl == "" {
		nl = "\n"
	}
	delim := []byte("---" + nl)

	out := make([]byte, 0, 2*len(delim)+len(d.Frontmatter)+len(d.Body))
	out = append(out, delim...)
	out = append(out, d.Frontmatter...)
	out = append(out, delim...)
	out = append(out, d.Body...)
	return out
}

// Fields parses the document's frontmatter into a map. Documents without
// frontmatter yield an empty map.
func (d Document) Fields() (map[string]any, error) {
	return ParseYAML(d.Frontmatter)
}

// ParseYAML parses raw YAML frontmatter (without --- delimiters) into a map.
func ParseYAML(frontmatter []byte) (map[string]any, error) {
	if len(frontmatter) == 0 {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(frontmatter, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func detectStyle(content []byte) Style {
	newline := "\n"
	for i := 0; i+1 < len(content); i++ {
		if content[i] == '\r' && content[i+1] == '\n' {
			newline = "\r\n"
			break
		}
		if content[i] == '\n' {
			break
		}
	}

	return Style{
		Newline:            newline,
		HasTrailingNewline: len(content) > 0 && content[len(content)-1] == '\n',
	}
}
