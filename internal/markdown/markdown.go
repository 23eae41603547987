// Package markdown provides the Markdown analysis primitives used by the
// sync pipeline: link extraction, heading extraction, and minimal-diff
// byte-range editing. It never re-renders Markdown; rewritten documents keep
// the author's formatting everywhere outside the edited ranges.
package markdown

import (
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Options controls how Markdown is parsed for internal analysis.
//
// Intentionally small for now; it exists so parsing behavior (extensions,
// settings) can evolve without rewriting call sites.
type Options struct{}

// Heading is a Markdown heading with the URL fragment it anchors.
type Heading struct {
	Level  int
	Text   string
	Anchor string
}

// ParseBody parses a Markdown body (frontmatter already removed) into a
// Goldmark AST.
func ParseBody(body []byte, _ Options) (gmast.Node, error) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))
	return root, nil
}

// Headings returns all headings in document order. Anchors follow the
// common forge convention: lowercased, punctuation stripped, spaces
// replaced with hyphens.
func Headings(body []byte, opts Options) ([]Heading, error) {
	root, err := ParseBody(body, opts)
	if err != nil {
		return nil, err
	}

	headings := make([]Heading, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}
		txt := nodeText(h, body)
		headings = append(headings, Heading{Level: h.Level, Text: txt, Anchor: Anchorize(txt)})
		return gmast.WalkSkipChildren, nil
	})
	return headings, nil
}

// FirstHeading returns the text of the first level-1 heading, or "" when the
// body has none.
func FirstHeading(body []byte, opts Options) (string, error) {
	headings, err := Headings(body, opts)
	if err != nil {
		return "", err
	}
	for _, h := range headings {
		if h.Level == 1 {
			return h.Text, nil
		}
	}
	return "", nil
}

// Anchorize converts heading text into its URL fragment.
func Anchorize(heading string) string {
	var b strings.Builder
	b.Grow(len(heading))
	for _, r := range strings.ToLower(strings.TrimSpace(heading)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// nodeText concatenates the literal text under n, ignoring markup.
func nodeText(n gmast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *gmast.Text:
			b.Write(node.Segment.Value(source))
		case *gmast.String:
			b.Write(node.Value)
		default:
			b.WriteString(nodeText(c, source))
		}
	}
	return b.String()
}
