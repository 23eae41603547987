package search

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/frontmatter"
	"git.home.luguber.info/inful/docsync/internal/markdown"
	"git.home.luguber.info/inful/docsync/internal/rewrite"
)

// EntriesForRepo converts a repository's rewritten documents into index
// entries. Hidden documents never reach the index.
func EntriesForRepo(owner, name string, docs *rewrite.RepoDocs) ([]Entry, error) {
	repository := owner + "/" + name
	entries := make([]Entry, 0, len(docs.Nodes))
	for i := range docs.Nodes {
		node := &docs.Nodes[i]
		if node.Hidden {
			continue
		}
		entry, err := entryFromNode(repository, node)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func entryFromNode(repository string, node *rewrite.DocumentNode) (Entry, error) {
	body := node.Content
	if doc, err := frontmatter.Parse(node.Content); err == nil {
		body = doc.Body
	}

	text, err := documentText(body)
	if err != nil {
		return Entry{}, ferrors.WrapError(err, ferrors.CategoryIndex, "failed to extract document text").
			WithContext("path", node.Path).
			Build()
	}

	headings, err := markdown.Headings(body, markdown.Options{})
	if err != nil {
		return Entry{}, ferrors.WrapError(err, ferrors.CategoryIndex, "failed to collect heading anchors").
			WithContext("path", node.Path).
			Build()
	}
	anchors := make([]string, 0, len(headings))
	for _, h := range headings {
		if h.Anchor != "" {
			anchors = append(anchors, h.Anchor)
		}
	}

	return Entry{
		Repository: repository,
		Slug:       node.RepoSlug,
		SitePath:   node.SitePath,
		Title:      node.Title,
		Body:       text,
		Anchors:    strings.Join(anchors, " "),
	}, nil
}

// documentText renders Markdown to HTML and flattens it to plain text, so
// formatting characters never pollute the index.
func documentText(body []byte) (string, error) {
	var rendered bytes.Buffer
	if err := goldmark.New().Convert(body, &rendered); err != nil {
		return "", err
	}

	doc, err := html.Parse(&rendered)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return b.String(), nil
}
