// Package markdown splits markdown documents into sections at H1 and H2
// headings, keeping the heading hierarchy of each section.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is a contiguous part of a markdown document.
type Section struct {
	Index      int    // Position in document (0, 1, 2...)
	Title      string // Heading text, empty for the preamble
	HeaderPath string // Hierarchy: "# Doc Title > ## Section Name"
	Content    string // Section markdown, including its heading line
}

// Sectioner splits markdown at header boundaries.
type Sectioner struct {
	parser   goldmark.Markdown
	maxDepth int
}

// NewSectioner creates a sectioner splitting at H1 and H2.
func NewSectioner() *Sectioner {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Sectioner{parser: md, maxDepth: 2}
}

type heading struct {
	title string
	path  []string
	start int
}

// Split returns the document's sections in order. Text before the first
// heading becomes an untitled section. A document without headings is a
// single section.
func (s *Sectioner) Split(source []byte) ([]Section, error) {
	doc := s.parser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(s.maxDepth),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var headings []heading
	collectHeadings(doc, source, tree.Items, nil, &headings)

	if len(headings) == 0 {
		content := strings.TrimSpace(string(source))
		if content == "" {
			return nil, nil
		}
		return []Section{{Index: 0, Content: content}}, nil
	}

	var sections []Section
	if pre := strings.TrimSpace(string(source[:headings[0].start])); pre != "" {
		sections = append(sections, Section{Content: pre})
	}
	for i, h := range headings {
		end := len(source)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		sections = append(sections, Section{
			Title:      h.title,
			HeaderPath: formatHeaderPath(h.path),
			Content:    strings.TrimSpace(string(source[h.start:end])),
		})
	}
	for i := range sections {
		sections[i].Index = i
	}
	return sections, nil
}

// collectHeadings flattens the TOC in document order, recording where each
// heading line starts.
func collectHeadings(doc ast.Node, source []byte, items toc.Items, ancestors []string, out *[]heading) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))

		if node := findHeaderByID(doc, string(item.ID)); node != nil && node.Lines().Len() > 0 {
			*out = append(*out, heading{
				title: string(item.Title),
				path:  path,
				start: lineStart(source, node.Lines().At(0).Start),
			})
		}

		if len(item.Items) > 0 {
			collectHeadings(doc, source, item.Items, path, out)
		}
	}
}

// lineStart moves back from offset to the beginning of its line, so the
// "#" markers are part of the section.
func lineStart(source []byte, offset int) int {
	if i := bytes.LastIndexByte(source[:offset], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	parts := make([]string, 0, len(path))
	for i, segment := range path {
		parts = append(parts, strings.Repeat("#", i+1)+" "+segment)
	}
	return strings.Join(parts, " > ")
}

// findHeaderByID locates a heading node by its auto-generated ID.
func findHeaderByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			headingID, ok := n.AttributeString("id")
			if ok {
				if b, isBytes := headingID.([]byte); isBytes && string(b) == id {
					found = n
					return ast.WalkStop, nil
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}
