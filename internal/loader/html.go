package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/bull/ragchain/internal/schema"
)

// HTML loads the visible text of an HTML page. When Reader is set it is
// read instead of Path, and Source names the document.
type HTML struct {
	Path   string
	Reader io.Reader
	Source string
}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"title":    true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "pre": true, "blockquote": true, "table": true,
}

func (l *HTML) Load(ctx context.Context) ([]schema.Document, error) {
	r := l.Reader
	source := l.Source
	if r == nil {
		f, err := os.Open(l.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", l.Path, err)
		}
		defer f.Close()
		r = f
	}
	if source == "" {
		source = l.Path
	}

	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", source, err)
	}

	title, body := extractHTML(doc)
	if body == "" {
		return nil, nil
	}
	meta := metadata(source)
	if title != "" {
		meta[schema.MetaTitle] = title
	}
	return []schema.Document{{Content: body, Metadata: meta}}, nil
}

// extractHTML returns the page title and its visible text with one line
// per block element.
func extractHTML(root *html.Node) (string, string) {
	var title string
	var buf bytes.Buffer

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			if skippedElements[n.Data] {
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if buf.Len() > 0 && !endsWithSpace(buf.Bytes()) {
					buf.WriteByte(' ')
				}
				buf.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] && buf.Len() > 0 && !endsWithSpace(buf.Bytes()) {
			buf.WriteByte('\n')
		}
	}
	walk(root)

	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return title, strings.Join(lines, "\n")
}

func endsWithSpace(b []byte) bool {
	last := b[len(b)-1]
	return last == ' ' || last == '\n'
}
