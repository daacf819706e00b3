package tools

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo searches the web through DuckDuckGo's HTML endpoint.
type DuckDuckGo struct {
	// BaseURL defaults to the public HTML endpoint.
	BaseURL    string
	MaxResults int
	fetch      *fetcher
}

// NewDuckDuckGo returns a search tool returning up to four results per query.
func NewDuckDuckGo(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{
		BaseURL:    duckDuckGoURL,
		MaxResults: 4,
		fetch:      newFetcher(client, time.Second),
	}
}

func (d *DuckDuckGo) Name() string { return "DuckDuckGoSearch" }

func (d *DuckDuckGo) Description() string {
	return "A wrapper around DuckDuckGo Search. Useful for when you need to answer questions about current events. Input should be a search query."
}

func (d *DuckDuckGo) Run(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("query is empty")
	}

	body, err := d.fetch.get(ctx, d.BaseURL+"?q="+url.QueryEscape(query))
	if err != nil {
		return "", err
	}

	results, err := parseDuckDuckGo(body)
	if err != nil {
		return "", err
	}
	if len(results) > d.MaxResults {
		results = results[:d.MaxResults]
	}
	if len(results) == 0 {
		return "No good DuckDuckGo Search Result was found", nil
	}
	return formatResults(results), nil
}

type searchResult struct {
	Title   string
	Link    string
	Snippet string
}

func formatResults(results []searchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("Title: %s\nLink: %s\nSnippet: %s", r.Title, r.Link, r.Snippet)
	}
	return strings.Join(parts, "\n\n")
}

// parseDuckDuckGo extracts result anchors and their snippets from the HTML page.
func parseDuckDuckGo(page []byte) ([]searchResult, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var results []searchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				results = append(results, searchResult{
					Title: nodeText(n),
					Link:  resultLink(attr(n, "href")),
				})
				return
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = nodeText(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

// resultLink unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...).
func resultLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
