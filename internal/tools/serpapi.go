package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const serpAPIURL = "https://serpapi.com/search.json"

// SerpAPI searches Google through serpapi.com.
type SerpAPI struct {
	APIKey   string
	BaseURL  string
	Location string
	fetch    *fetcher
}

// NewSerpAPI returns a SerpAPI tool. apiKey is required.
func NewSerpAPI(apiKey string, client *http.Client) (*SerpAPI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("serpapi key is required")
	}
	return &SerpAPI{
		APIKey:  apiKey,
		BaseURL: serpAPIURL,
		fetch:   newFetcher(client, 500*time.Millisecond),
	}, nil
}

func (s *SerpAPI) Name() string { return "GoogleSearch" }

func (s *SerpAPI) Description() string {
	return "A wrapper around Google Search. Useful for when you need to answer questions about current events. Always one of the first options when you need to find information on internet. Input should be a search query."
}

type serpResponse struct {
	Error     string `json:"error"`
	AnswerBox *struct {
		Answer                  string   `json:"answer"`
		Snippet                 string   `json:"snippet"`
		SnippetHighlightedWords []string `json:"snippet_highlighted_words"`
	} `json:"answer_box"`
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"knowledge_graph"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

func (s *SerpAPI) Run(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("query is empty")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", "google")
	params.Set("api_key", s.APIKey)
	if s.Location != "" {
		params.Set("location", s.Location)
	}

	body, err := s.fetch.get(ctx, s.BaseURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}

	var resp serpResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode serpapi response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("serpapi: %s", resp.Error)
	}
	return resp.summary(), nil
}

// summary picks the most direct answer available, falling back to organic results.
func (r *serpResponse) summary() string {
	if ab := r.AnswerBox; ab != nil {
		switch {
		case ab.Answer != "":
			return ab.Answer
		case ab.Snippet != "":
			return ab.Snippet
		case len(ab.SnippetHighlightedWords) > 0:
			return strings.Join(ab.SnippetHighlightedWords, ", ")
		}
	}
	if kg := r.KnowledgeGraph; kg != nil && kg.Description != "" {
		return kg.Description
	}

	results := make([]searchResult, 0, len(r.OrganicResults))
	for _, o := range r.OrganicResults {
		results = append(results, searchResult{Title: o.Title, Link: o.Link, Snippet: o.Snippet})
	}
	if len(results) == 0 {
		return "No good search result found"
	}
	if len(results) > 4 {
		results = results[:4]
	}
	return formatResults(results)
}
