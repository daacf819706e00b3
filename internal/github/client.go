// Package github fetches documents from a GitHub repository through the
// contents API.
package github

import (
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// Client wraps the GitHub API client with rate limiting support
type Client struct {
	*github.Client
}

// NewClient creates a GitHub client that waits out primary and secondary
// rate limits. An empty token gives an unauthenticated client.
func NewClient(token string) (*Client, error) {
	// Create rate limit handler with default configuration.
	// Handles primary limits (5000 req/hour authenticated, 60 unauthenticated)
	// and secondary limits (abuse detection) by waiting and retrying.
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}

	// Create GitHub client with rate limiting
	ghClient := github.NewClient(rateLimiter)

	// Authenticated clients get the higher rate limit
	if token != "" {
		ghClient = ghClient.WithAuthToken(token)
	}

	return &Client{Client: ghClient}, nil
}
