package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bull/ragchain/internal/llm"
)

const (
	userAgent       = "Mozilla/5.0 (compatible; ragchain/1.0)"
	maxResponseSize = 2 << 20
)

// fetcher performs rate-limited GET requests for the web tools.
type fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newFetcher(client *http.Client, every time.Duration) *fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &fetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

func (f *fetcher) get(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, llm.WrapTimeout(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", llm.WrapTimeout(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}
