package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ddgPage = `<html><body>
<div class="result results_links">
  <h2 class="result__title"><a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fnews&amp;rut=x">Brazil <b>economy</b> news</a></h2>
  <a class="result__snippet" href="#">Inflation slowed in <b>March</b>.</a>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="https://example.org/b">Second</a></h2>
  <a class="result__snippet">Another snippet</a>
</div>
</body></html>`

func TestParseDuckDuckGo(t *testing.T) {
	results, err := parseDuckDuckGo([]byte(ddgPage))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Brazil economy news", results[0].Title)
	assert.Equal(t, "https://example.com/news", results[0].Link)
	assert.Equal(t, "Inflation slowed in March.", results[0].Snippet)
	assert.Equal(t, "https://example.org/b", results[1].Link)
}

func TestDuckDuckGoRun(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	d := NewDuckDuckGo(srv.Client())
	d.BaseURL = srv.URL
	d.MaxResults = 1

	out, err := d.Run(context.Background(), "brazil economy")
	require.NoError(t, err)
	assert.Equal(t, "brazil economy", query)
	assert.Equal(t, "Title: Brazil economy news\nLink: https://example.com/news\nSnippet: Inflation slowed in March.", out)
}

func TestSerpAPIRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		switch r.URL.Query().Get("q") {
		case "answer":
			w.Write([]byte(`{"answer_box":{"answer":"42"}}`))
		case "organic":
			w.Write([]byte(`{"organic_results":[{"title":"T","link":"https://x","snippet":"S"}]}`))
		default:
			w.Write([]byte(`{"error":"Invalid API key"}`))
		}
	}))
	defer srv.Close()

	s, err := NewSerpAPI("secret", srv.Client())
	require.NoError(t, err)
	s.BaseURL = srv.URL

	out, err := s.Run(context.Background(), "answer")
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	out, err = s.Run(context.Background(), "organic")
	require.NoError(t, err)
	assert.Equal(t, "Title: T\nLink: https://x\nSnippet: S", out)

	_, err = s.Run(context.Background(), "bad")
	assert.ErrorContains(t, err, "Invalid API key")

	_, err = NewSerpAPI("", nil)
	assert.Error(t, err)
}
