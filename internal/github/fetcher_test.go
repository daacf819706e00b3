package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, mux *http.ServeMux, source Source) *Fetcher {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient("")
	require.NoError(t, err)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	f, err := NewFetcher(client, source)
	require.NoError(t, err)
	return f
}

func TestFetcher_ListRecursesAndFilters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/docs/contents/guide", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "v1", r.URL.Query().Get("ref"))
		fmt.Fprint(w, `[
			{"type":"file","name":"intro.md","path":"guide/intro.md"},
			{"type":"file","name":"logo.png","path":"guide/logo.png"},
			{"type":"dir","name":"advanced","path":"guide/advanced"}
		]`)
	})
	mux.HandleFunc("/repos/acme/docs/contents/guide/advanced", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"type":"file","name":"tuning.MD","path":"guide/advanced/tuning.MD"}]`)
	})

	f := newTestFetcher(t, mux, Source{Owner: "acme", Repo: "docs", Path: "guide", Ref: "v1"})

	files, err := f.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"intro.md", "advanced/tuning.MD"}, files)
}

func TestFetcher_Fetch(t *testing.T) {
	body := "# Intro\n\nHello."
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/docs/contents/guide/intro.md", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"type":"file","name":"intro.md","path":"guide/intro.md","sha":"abc123",
			"encoding":"base64","content":%q,"html_url":"https://github.com/acme/docs/blob/main/guide/intro.md"}`,
			base64.StdEncoding.EncodeToString([]byte(body)))
	})

	f := newTestFetcher(t, mux, Source{Owner: "acme", Repo: "docs", Path: "guide"})

	file, err := f.Fetch(context.Background(), "intro.md")
	require.NoError(t, err)
	assert.Equal(t, "intro.md", file.Path)
	assert.Equal(t, body, file.Content)
	assert.Equal(t, "abc123", file.SHA)
	assert.Equal(t, "https://github.com/acme/docs/blob/main/guide/intro.md", file.URL)
}

func TestFetcher_LatestCommitSHA(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/docs/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "guide", r.URL.Query().Get("path"))
		fmt.Fprint(w, `[{"sha":"deadbeef"}]`)
	})

	f := newTestFetcher(t, mux, Source{Owner: "acme", Repo: "docs", Path: "guide"})

	sha, err := f.LatestCommitSHA(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", sha)
}

func TestNewFetcher_Validates(t *testing.T) {
	client, err := NewClient("")
	require.NoError(t, err)

	_, err = NewFetcher(client, Source{Repo: "docs"})
	assert.Error(t, err)

	f, err := NewFetcher(client, Source{Owner: "a", Repo: "b"})
	require.NoError(t, err)
	assert.Equal(t, DefaultExtensions, f.Source().Extensions)
}
