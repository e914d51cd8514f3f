package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchNotConfigured(t *testing.T) {
	c := NewClient("")
	_, _, err := c.Search(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSearchMapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tvly-test", req["api_key"])
		assert.Equal(t, "novedades de Go", req["query"])
		assert.Equal(t, true, req["include_answer"])
		assert.Equal(t, "basic", req["search_depth"])

		json.NewEncoder(w).Encode(map[string]any{
			"answer": "Go 1.24 salió en febrero.",
			"results": []map[string]any{
				{"title": "Go Blog", "url": "https://go.dev/blog", "content": strings.Repeat("x", 300)},
				{"title": "Release Notes", "url": "https://go.dev/doc", "source": "docs", "content": "short"},
				{"title": "Extra", "url": "https://example.com"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("tvly-test")
	c.BaseURL = srv.URL

	answer, citations, err := c.Search(context.Background(), "novedades de Go", 2)
	require.NoError(t, err)
	assert.Equal(t, "Go 1.24 salió en febrero.", answer)
	require.Len(t, citations, 2)
	assert.Equal(t, "web", citations[0].Source)
	assert.Len(t, citations[0].Snippet, 240)
	assert.Equal(t, "docs", citations[1].Source)
}

func TestSearchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("tvly-test")
	c.BaseURL = srv.URL

	_, _, err := c.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
