package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{"data": [
	{"title": "First", "url": "https://a.test/1", "description": "first snippet"},
	{"title": "Second", "url": "https://b.test/2", "description": "second snippet"},
	{"title": "NoURL", "url": "", "description": "dropped"},
	{"title": "Third", "url": "https://c.test/3", "description": "third snippet"}
]}`

func TestSearch_ParsesHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test query", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	t.Cleanup(server.Close)

	c := NewHTTPClient(server.URL, "secret", nil)
	hits, err := c.Search(context.Background(), "test query", 10)
	require.NoError(t, err)

	require.Len(t, hits, 3)
	assert.Equal(t, Hit{Title: "First", URL: "https://a.test/1", Snippet: "first snippet"}, hits[0])
	assert.Equal(t, "https://c.test/3", hits[2].URL)
}

func TestSearch_RespectsMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	t.Cleanup(server.Close)

	c := NewHTTPClient(server.URL, "", nil)
	hits, err := c.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearch_NoAuthHeaderWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	t.Cleanup(server.Close)

	c := NewHTTPClient(server.URL, "", nil)
	hits, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	c := NewHTTPClient(server.URL, "", nil)
	_, err := c.Search(context.Background(), "q", 5)
	assert.Error(t, err)
}

func TestSearch_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(server.Close)

	c := NewHTTPClient(server.URL, "", nil)
	_, err := c.Search(context.Background(), "q", 5)
	assert.Error(t, err)
}

func TestSearch_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	c := NewHTTPClient(server.URL, "", nil)
	_, err := c.Search(context.Background(), "q", 5)
	assert.Error(t, err)
}
