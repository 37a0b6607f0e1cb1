package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func robotsServer(t *testing.T, body string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCanFetch_DisallowedPath(t *testing.T) {
	server := robotsServer(t, "User-agent: *\nDisallow: /private\n", nil)
	checker := NewChecker(nil)

	assert.False(t, checker.CanFetch(context.Background(), "TestAgent", server.URL+"/private/page"))
	assert.True(t, checker.CanFetch(context.Background(), "TestAgent", server.URL+"/public/page"))
}

func TestCanFetch_DisallowAll(t *testing.T) {
	server := robotsServer(t, "User-agent: *\nDisallow: /\n", nil)
	checker := NewChecker(nil)

	assert.False(t, checker.CanFetch(context.Background(), "TestAgent", server.URL+"/page"))
}

func TestCanFetch_MostSpecificAgentWins(t *testing.T) {
	body := "User-agent: *\nDisallow: /\n\nUser-agent: TestAgent\nAllow: /\n"
	server := robotsServer(t, body, nil)
	checker := NewChecker(nil)

	assert.True(t, checker.CanFetch(context.Background(), "TestAgent", server.URL+"/page"))
	assert.False(t, checker.CanFetch(context.Background(), "OtherAgent", server.URL+"/page"))
}

func TestCanFetch_RulesetFetchedOncePerOrigin(t *testing.T) {
	var hits atomic.Int64
	server := robotsServer(t, "User-agent: *\nDisallow: /private\n", &hits)
	checker := NewChecker(nil)

	for i := 0; i < 5; i++ {
		checker.CanFetch(context.Background(), "TestAgent", server.URL+"/page")
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestCanFetch_FailOpenOnUnreachableOrigin(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from now on
	checker := NewChecker(nil)

	assert.True(t, checker.CanFetch(context.Background(), "TestAgent", server.URL+"/page"))
}

func TestCanFetch_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)
	checker := NewChecker(nil)

	assert.True(t, checker.CanFetch(context.Background(), "TestAgent", server.URL+"/anything"))
}

func TestCanFetch_UnparseableURLAllows(t *testing.T) {
	checker := NewChecker(nil)
	assert.True(t, checker.CanFetch(context.Background(), "TestAgent", "not-a-url"))
}
