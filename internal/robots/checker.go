// Package robots fetches, parses, and caches robots.txt rules per origin.
// Decisions fail open: when robots.txt cannot be retrieved or parsed, the
// URL is allowed and that outcome is cached for the process lifetime.
package robots

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/websearch-agent/internal/urlutil"
)

// fetchTimeout bounds the robots.txt request itself.
const fetchTimeout = 10 * time.Second

// maxRobotsBytes caps how much of a robots.txt response is read.
const maxRobotsBytes = 512 * 1024

// Checker answers "may this user-agent fetch URL U?". The ruleset for an
// origin is fetched once, then every later query is a map lookup. The
// cache lives for the process, not per run.
type Checker struct {
	client *http.Client
	cache  *gocache.Cache // origin → *robotstxt.RobotsData (nil = allow all)
	group  singleflight.Group
	logger *zap.Logger
}

// NewChecker builds a Checker with its own short-timeout HTTP client.
func NewChecker(logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		client: &http.Client{Timeout: fetchTimeout},
		cache:  gocache.New(gocache.NoExpiration, 0),
		logger: logger.Named("robots"),
	}
}

// CanFetch reports whether userAgent may fetch rawURL under the origin's
// robots.txt. The first query for an origin fetches and parses the file;
// concurrent first queries for the same origin share one fetch.
func (c *Checker) CanFetch(ctx context.Context, userAgent, rawURL string) bool {
	origin, err := urlutil.Origin(rawURL)
	if err != nil {
		// An unparseable URL never reaches the network anyway.
		return true
	}

	data := c.rules(ctx, origin)
	if data == nil {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return data.FindGroup(userAgent).Test(path)
}

// rules returns the cached ruleset for origin, populating it on first
// use. A nil ruleset means "allow everything".
func (c *Checker) rules(ctx context.Context, origin string) *robotstxt.RobotsData {
	if v, ok := c.cache.Get(origin); ok {
		data, _ := v.(*robotstxt.RobotsData)
		return data
	}

	v, _, _ := c.group.Do(origin, func() (any, error) {
		data := c.fetch(ctx, origin)
		c.cache.Set(origin, data, gocache.NoExpiration)
		return data, nil
	})

	data, _ := v.(*robotstxt.RobotsData)
	return data
}

// fetch retrieves and parses origin/robots.txt. Any transport or parse
// failure yields nil, the fail-open ruleset.
func (c *Checker) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		c.logger.Debug("robots request build failed", zap.String("origin", origin), zap.Error(err))
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("robots fetch failed, allowing", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		c.logger.Debug("robots read failed, allowing", zap.String("origin", origin), zap.Error(err))
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		c.logger.Debug("robots parse failed, allowing", zap.String("origin", origin), zap.Error(err))
		return nil
	}

	c.logger.Debug("robots rules cached", zap.String("origin", origin), zap.Int("status", resp.StatusCode))
	return data
}
