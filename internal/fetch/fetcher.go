// Package fetch provides a concurrency-bounded, per-origin-paced HTTP
// fetcher with robots gating, content caching, and HTML-to-text
// extraction.
package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/websearch-agent/internal/cache"
	"github.com/jonathan/websearch-agent/internal/config"
	"github.com/jonathan/websearch-agent/internal/robots"
	"github.com/jonathan/websearch-agent/internal/urlutil"
)

// maxRedirects bounds the redirect chain followed per fetch.
const maxRedirects = 5

// Source records where a document's text came from.
type Source string

// Document text provenance.
const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
)

// Doc is the outcome of a successful fetch: extracted main text keyed by
// canonical URL.
type Doc struct {
	URL        string
	Status     int
	Text       string
	ByteLength int
	Source     Source
}

// Fetcher coordinates all outbound page fetches for the process. It owns
// the global concurrency semaphore, the per-origin pacing clocks, and the
// in-flight request registry; robots rules and the content cache are
// owned by their packages and consulted here.
type Fetcher struct {
	cfg    config.Fetching
	filter *urlutil.Filter
	robots *robots.Checker
	store  *cache.Store
	client *http.Client
	sem    *semaphore.Weighted
	flight singleflight.Group
	logger *zap.Logger

	mu      sync.Mutex
	origins map[string]*originGate
}

// originGate serializes same-origin fetches and tracks the last fetch
// time. The token channel doubles as a lock whose acquisition can be
// abandoned on context cancellation.
type originGate struct {
	token chan struct{}
	last  time.Time // guarded by holding the token
}

// NewFetcher wires a Fetcher from configuration and its collaborators.
func NewFetcher(cfg config.Fetching, filter *urlutil.Filter, checker *robots.Checker, store *cache.Store, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		filter: filter,
		robots: checker,
		store:  store,
		client: &http.Client{
			Timeout: cfg.FetchTimeoutDuration(),
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrentFetches)),
		logger:  logger.Named("fetch"),
		origins: make(map[string]*originGate),
	}
}

// Fetch retrieves the extracted main text for a URL. Concurrent calls
// for the same canonical URL share a single in-flight fetch. The
// returned error is a *Error for policy and transport failures, or the
// context's error when cancelled.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Doc, error) {
	canonical, err := urlutil.Canonicalize(rawURL)
	if err != nil || !f.filter.Allowed(canonical) {
		return nil, &Error{URL: rawURL, Kind: KindFiltered, Cause: err}
	}

	v, err, _ := f.flight.Do(canonical, func() (any, error) {
		return f.fetchCanonical(ctx, canonical)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Doc), nil
}

func (f *Fetcher) fetchCanonical(ctx context.Context, canonical string) (*Doc, error) {
	// Cache hits skip robots and the network entirely.
	if data, ok := f.store.Get(canonical); ok {
		return &Doc{
			URL:        canonical,
			Status:     http.StatusOK,
			Text:       string(data),
			ByteLength: len(data),
			Source:     SourceCache,
		}, nil
	}

	if !f.robots.CanFetch(ctx, f.cfg.UserAgent, canonical) {
		return nil, &Error{URL: canonical, Kind: KindRobotsDenied}
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.sem.Release(1)

	origin, err := urlutil.Origin(canonical)
	if err != nil {
		return nil, &Error{URL: canonical, Kind: KindFiltered, Cause: err}
	}

	gate := f.gate(origin)
	if err := f.acquireOrigin(ctx, gate); err != nil {
		return nil, err
	}
	defer func() { <-gate.token }()

	text, status, err := f.download(ctx, canonical)
	gate.last = time.Now()
	if err != nil {
		return nil, err
	}

	f.store.Put(canonical, []byte(text))

	f.logger.Debug("fetched", zap.String("url", canonical), zap.Int("chars", len(text)))
	return &Doc{
		URL:        canonical,
		Status:     status,
		Text:       text,
		ByteLength: len(text),
		Source:     SourceNetwork,
	}, nil
}

// gate returns the pacing gate for an origin, creating it on first use.
func (f *Fetcher) gate(origin string) *originGate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.origins[origin]
	if !ok {
		g = &originGate{token: make(chan struct{}, 1)}
		f.origins[origin] = g
	}
	return g
}

// acquireOrigin takes the origin token and then waits out the remainder
// of the per-origin delay. Both waits abort on context cancellation; on
// abort the token is returned.
func (f *Fetcher) acquireOrigin(ctx context.Context, gate *originGate) error {
	select {
	case gate.token <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	wait := f.cfg.PerDomainDelayDuration() - time.Since(gate.last)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		<-gate.token
		return ctx.Err()
	}
}

// download performs the GET and turns the response into extracted,
// truncated text.
func (f *Fetcher) download(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, &Error{URL: url, Kind: KindTransport, Cause: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if f.cfg.AcceptEncoding != "" {
		req.Header.Set("Accept-Encoding", f.cfg.AcceptEncoding)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		kind := KindTransport
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			kind = KindTimeout
		}
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		return "", 0, &Error{URL: url, Kind: kind, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, &Error{URL: url, Kind: KindHTTPStatus, Status: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "application/pdf") || strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return "", resp.StatusCode, &Error{URL: url, Kind: KindEmptyContent, Cause: errors.New("pdf content")}
	}

	body, err := decodeBody(resp, contentType)
	if err != nil {
		return "", resp.StatusCode, &Error{URL: url, Kind: KindTransport, Cause: err}
	}

	text, err := ExtractMainText(body)
	if err != nil {
		return "", resp.StatusCode, &Error{URL: url, Kind: KindEmptyContent, Cause: err}
	}
	text = TruncateText(text, f.cfg.MaxContentChars)
	if text == "" {
		return "", resp.StatusCode, &Error{URL: url, Kind: KindEmptyContent}
	}

	return text, resp.StatusCode, nil
}

// decodeBody decompresses per Content-Encoding and decodes to UTF-8 per
// the charset header, falling back to UTF-8.
func decodeBody(resp *http.Response, contentType string) (string, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return "", fmt.Errorf("gzip decode: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	case "deflate":
		fl := flate.NewReader(reader)
		defer func() { _ = fl.Close() }()
		reader = fl
	case "br":
		reader = brotli.NewReader(reader)
	}

	decoded, err := charset.NewReader(reader, contentType)
	if err != nil {
		return "", fmt.Errorf("charset decode: %w", err)
	}

	body, err := io.ReadAll(decoded)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}
