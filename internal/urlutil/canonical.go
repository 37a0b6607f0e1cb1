// Package urlutil provides URL canonicalization, origin extraction, and
// domain-blocklist filtering shared by the search pipeline components.
package urlutil

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Canonicalize normalizes a URL so that equivalent URLs compare equal:
// the scheme and host are lowercased, default ports are removed, the
// fragment is stripped, and query parameters are sorted by key.
// Canonicalization is idempotent.
func Canonicalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = normalizeHost(u.Scheme, u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		u.RawQuery = sortQuery(u.RawQuery)
	}

	return u.String(), nil
}

// Origin returns the scheme://host[:port] origin of a URL, with the host
// lowercased and default ports removed. Robots rules, connection pooling,
// and per-origin pacing are all keyed by this value.
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: not absolute", raw)
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme + "://" + normalizeHost(scheme, u.Host), nil
}

// normalizeHost lowercases the host and drops the port when it is the
// default for the scheme.
func normalizeHost(scheme, host string) string {
	host = strings.ToLower(host)
	switch scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}

// sortQuery re-encodes a query string with its keys in sorted order.
// Values for a repeated key keep their original relative order. A query
// that cannot be parsed is returned unchanged.
func sortQuery(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}
