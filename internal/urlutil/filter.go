package urlutil

import (
	"net/url"
	"strings"
)

// Filter rejects URLs whose host matches a configured domain blocklist.
// A blocked entry matches the host itself and any subdomain of it
// (strict dot-boundary suffix), so "youtube.com" blocks
// "m.youtube.com" but not "notyoutube.com".
type Filter struct {
	blocked []string
}

// NewFilter builds a Filter from a list of blocked domains. Entries are
// lowercased and leading dots are stripped.
func NewFilter(domains []string) *Filter {
	blocked := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, ".")
		if d != "" {
			blocked = append(blocked, d)
		}
	}
	return &Filter{blocked: blocked}
}

// Allowed reports whether the URL may be fetched. It returns false for
// URLs that do not parse, for non-HTTP(S) schemes, and for hosts on the
// blocklist.
func (f *Filter) Allowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	for _, d := range f.blocked {
		if host == d || strings.HasSuffix(host, "."+d) {
			return false
		}
	}
	return true
}
