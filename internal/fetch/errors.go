package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies why a fetch produced no document.
type Kind string

// Fetch failure classes. Each dropped URL is logged with one of these.
const (
	KindFiltered     Kind = "filtered"
	KindRobotsDenied Kind = "robots_denied"
	KindHTTPStatus   Kind = "http_status"
	KindTimeout      Kind = "timeout"
	KindTransport    Kind = "transport"
	KindEmptyContent Kind = "empty_content"
)

// Error is a per-URL fetch failure.
type Error struct {
	URL    string
	Kind   Kind
	Status int // set for KindHTTPStatus
	Cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("fetch error for %s: HTTP status %d", e.URL, e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Kind, e.Cause)
	default:
		return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a fetch *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
