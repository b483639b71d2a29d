// Package apierr defines the proxy's error-kind taxonomy and its mapping
// onto HTTP status codes. Every component that can fail classifies the
// failure into one of these kinds rather than returning a bare error, so
// the HTTP surface can respond consistently regardless of which layer
// produced the error.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for the purpose of HTTP status mapping and
// logging.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindMalformedPlaylist
	KindOriginClientError
	KindUpstreamAdError
	KindStale
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindMalformedPlaylist:
		return "malformed_playlist"
	case KindOriginClientError:
		return "origin_client_error"
	case KindUpstreamAdError:
		return "upstream_ad_error"
	case KindStale:
		return "stale"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code associated with the error kind.
// Timeout takes on the status of whichever upstream kind it wraps; callers
// that know the more specific kind should set it explicitly instead of
// relying on this default.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindMalformedPlaylist, KindOriginClientError, KindUpstreamAdError, KindTimeout:
		return http.StatusBadGateway
	case KindStale:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// Error wraps an underlying error with a Kind classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies err as the given Kind. Wrap(kind, nil) returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// As extracts the Kind of err, defaulting to KindInternal for errors that
// were never classified.
func As(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err was classified with the given kind.
func Is(err error, kind Kind) bool {
	return As(err) == kind
}
