// Session key derivation
//
// Adapted from the proxy's former JWT-extraction precedence (try the
// client-asserted identity first, fall back in order, fabricate last):
// the _HLS_primary_id query parameter an HLS client attaches to asset-list
// requests takes priority, then the X-Playback-Session-Id header some
// players send instead, and a random id is fabricated when neither is
// present so every anonymous request still gets its own session rather
// than colliding on an empty key.
package session

import (
	"net/http"

	"github.com/google/uuid"
)

const (
	primaryIDParam    = "_HLS_primary_id"
	sessionIDHeader   = "X-Playback-Session-Id"
)

// DeriveKey returns the session identity for r.
func DeriveKey(r *http.Request) string {
	if id := r.URL.Query().Get(primaryIDParam); id != "" {
		return id
	}
	if id := r.Header.Get(sessionIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}
