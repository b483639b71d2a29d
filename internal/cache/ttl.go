// TTL management strategies
//
// Helpers for picking a cache TTL for resolved interstitial asset-list
// sessions: a base TTL with jitter, so that many sessions created around
// the same ad break don't all expire (and get re-resolved) in the same
// instant.
package cache

import (
	"math/rand"
	"time"
)

// JitteredTTL returns base plus up to +/-spread*base of random jitter.
// A spread of 0.1 means +/-10%.
func JitteredTTL(base time.Duration, spread float64) time.Duration {
	if base <= 0 {
		return 0
	}
	if spread <= 0 {
		return base
	}
	delta := float64(base) * spread
	offset := (rand.Float64()*2 - 1) * delta
	return base + time.Duration(offset)
}
