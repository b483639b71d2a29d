// Cache key generation
//
// Key is the string type every Cache implementation is keyed by. The
// proxy derives its own keys directly (session.cacheKey), so this package
// only needs to carry the type.

package cache

// Key represents a cache key
type Key string
