// ABOUTME: Package documentation for the TTL cache.
// ABOUTME: Explains ownership rules for cache instances.

// Package cache provides a generic, thread-safe TTL cache.
//
// Each cache instance is owned by exactly one component (an auth provider's
// result cache, a resolver's token cache) and is never shared across
// components. Entries expire after their TTL and are evicted lazily on the
// next lookup; a background sweeper additionally reclaims idle entries.
// Callers must Close a cache to stop its sweeper.
package cache
