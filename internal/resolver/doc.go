// ABOUTME: Package documentation for the downstream token resolver.
// ABOUTME: Describes caching semantics and graceful degradation.

// Package resolver fetches downstream access tokens (GitHub, Firebase, ...)
// for authenticated users from the platform's credential service.
//
// The resolver forwards the user's own verified credential to the platform
// rather than a service-wide secret, so the platform can independently verify
// which user is asking. Results are cached per (user, resource type) with a
// TTL; a 404 is cached as a confirmed "not configured", while transient
// failures are returned as an absent token and retried on the next call. A
// credential-provider outage therefore degrades functionality for affected
// users instead of failing their requests outright.
package resolver
