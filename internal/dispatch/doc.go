// ABOUTME: Package documentation for dispatch.
// ABOUTME: Explains the authenticate → resolve → hand-off sequence.

// Package dispatch orchestrates per-request authentication and downstream
// token resolution.
//
// A Dispatcher wraps an authentication chain and an optional token resolver.
// Each inbound request is authenticated first; on rejection the caller sees
// only a generic failure, never which check failed. On success, if the route
// table maps the operation to a resource type, the dispatcher resolves a
// downstream token for the authenticated user. A missing downstream token is
// not a dispatch failure; handlers receive nil and decide for themselves.
//
// Three transport bindings share the same flow: Dispatch for programmatic
// use, Middleware for HTTP bearer requests, and the gRPC interceptors for
// metadata-carried tokens.
package dispatch
