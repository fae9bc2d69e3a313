// Package gateway wires configuration into a running authgate server.
//
// # Overview
//
// A Gateway fronts an upstream MCP server. Inbound HTTP requests pass
// through the dispatch middleware, which authenticates them against the
// configured provider chain and optionally resolves a downstream token.
// Authenticated requests are reverse-proxied upstream with identity headers
// attached:
//
//	X-User-ID           verified principal
//	X-Auth-Method       provider that verified the credential
//	X-Downstream-Token  resolved third-party token, when the route needs one
//
// Inbound copies of those headers are stripped, so clients cannot spoof an
// identity, and the gateway credential itself never crosses the proxy.
//
// # Listeners
//
// The HTTP listener is always started. A gRPC listener (health service plus
// the dispatch interceptors) is started when server.grpc_addr is set. With
// tailscale.enabled the gateway joins a tailnet via tsnet instead of binding
// local TCP addresses.
//
// # Lifecycle
//
// Run blocks until the context is canceled or a server fails, then shuts
// everything down gracefully: HTTP drain, gRPC graceful stop, provider chain
// and resolver caches, and the store.
package gateway
