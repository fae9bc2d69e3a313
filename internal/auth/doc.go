// Package auth provides bearer-credential authentication for authgate.
//
// # Providers
//
// Each authentication scheme is a Provider that maps a presented credential
// to an Identity or a rejection:
//
//   - JWT: Tokens verified against a configured HMAC secret or RSA public key,
//     with an explicit algorithm allow-list and issuer/audience matching.
//
//   - OAuth: The credential is treated as an access token and checked against
//     the issuer's userinfo endpoint with a short timeout.
//
//   - API key: Opaque keys compared by SHA-256 digest against provisioned
//     digests (from configuration or the sqlite store). Raw keys are never
//     stored or compared.
//
//   - Env: A fixed identity with no verification, for development only.
//     Construction fails closed when a production indicator is set.
//
// # Chains
//
// A Chain composes providers behind one Authenticate call. In chain mode the
// providers are tried in order and the first success wins; in dispatch mode
// the credential's format selects exactly one provider. An env provider is
// only permitted in the last position of a chain.
//
// # Caching
//
// WithCache wraps any provider with a TTL cache of successful results keyed
// by the raw credential. Rejections are never cached, so a fixed upstream or
// rotated key takes effect on the next attempt.
//
// # Identity Propagation
//
// WithIdentity/FromContext carry the authenticated Identity through request
// contexts for handlers mounted behind the dispatcher.
package auth
