// ABOUTME: Provider interface implemented by every authentication scheme.
// ABOUTME: Shared rejection reasons and credential helpers live here.

package auth

import (
	"context"
	"strings"
)

// Common rejection reasons. All failure paths converge to one of these so the
// dispatcher can respond generically without leaking which check failed.
const (
	ReasonMissingCredential = "missing credential"
	ReasonInvalidToken      = "invalid token"
	ReasonExpiredToken      = "token expired"
	ReasonInvalidAPIKey     = "invalid API key"
	ReasonAllFailed         = "all authentication methods failed"
)

// Provider validates a presented bearer credential and produces an identity
// or a rejection. Implementations must be safe for concurrent use and must
// never log the raw credential value.
type Provider interface {
	// Method returns the scheme tag this provider implements.
	Method() Method

	// Authenticate validates the credential. An empty credential is rejected
	// immediately without any cache lookup or network call.
	Authenticate(ctx context.Context, credential string) Result
}

// credentialPrefix returns a short, log-safe prefix of a credential for
// correlation in diagnostics. Never returns more than 8 characters.
func credentialPrefix(credential string) string {
	if len(credential) <= 8 {
		return credential[:len(credential)/2]
	}
	return credential[:8]
}

// looksLikeJWT reports whether a credential has the three-segment compact JWT
// shape. Used by dispatch-mode chains to route by format.
func looksLikeJWT(credential string) bool {
	return strings.Count(credential, ".") == 2
}
