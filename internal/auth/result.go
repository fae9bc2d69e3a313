// ABOUTME: Authentication result types shared by all providers.
// ABOUTME: Defines Identity, the Result outcome, and the provider method tags.

package auth

// Method identifies which authentication scheme produced an identity.
type Method string

const (
	MethodJWT    Method = "jwt"
	MethodOAuth  Method = "oauth"
	MethodAPIKey Method = "apikey"
	MethodEnv    Method = "env"
)

// Identity is the verified principal produced by a successful authentication.
// It is never mutated after creation; Claims holds issuer-specific metadata.
type Identity struct {
	UserID string
	Method Method
	Claims map[string]any
}

// Result is the outcome of an authentication attempt. Exactly one of the two
// variants is active: Identity is non-nil on success, Reason is non-empty on
// rejection. Reason is safe to log (no secret material, at most a short
// credential prefix for correlation) but must never be surfaced to callers
// verbatim; they get a generic failure instead.
type Result struct {
	Identity *Identity
	Reason   string
}

// Authenticated builds a successful result for the given identity.
func Authenticated(id Identity) Result {
	return Result{Identity: &id}
}

// Rejected builds a failed result with a log-safe reason.
func Rejected(reason string) Result {
	return Result{Reason: reason}
}

// OK reports whether authentication succeeded.
func (r Result) OK() bool {
	return r.Identity != nil
}
