// ABOUTME: Request dispatcher orchestrating authentication and token resolution.
// ABOUTME: Boundary between transport extraction and caller-supplied handlers.

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/2389/authgate/internal/auth"
)

// ErrAuthenticationFailed is returned by Dispatch when the credential is
// rejected. The message is deliberately generic; per-check detail stays in
// logs and the audit trail.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Authenticator is the chain surface the dispatcher consumes.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) auth.Result
}

// TokenResolver obtains a downstream token for an authenticated user.
// Implemented by resolver.Resolver.
type TokenResolver interface {
	Resolve(ctx context.Context, userID, resourceType, credential string) (string, bool)
}

// AuditSink records authentication outcomes. Implemented by an adapter over
// the store; a nil sink disables auditing.
type AuditSink interface {
	RecordAuth(ctx context.Context, principalID string, method auth.Method, allowed bool, detail string)
}

// HandlerFunc is caller-supplied business logic invoked after a successful
// dispatch. downstreamToken is nil when the target operation needs no
// downstream credential or none is available; the handler decides whether it
// can proceed without one.
type HandlerFunc func(ctx context.Context, identity *auth.Identity, downstreamToken *string) error

// Config configures a Dispatcher.
type Config struct {
	Auth     Authenticator     // required
	Resolver TokenResolver     // optional; operations with resource types fail soft without it
	Routes   map[string]string // operation or path → required resource type
	Audit    AuditSink         // optional
	Logger   *slog.Logger
}

// Dispatcher establishes identity for inbound requests and hands off to
// business logic. Per request it authenticates via the configured chain,
// resolves a downstream token when the target operation declares a resource
// type, and invokes the handler with (identity, token-or-nil). Absence of a
// downstream token is never itself a dispatch failure.
type Dispatcher struct {
	auth     Authenticator
	resolver TokenResolver
	routes   map[string]string
	audit    AuditSink
	logger   *slog.Logger
}

// New creates a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Auth == nil {
		return nil, errors.New("dispatcher requires an authenticator")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		auth:     cfg.Auth,
		resolver: cfg.Resolver,
		routes:   cfg.Routes,
		audit:    cfg.Audit,
		logger:   logger.With("component", "dispatch"),
	}, nil
}

// Dispatch authenticates the credential and invokes the handler. The
// operation name selects the resource-type requirement from the route table.
// Returns ErrAuthenticationFailed (never the underlying reason) on rejection;
// handler errors propagate unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, credential, operation string, h HandlerFunc) error {
	identity, downstream, ok := d.establish(ctx, credential, operation)
	if !ok {
		return ErrAuthenticationFailed
	}
	return h(auth.WithIdentity(ctx, identity), identity, downstream)
}

// establish runs the authenticate → resolve sequence shared by Dispatch, the
// HTTP middleware, and the gRPC interceptors.
func (d *Dispatcher) establish(ctx context.Context, credential, operation string) (*auth.Identity, *string, bool) {
	res := d.auth.Authenticate(ctx, credential)
	if !res.OK() {
		d.logger.Warn("authentication failed", "operation", operation, "reason", res.Reason)
		d.recordAuth(ctx, "", "", false, res.Reason)
		return nil, nil, false
	}
	identity := res.Identity
	d.recordAuth(ctx, identity.UserID, identity.Method, true, "")

	resourceType := d.resourceTypeFor(operation)
	if resourceType == "" {
		return identity, nil, true
	}

	if d.resolver == nil {
		d.logger.Warn("operation requires a resource type but no resolver is configured",
			"operation", operation, "resource_type", resourceType)
		return identity, nil, true
	}

	// The user's own verified credential is forwarded so the platform can
	// check who is asking.
	token, ok := d.resolver.Resolve(ctx, identity.UserID, resourceType, credential)
	if !ok {
		return identity, nil, true
	}
	return identity, &token, true
}

// resourceTypeFor looks up the operation's resource-type requirement.
// Route entries ending in "/" match as prefixes; when several prefixes
// match, the longest one wins.
func (d *Dispatcher) resourceTypeFor(operation string) string {
	if rt, ok := d.routes[operation]; ok {
		return rt
	}
	var best string
	var bestLen int
	for pattern, rt := range d.routes {
		if !strings.HasSuffix(pattern, "/") || !strings.HasPrefix(operation, pattern) {
			continue
		}
		if len(pattern) > bestLen {
			best = rt
			bestLen = len(pattern)
		}
	}
	return best
}

// recordAuth writes to the audit sink when one is configured.
func (d *Dispatcher) recordAuth(ctx context.Context, principalID string, method auth.Method, allowed bool, detail string) {
	if d.audit == nil {
		return
	}
	d.audit.RecordAuth(ctx, principalID, method, allowed, detail)
}

// WithIdentityAndToken attaches both the verified identity and the resolved
// downstream token (possibly nil) to the context.
func WithIdentityAndToken(ctx context.Context, identity *auth.Identity, token *string) context.Context {
	return withDownstreamToken(auth.WithIdentity(ctx, identity), token)
}

// downstreamTokenKey is the context key for the resolved downstream token.
type downstreamTokenKey struct{}

// withDownstreamToken attaches a resolved token to the context.
func withDownstreamToken(ctx context.Context, token *string) context.Context {
	return context.WithValue(ctx, downstreamTokenKey{}, token)
}

// DownstreamTokenFromContext returns the downstream token resolved for this
// request, if any.
func DownstreamTokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(downstreamTokenKey{}).(*string)
	if !ok || tok == nil {
		return "", false
	}
	return *tok, true
}
