// ABOUTME: Provider chain trying authentication schemes in order or by format dispatch.
// ABOUTME: Enforces that an always-succeeding provider can only sit last in a chain.

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Mode selects how a Chain consults its providers.
type Mode string

const (
	// ModeChain tries providers in order; the first success wins.
	ModeChain Mode = "chain"

	// ModeDispatch inspects the credential's format and routes to exactly one
	// provider: compact-JWT shape to the jwt provider, a configured key prefix
	// to the apikey provider, anything else to the oauth provider.
	ModeDispatch Mode = "dispatch"
)

// ChainOption configures optional chain behavior.
type ChainOption func(*Chain)

// WithAPIKeyPrefix sets the credential prefix that dispatch mode routes to
// the API key provider (e.g. "ak_").
func WithAPIKeyPrefix(prefix string) ChainOption {
	return func(c *Chain) { c.apikeyPrefix = prefix }
}

// WithChainLogger sets the logger used for per-provider rejection diagnostics.
func WithChainLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = logger }
}

// Chain composes an ordered list of providers behind a single Authenticate.
// Ordering is security-relevant: construction fails if an env provider, which
// accepts anything, precedes another provider in chain mode.
type Chain struct {
	mode         Mode
	providers    []Provider
	apikeyPrefix string
	logger       *slog.Logger
}

// NewChain creates a provider chain in the given mode.
func NewChain(mode Mode, providers []Provider, opts ...ChainOption) (*Chain, error) {
	if len(providers) == 0 {
		return nil, errors.New("chain requires at least one provider")
	}
	if mode != ModeChain && mode != ModeDispatch {
		return nil, errors.New("chain mode must be chain or dispatch")
	}
	if mode == ModeChain {
		for i, p := range providers[:len(providers)-1] {
			if p.Method() == MethodEnv {
				return nil, fmt.Errorf("env provider at position %d must be last in the chain: it accepts any credential and would mask the providers after it", i)
			}
		}
	}

	c := &Chain{
		mode:      mode,
		providers: providers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "auth-chain")
	return c, nil
}

// Authenticate runs the chain against one credential. Per-provider rejection
// reasons are logged for diagnostics but never propagated: all-fail collapses
// to a single generic rejection.
func (c *Chain) Authenticate(ctx context.Context, credential string) Result {
	if credential == "" {
		return Rejected(ReasonMissingCredential)
	}

	if c.mode == ModeDispatch {
		return c.dispatch(ctx, credential)
	}

	for _, p := range c.providers {
		res := p.Authenticate(ctx, credential)
		if res.OK() {
			return res
		}
		c.logger.Debug("provider rejected credential",
			"method", p.Method(),
			"reason", res.Reason,
			"token_prefix", credentialPrefix(credential),
		)
	}
	return Rejected(ReasonAllFailed)
}

// dispatch routes the credential to the single provider matching its format.
func (c *Chain) dispatch(ctx context.Context, credential string) Result {
	var want Method
	switch {
	case looksLikeJWT(credential):
		want = MethodJWT
	case c.apikeyPrefix != "" && strings.HasPrefix(credential, c.apikeyPrefix):
		want = MethodAPIKey
	default:
		want = MethodOAuth
	}

	for _, p := range c.providers {
		if p.Method() == want {
			res := p.Authenticate(ctx, credential)
			if !res.OK() {
				c.logger.Debug("dispatched provider rejected credential",
					"method", want,
					"reason", res.Reason,
					"token_prefix", credentialPrefix(credential),
				)
				return Rejected(ReasonAllFailed)
			}
			return res
		}
	}

	c.logger.Debug("no provider for credential format", "method", want)
	return Rejected(ReasonAllFailed)
}

// Close releases any closable providers (result caches).
func (c *Chain) Close() {
	for _, p := range c.providers {
		if closer, ok := p.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}
