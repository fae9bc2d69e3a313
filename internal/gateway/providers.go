// ABOUTME: Builds the provider chain and audit sink from configuration
// ABOUTME: Maps auth.order entries onto constructed providers

package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/authgate/internal/auth"
	"github.com/2389/authgate/internal/config"
	"github.com/2389/authgate/internal/store"
)

// buildChain constructs the provider chain named by auth.order.
func buildChain(cfg *config.Config, s store.Store, logger *slog.Logger) (*auth.Chain, error) {
	providers := make([]auth.Provider, 0, len(cfg.Auth.Order))
	for _, name := range cfg.Auth.Order {
		p, err := buildProvider(cfg, name, s, logger)
		if err != nil {
			return nil, fmt.Errorf("building %s provider: %w", name, err)
		}
		if cfg.Auth.Cache.On() {
			p = auth.WithCache(p, cfg.Auth.Cache.TTL)
		}
		providers = append(providers, p)
	}

	mode := auth.ModeChain
	if cfg.Auth.Mode == config.ModeDispatch {
		mode = auth.ModeDispatch
	}

	opts := []auth.ChainOption{auth.WithChainLogger(logger)}
	if cfg.Auth.APIKey.Prefix != "" {
		opts = append(opts, auth.WithAPIKeyPrefix(cfg.Auth.APIKey.Prefix))
	}

	return auth.NewChain(mode, providers, opts...)
}

func buildProvider(cfg *config.Config, name string, s store.Store, logger *slog.Logger) (auth.Provider, error) {
	switch name {
	case config.ProviderJWT:
		return auth.NewJWTProvider(auth.JWTConfig{
			Secret:     []byte(cfg.Auth.JWT.Secret),
			Issuer:     cfg.Auth.JWT.Issuer,
			Audience:   cfg.Auth.JWT.Audience,
			Algorithms: cfg.Auth.JWT.Algorithms,
		})
	case config.ProviderOAuth:
		return auth.NewOAuthProvider(auth.OAuthConfig{
			UserinfoEndpoint: cfg.Auth.OAuth.UserinfoEndpoint,
			Timeout:          cfg.Auth.OAuth.Timeout,
			Logger:           logger,
		})
	case config.ProviderAPIKey:
		if s == nil {
			return nil, fmt.Errorf("the apikey provider requires a database")
		}
		return auth.NewAPIKeyProvider(s)
	case config.ProviderEnv:
		return auth.NewEnvProvider(cfg.Auth.Env.UserID, cfg.Production())
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// storeAuditSink records authentication outcomes to the audit store.
// Write failures are logged, never surfaced to the request path.
type storeAuditSink struct {
	store  store.AuditStore
	logger *slog.Logger
}

func newStoreAuditSink(s store.AuditStore, logger *slog.Logger) *storeAuditSink {
	return &storeAuditSink{store: s, logger: logger.With("component", "audit")}
}

func (a *storeAuditSink) RecordAuth(ctx context.Context, principalID string, method auth.Method, allowed bool, detail string) {
	outcome := store.AuthAllowed
	if !allowed {
		outcome = store.AuthRejected
	}
	event := store.AuthEvent{
		Method:  string(method),
		Outcome: outcome,
		Detail:  detail,
	}
	if principalID != "" {
		event.PrincipalID = &principalID
	}
	if err := a.store.RecordAuthEvent(ctx, &event); err != nil {
		a.logger.Warn("failed to record auth event", "error", err)
	}
}
