// ABOUTME: Environment provider returning a fixed identity without verification.
// ABOUTME: Refuses to construct when a production indicator is set.

package auth

import (
	"context"
	"errors"
	"os"
)

// EnvProvider always succeeds with a fixed user ID. It exists for local
// development and test environments only; construction fails closed when the
// deployment looks like production, so a misconfigured chain cannot silently
// grant access to untrusted callers.
type EnvProvider struct {
	userID string
}

// NewEnvProvider creates an environment provider for the fixed user ID.
// The production argument comes from configuration; the AUTHGATE_ENV
// environment variable is consulted as well so a config that forgot the flag
// still fails closed in a production deployment.
func NewEnvProvider(userID string, production bool) (*EnvProvider, error) {
	if userID == "" {
		return nil, errors.New("env provider requires a user id")
	}
	if production || ProductionIndicated() {
		return nil, errors.New("env provider must not be enabled in production")
	}
	return &EnvProvider{userID: userID}, nil
}

// Method returns MethodEnv.
func (p *EnvProvider) Method() Method { return MethodEnv }

// Authenticate returns the fixed identity regardless of the credential.
func (p *EnvProvider) Authenticate(_ context.Context, _ string) Result {
	return Authenticated(Identity{
		UserID: p.userID,
		Method: MethodEnv,
		Claims: map[string]any{"sub": p.userID},
	})
}

// ProductionIndicated reports whether the process environment declares a
// production deployment.
func ProductionIndicated() bool {
	switch os.Getenv("AUTHGATE_ENV") {
	case "production", "prod":
		return true
	}
	return false
}
