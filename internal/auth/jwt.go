// ABOUTME: JWT provider verifying HS256/RS256 tokens against a configured key.
// ABOUTME: Enforces an algorithm allow-list plus issuer/audience/expiry claims.

package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// JWTConfig configures a JWTProvider. Exactly one of Secret (HMAC) or
// PublicKey (RSA) must be set for the algorithms in the allow-list to be
// usable; Algorithms defaults to HS256 only. The "none" algorithm is never
// accepted regardless of configuration.
type JWTConfig struct {
	Secret     []byte         // HMAC signing secret
	PublicKey  *rsa.PublicKey // RSA verification key
	Issuer     string         // exact-match "iss" claim, ignored if empty
	Audience   string         // exact-match "aud" claim, ignored if empty
	Algorithms []string       // allowed signing algorithms, default ["HS256"]
}

// JWTProvider verifies JWT bearer credentials.
type JWTProvider struct {
	cfg        JWTConfig
	parserOpts []jwt.ParserOption
}

// NewJWTProvider creates a JWT provider from the given config.
// Returns an error when no verification key is configured or when the
// algorithm allow-list names a scheme without a matching key.
func NewJWTProvider(cfg JWTConfig) (*JWTProvider, error) {
	if len(cfg.Secret) == 0 && cfg.PublicKey == nil {
		return nil, errors.New("jwt provider requires a secret or a public key")
	}
	if len(cfg.Algorithms) == 0 {
		cfg.Algorithms = []string{"HS256"}
	}
	for _, alg := range cfg.Algorithms {
		switch {
		case alg == "none":
			return nil, errors.New(`jwt provider: algorithm "none" is not allowed`)
		case alg == "HS256" || alg == "HS384" || alg == "HS512":
			if len(cfg.Secret) == 0 {
				return nil, fmt.Errorf("jwt provider: algorithm %s requires a secret", alg)
			}
		case alg == "RS256" || alg == "RS384" || alg == "RS512":
			if cfg.PublicKey == nil {
				return nil, fmt.Errorf("jwt provider: algorithm %s requires a public key", alg)
			}
		default:
			return nil, fmt.Errorf("jwt provider: unsupported algorithm %s", alg)
		}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.Algorithms),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTProvider{cfg: cfg, parserOpts: opts}, nil
}

// Method returns MethodJWT.
func (p *JWTProvider) Method() Method { return MethodJWT }

// Authenticate verifies the token and extracts the user ID from the "sub" claim.
func (p *JWTProvider) Authenticate(_ context.Context, credential string) Result {
	if credential == "" {
		return Rejected(ReasonMissingCredential)
	}

	userID, claims, err := p.verify(credential)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return Rejected(ReasonExpiredToken)
		}
		return Rejected(ReasonInvalidToken)
	}

	return Authenticated(Identity{
		UserID: userID,
		Method: MethodJWT,
		Claims: claims,
	})
}

// verify parses and validates the token, returning the subject and claims.
func (p *JWTProvider) verify(tokenString string) (string, map[string]any, error) {
	token, err := jwt.Parse(tokenString, p.keyFunc, p.parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", nil, ErrExpiredToken
		}
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, map[string]any(claims), nil
}

// keyFunc selects the verification key for the token's signing method. The
// allow-list has already been enforced by WithValidMethods at this point.
func (p *JWTProvider) keyFunc(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return p.cfg.Secret, nil
	case *jwt.SigningMethodRSA:
		return p.cfg.PublicKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}

// Generate creates a new HS256 token for the given user ID with expiration.
// Used by the CLI to mint operator tokens; requires an HMAC secret.
func (p *JWTProvider) Generate(userID string, expiresIn time.Duration) (string, error) {
	if len(p.cfg.Secret) == 0 {
		return "", errors.New("token generation requires an HMAC secret")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	if p.cfg.Issuer != "" {
		claims["iss"] = p.cfg.Issuer
	}
	if p.cfg.Audience != "" {
		claims["aud"] = p.cfg.Audience
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
