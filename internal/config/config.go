// ABOUTME: Configuration loading and parsing for authgate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in auth.order.
const (
	ProviderJWT    = "jwt"
	ProviderOAuth  = "oauth"
	ProviderAPIKey = "apikey"
	ProviderEnv    = "env"
)

// Chain modes accepted in auth.mode.
const (
	ModeChain    = "chain"
	ModeDispatch = "dispatch"
)

// minJWTSecretBytes is the smallest acceptable HS256 secret.
const minJWTSecretBytes = 32

// Config represents the complete authgate configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Tailscale   TailscaleConfig   `yaml:"tailscale"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Auth        AuthConfig        `yaml:"auth"`
	Resolver    ResolverConfig    `yaml:"resolver"`
	Routes      map[string]string `yaml:"routes"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Environment string            `yaml:"environment"`
}

// ServerConfig holds listener address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
}

// UpstreamConfig holds the protected MCP server address
type UpstreamConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds the provider chain configuration
type AuthConfig struct {
	Mode  string   `yaml:"mode"`  // "chain" or "dispatch"; defaults to "chain"
	Order []string `yaml:"order"` // provider names in evaluation order

	JWT    JWTConfig    `yaml:"jwt"`
	OAuth  OAuthConfig  `yaml:"oauth"`
	APIKey APIKeyConfig `yaml:"apikey"`
	Env    EnvConfig    `yaml:"env"`
	Cache  CacheConfig  `yaml:"cache"`
}

// JWTConfig holds JWT verification configuration
type JWTConfig struct {
	Secret     string   `yaml:"secret"`
	Issuer     string   `yaml:"issuer"`
	Audience   string   `yaml:"audience"`
	Algorithms []string `yaml:"algorithms"`
}

// OAuthConfig holds OAuth userinfo validation configuration
type OAuthConfig struct {
	UserinfoEndpoint string `yaml:"userinfo_endpoint"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// APIKeyConfig holds API key provider configuration
type APIKeyConfig struct {
	Prefix string `yaml:"prefix"` // dispatch-mode routing prefix, e.g. "ak_"
}

// EnvConfig holds development environment-variable provider configuration
type EnvConfig struct {
	UserID string `yaml:"user_id"`
}

// CacheConfig holds authentication result cache configuration. Caching is on
// unless the file says otherwise; Enabled is a pointer so an omitted section
// is distinguishable from an explicit false.
type CacheConfig struct {
	Enabled *bool `yaml:"enabled"`

	TTL    time.Duration `yaml:"-"`
	TTLRaw string        `yaml:"ttl"`
}

// On reports whether result caching is enabled. Defaults to true when the
// config omits the setting.
func (c CacheConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// ResolverConfig holds downstream token resolution configuration
type ResolverConfig struct {
	PlatformURL string `yaml:"platform_url"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`

	CacheTTL    time.Duration `yaml:"-"`
	CacheTTLRaw string        `yaml:"cache_ttl"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Production reports whether the configuration declares a production
// environment.
func (c *Config) Production() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values the file may omit.
func applyDefaults(cfg *Config) {
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = ModeChain
	}
	if len(cfg.Auth.Order) == 0 {
		cfg.Auth.Order = []string{ProviderJWT}
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server addresses are required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}
	if err := validateAbsoluteURL(c.Upstream.URL); err != nil {
		return fmt.Errorf("upstream.url: %w", err)
	}

	if c.Auth.Mode != ModeChain && c.Auth.Mode != ModeDispatch {
		return fmt.Errorf("auth.mode must be %q or %q, got %q", ModeChain, ModeDispatch, c.Auth.Mode)
	}

	if err := c.validateOrder(); err != nil {
		return err
	}

	// Routes require a platform to resolve tokens against
	if len(c.Routes) > 0 {
		if c.Resolver.PlatformURL == "" {
			return fmt.Errorf("resolver.platform_url is required when routes are configured")
		}
		if err := validateAbsoluteURL(c.Resolver.PlatformURL); err != nil {
			return fmt.Errorf("resolver.platform_url: %w", err)
		}
	}

	return nil
}

// validateOrder checks the provider list and each enabled provider's settings.
func (c *Config) validateOrder() error {
	for i, name := range c.Auth.Order {
		switch name {
		case ProviderJWT:
			if len(c.Auth.JWT.Secret) < minJWTSecretBytes {
				return fmt.Errorf("auth.jwt.secret must be at least %d bytes", minJWTSecretBytes)
			}
		case ProviderOAuth:
			if c.Auth.OAuth.UserinfoEndpoint == "" {
				return fmt.Errorf("auth.oauth.userinfo_endpoint is required when the oauth provider is enabled")
			}
			if err := validateAbsoluteURL(c.Auth.OAuth.UserinfoEndpoint); err != nil {
				return fmt.Errorf("auth.oauth.userinfo_endpoint: %w", err)
			}
		case ProviderAPIKey:
			// Keys live in the database; nothing to check here.
		case ProviderEnv:
			if c.Production() {
				return fmt.Errorf("the env provider cannot be enabled in a production environment")
			}
			if c.Auth.Mode == ModeDispatch {
				return fmt.Errorf("the env provider cannot be used in dispatch mode: credential-shape routing never selects it")
			}
			if i != len(c.Auth.Order)-1 {
				return fmt.Errorf("the env provider must be last in auth.order (position %d of %d)", i+1, len(c.Auth.Order))
			}
			if c.Auth.Env.UserID == "" {
				return fmt.Errorf("auth.env.user_id is required when the env provider is enabled")
			}
		default:
			return fmt.Errorf("unknown provider %q in auth.order", name)
		}
	}

	if c.hasProvider(ProviderAPIKey) && c.Database.Path == "" {
		return fmt.Errorf("database.path is required when the apikey provider is enabled")
	}

	return nil
}

func (c *Config) hasProvider(name string) bool {
	for _, n := range c.Auth.Order {
		if n == name {
			return true
		}
	}
	return false
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host, got %q", raw)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.OAuth.TimeoutRaw != "" {
		cfg.Auth.OAuth.Timeout, err = time.ParseDuration(cfg.Auth.OAuth.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing auth.oauth.timeout %q: %w", cfg.Auth.OAuth.TimeoutRaw, err)
		}
	}

	if cfg.Auth.Cache.TTLRaw != "" {
		cfg.Auth.Cache.TTL, err = time.ParseDuration(cfg.Auth.Cache.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing auth.cache.ttl %q: %w", cfg.Auth.Cache.TTLRaw, err)
		}
	}

	if cfg.Resolver.TimeoutRaw != "" {
		cfg.Resolver.Timeout, err = time.ParseDuration(cfg.Resolver.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing resolver.timeout %q: %w", cfg.Resolver.TimeoutRaw, err)
		}
	}

	if cfg.Resolver.CacheTTLRaw != "" {
		cfg.Resolver.CacheTTL, err = time.ParseDuration(cfg.Resolver.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing resolver.cache_ttl %q: %w", cfg.Resolver.CacheTTLRaw, err)
		}
	}

	return nil
}
