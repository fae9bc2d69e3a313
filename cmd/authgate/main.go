// ABOUTME: Entry point for the authgate authentication gateway
// ABOUTME: Fronts an upstream MCP server with credential verification

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/authgate/internal/auth"
	"github.com/2389/authgate/internal/config"
	"github.com/2389/authgate/internal/gateway"
	"github.com/2389/authgate/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
             _   _                 _
  __ _ _   _| |_| |__   __ _  __ _| |_ ___
 / _' | | | | __| '_ \ / _' |/ _' | __/ _ \
| (_| | |_| | |_| | | | (_| | (_| | ||  __/
 \__,_|\__,_|\__|_| |_|\__, |\__,_|\__\___|
                       |___/
`

// getConfigPath returns the path to the authgate config file.
// Priority: AUTHGATE_CONFIG env var > XDG_CONFIG_HOME/authgate/config.yaml > ~/.config/authgate/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("AUTHGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "authgate", "config.yaml")
}

// getDataPath returns the path to the authgate data directory.
// Priority: XDG_DATA_HOME/authgate > ~/.local/share/authgate
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "authgate")
}

func usage() {
	fmt.Println("Usage: authgate <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                      Start the gateway")
	fmt.Println("  init                       Create a config file with a fresh JWT secret")
	fmt.Println("  token --user ID [--ttl D]  Mint a JWT for a user")
	fmt.Println("  apikey create --user ID --name NAME")
	fmt.Println("  apikey list                List provisioned API keys")
	fmt.Println("  apikey revoke --id ID      Revoke an API key")
	fmt.Println("  health                     Check gateway health")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken()
	case "apikey":
		err = runAPIKey(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Upstream:  %s\n", cfg.Upstream.URL)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Providers: %s (%s mode)\n", strings.Join(cfg.Auth.Order, ", "), cfg.Auth.Mode)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if hasEnvProvider(cfg) {
		yellow.Println("    ! env provider enabled - development only")
	}

	fmt.Println()

	logger.Info("starting authgate",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"upstream", cfg.Upstream.URL,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func hasEnvProvider(cfg *config.Config) bool {
	for _, name := range cfg.Auth.Order {
		if name == config.ProviderEnv {
			return true
		}
	}
	return false
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// runInit writes a starter config with a freshly generated JWT secret.
func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "authgate.db")

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	configContent := fmt.Sprintf(`# authgate configuration
# Generated by authgate init

server:
  http_addr: "localhost:8080"

upstream:
  url: "http://localhost:9000"

auth:
  mode: "chain"
  order: ["jwt", "apikey"]
  jwt:
    secret: "%s"
  cache:
    enabled: true
    ttl: "60s"

database:
  path: "%s"

logging:
  level: "info"
  format: "text"
`, jwtSecret, dbPath)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println()
	fmt.Println("Edit upstream.url to point at your MCP server, then:")
	fmt.Println("  authgate serve")

	return nil
}

// runToken mints a JWT using the configured secret.
func runToken() error {
	var userID string
	ttl := 30 * 24 * time.Hour

	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--user" || args[i] == "-u":
			if i+1 >= len(args) {
				return fmt.Errorf("--user requires a value")
			}
			userID = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--user="):
			userID = strings.TrimPrefix(args[i], "--user=")
		case args[i] == "--ttl":
			if i+1 >= len(args) {
				return fmt.Errorf("--ttl requires a value")
			}
			parsed, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("parsing --ttl: %w", err)
			}
			ttl = parsed
			i++
		default:
			return fmt.Errorf("unknown argument: %s", args[i])
		}
	}

	if userID == "" {
		return fmt.Errorf("--user flag is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	provider, err := auth.NewJWTProvider(auth.JWTConfig{
		Secret:   []byte(cfg.Auth.JWT.Secret),
		Issuer:   cfg.Auth.JWT.Issuer,
		Audience: cfg.Auth.JWT.Audience,
	})
	if err != nil {
		return fmt.Errorf("creating JWT provider: %w", err)
	}

	token, err := provider.Generate(userID, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

// runAPIKey manages API keys directly against the store.
func runAPIKey(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: authgate apikey <create|list|revoke>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is not configured")
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	switch os.Args[2] {
	case "create":
		return runAPIKeyCreate(ctx, s, os.Args[3:])
	case "list":
		return runAPIKeyList(ctx, s)
	case "revoke":
		return runAPIKeyRevoke(ctx, s, os.Args[3:])
	default:
		return fmt.Errorf("unknown apikey command: %s", os.Args[2])
	}
}

func runAPIKeyCreate(ctx context.Context, s store.Store, args []string) error {
	var userID, name string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--user" || args[i] == "-u":
			if i+1 >= len(args) {
				return fmt.Errorf("--user requires a value")
			}
			userID = args[i+1]
			i++
		case args[i] == "--name" || args[i] == "-n":
			if i+1 >= len(args) {
				return fmt.Errorf("--name requires a value")
			}
			name = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--user="):
			userID = strings.TrimPrefix(args[i], "--user=")
		case strings.HasPrefix(args[i], "--name="):
			name = strings.TrimPrefix(args[i], "--name=")
		default:
			return fmt.Errorf("unknown argument: %s", args[i])
		}
	}
	if userID == "" || name == "" {
		return fmt.Errorf("--user and --name flags are required")
	}

	key, rawKey, err := s.CreateAPIKey(ctx, userID, name)
	if err != nil {
		return fmt.Errorf("creating API key: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created API key %s for %s\n", key.ID, userID)
	fmt.Println()
	fmt.Printf("  %s\n", rawKey)
	fmt.Println()
	color.New(color.FgYellow).Println("  Save this key now - it cannot be recovered later.")
	return nil
}

func runAPIKeyList(ctx context.Context, s store.Store) error {
	keys, err := s.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing API keys: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("no API keys")
		return nil
	}

	for _, key := range keys {
		status := "active"
		if !key.Active() {
			status = "revoked"
		}
		fmt.Printf("%s  %-20s  %-12s  %s  %s\n",
			key.ID, key.PrincipalID, key.Name, key.CreatedAt.Format("2006-01-02"), status)
	}
	return nil
}

func runAPIKeyRevoke(ctx context.Context, s store.Store, args []string) error {
	var id string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--id":
			if i+1 >= len(args) {
				return fmt.Errorf("--id requires a value")
			}
			id = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--id="):
			id = strings.TrimPrefix(args[i], "--id=")
		default:
			return fmt.Errorf("unknown argument: %s", args[i])
		}
	}
	if id == "" {
		return fmt.Errorf("--id flag is required")
	}

	if err := s.RevokeAPIKey(ctx, id); err != nil {
		return fmt.Errorf("revoking API key: %w", err)
	}
	fmt.Printf("revoked %s\n", id)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
