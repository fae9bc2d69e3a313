// Package config handles configuration loading for authgate.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from AUTHGATE_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/authgate/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt:
//	    secret: "${AUTHGATE_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	resolver:
//	  timeout: "2s"
//	  cache_ttl: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # Gateway proxy and API
//	  grpc_addr: "0.0.0.0:50051"  # Optional gRPC listener
//
// Upstream (the protected MCP server):
//
//	upstream:
//	  url: "http://localhost:9000"
//
// Authentication:
//
//	auth:
//	  mode: "chain"               # chain (try in order) or dispatch (route by shape)
//	  order: ["jwt", "apikey"]    # provider evaluation order
//	  jwt:
//	    secret: "${AUTHGATE_JWT_SECRET}"
//	    issuer: "authgate"
//	    audience: "mcp"
//	  oauth:
//	    userinfo_endpoint: "https://idp.example.com/userinfo"
//	    timeout: "2s"
//	  apikey:
//	    prefix: "ak_"
//	  env:
//	    user_id: "dev-user"       # development only, never in production
//	  cache:
//	    enabled: true
//	    ttl: "60s"
//
// Token resolution and routes:
//
//	resolver:
//	  platform_url: "http://localhost:7000"
//	  timeout: "2s"
//	  cache_ttl: "5m"
//	routes:
//	  "tools/call": "github"      # operation → resource type
//
// Database:
//
//	database:
//	  path: "/var/lib/authgate/authgate.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - JWT secret minimum length (32 bytes)
//   - Upstream and platform URL shape
//   - Provider names and per-provider requirements
//   - The env provider: last in chain order, never in production
//   - Duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/authgate/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
