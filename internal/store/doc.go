// ABOUTME: Package documentation for the persistence layer.
// ABOUTME: Covers API key storage and the auth audit trail.

// Package store provides SQLite-backed persistence for authgate.
//
// Two concerns live here:
//
//   - API keys: provisioned keys stored as SHA-256 digests. The raw key is
//     returned once at creation time and cannot be recovered; lookups hash
//     the presented key and match by digest, so the database never holds a
//     usable credential.
//
//   - Auth audit: one row per authentication attempt (allowed/rejected) for
//     security monitoring. Detail strings are log-safe and never include
//     credential material.
//
// The store uses modernc.org/sqlite (pure Go, no cgo) with WAL mode enabled.
package store
