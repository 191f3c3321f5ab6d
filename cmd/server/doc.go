// Package main is the entry point for the Arcadia extension runtime.
//
// The server owns the extension registry (install, enable/disable,
// uninstall, permissions, settings, hooks) and the store aggregator
// that merges extension catalogs from configured remote sources. The
// desktop shell talks to it over a REST command surface and receives
// lifecycle events over a WebSocket stream.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8090 -storage /var/lib/arcadia/arcadia.db
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
