// Package main provides the entry point for attendmesh-server.
//
// The server records work attendance over an HTTP API and keeps an
// attendance open across page reloads: a close-end followed within the
// revive grace window by a revive is undone.
//
// Usage:
//
//	attendmesh-server [flags]
//	attendmesh-server -config /etc/attendmesh/server.yaml
//	attendmesh-server -config /etc/attendmesh/server.yaml -check-config
//
// Settings come from the YAML file, then ATTENDMESH_* environment variables
// (nesting with "__", e.g. ATTENDMESH_ATTENDANCE__REVIVE_GRACE=1500ms).
// When a file is given, log.level and attendance.revive_grace are reloaded
// on change.
package main
