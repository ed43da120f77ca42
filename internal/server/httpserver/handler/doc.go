// Package handler provides the HTTP request handlers for attendmesh.
//
// Files are split by area:
//
//   - auth.go: login, logout and the current user
//   - attendance.go: start, break toggle, end, revive and status
//   - export.go: daily report downloads and saves
//   - admin.go: account administration and employee tracking
//   - health.go: health, readiness and metrics
//
// All handlers follow a consistent pattern:
//
//   - Parse and validate request
//   - Call domain service
//   - Format and return response
//   - Handle errors with appropriate HTTP status codes
//
// Authentication is resolved by middleware in the parent package and
// handed over through the request context (see Principal).
package handler
