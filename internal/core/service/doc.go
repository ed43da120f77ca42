// Package service provides domain services for attendmesh.
//
// Domain services contain pure business logic and orchestrate operations
// on domain models. They define interfaces for storage dependencies,
// allowing for dependency injection and testability.
//
// This package contains:
//
//   - AttendanceService: start, breaks, status, end and revive-if-recent
//   - AuthService: login and bearer token authentication
//   - AdminService: staff-only user management and attendance flushes
//
// All read-modify-write operations on one user's attendance are
// serialized through a per-user lock so that end and revive requests
// racing each other are applied in arrival order.
package service
