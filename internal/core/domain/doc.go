// Package domain defines the core domain models for attendmesh.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - Attendance: a work period with breaks and its end/revive lifecycle
//   - User: employee and staff accounts with Argon2id password hashes
//   - AuthToken: bearer token generation and hashing
//   - Errors: domain-specific error definitions
//
// Timestamps are Unix milliseconds throughout, matching the wire format
// of the client lifecycle protocol.
package domain
