// Package logger builds the structured slog loggers used by attendmesh.
//
//   - logger.go: handler construction and the process-wide level
//   - context.go: request-scoped loggers and request IDs
//   - redact.go: masking of bearer tokens and secrets
//
// Bearer tokens (attk_) are masked to prefix plus a short hint; values of
// keys that look like credentials are replaced entirely.
package logger
