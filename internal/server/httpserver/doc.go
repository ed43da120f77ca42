// Package httpserver provides the HTTP/HTTPS server for attendmesh.
//
// This package implements the external API using stdlib net/http:
//
//   - Auth endpoints: /api/auth/login/, /api/auth/logout/, /api/auth/me/
//   - Attendance endpoints: /api/attendance/{start,break/toggle,end,revive_if_recent,status,policy}/
//   - Staff endpoints: /api/attendance/feed/, /api/attendance/export/..., /api/attendance/employees/...,
//     /api/auth/admin/...
//   - Health endpoints: /health, /ready, /metrics
//
// Middleware chain: Recover, RequestID, CORS, RateLimit, Audit, Auth, StaffAuth.
package httpserver
