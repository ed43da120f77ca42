package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/internal/core/service"
	"github.com/yndnr/attendmesh/internal/export"
	"github.com/yndnr/attendmesh/internal/telemetry/logger"
)

// LoginRecorder counts login attempts by result.
type LoginRecorder interface {
	RecordLogin(result string)
}

// Config wires the handler to its services. Attendance, Auth and Admin are
// required; everything else is optional.
type Config struct {
	Attendance *service.AttendanceService
	Auth       *service.AuthService
	Admin      *service.AdminService

	// Saver writes reports into the export directory.
	Saver *export.Saver

	// Feed serves the live attendance WebSocket.
	Feed http.Handler

	// Metrics serves the Prometheus exposition.
	Metrics http.Handler

	Logins LoginRecorder

	// Ready reports whether the backing store can serve requests.
	Ready func(ctx context.Context) error

	Logger *slog.Logger
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	attendance *service.AttendanceService
	auth       *service.AuthService
	admin      *service.AdminService
	saver      *export.Saver
	feed       http.Handler
	metrics    http.Handler
	logins     LoginRecorder
	ready      func(ctx context.Context) error
	logger     *slog.Logger
	mux        *http.ServeMux
}

// New creates a new Handler with the given services.
func New(cfg *Config) *Handler {
	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}
	h := &Handler{
		attendance: cfg.Attendance,
		auth:       cfg.Auth,
		admin:      cfg.Admin,
		saver:      cfg.Saver,
		feed:       cfg.Feed,
		metrics:    cfg.Metrics,
		logins:     cfg.Logins,
		ready:      cfg.Ready,
		logger:     l,
		mux:        http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Route patterns. Paths keep their trailing slash; {$} pins the exact path.
const (
	RouteHealth  = "GET /health"
	RouteReady   = "GET /ready"
	RouteMetrics = "GET /metrics"

	RouteLogin  = "POST /api/auth/login/{$}"
	RouteLogout = "POST /api/auth/logout/{$}"
	RouteMe     = "GET /api/auth/me/{$}"

	RouteStart       = "POST /api/attendance/start/{$}"
	RouteBreakToggle = "POST /api/attendance/break/toggle/{$}"
	RouteEnd         = "POST /api/attendance/end/{$}"
	RouteRevive      = "POST /api/attendance/revive_if_recent/{$}"
	RouteStatus      = "GET /api/attendance/status/{$}"
	RoutePolicy      = "GET /api/attendance/policy/{$}"
	RouteFeed        = "GET /api/attendance/feed/{$}"

	RouteExportToday   = "GET /api/attendance/export/today/{$}"
	RouteExportDay     = "GET /api/attendance/export/{year}/{month}/{day}/{$}"
	RouteSaveToday     = "POST /api/attendance/export/save/today/{$}"
	RouteSaveDay       = "POST /api/attendance/export/save/{year}/{month}/{day}/{$}"
	RouteEmployees     = "GET /api/attendance/employees/{$}"
	RouteEmployeeTrack = "GET /api/attendance/employees/{user_id}/tracking/{$}"

	RouteAdminCreate   = "POST /api/auth/admin/create/{$}"
	RouteAdminPromote  = "POST /api/auth/admin/promote/{user_id}/{$}"
	RouteAdminDelete   = "DELETE /api/auth/admin/delete/{user_id}/{$}"
	RouteAdminFlush    = "POST /api/auth/admin/flush/{user_id}/{$}"
	RouteAdminFlushAll = "POST /api/auth/admin/flush_all/{$}"
)

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health endpoints (no auth required)
	h.mux.HandleFunc(RouteHealth, h.handleHealth)
	h.mux.HandleFunc(RouteReady, h.handleReady)
	h.mux.HandleFunc(RouteMetrics, h.handleMetrics)

	// Auth
	h.mux.HandleFunc(RouteLogin, h.handleLogin)
	h.mux.HandleFunc(RouteLogout, h.handleLogout)
	h.mux.HandleFunc(RouteMe, h.handleMe)

	// Attendance
	h.mux.HandleFunc(RouteStart, h.handleStart)
	h.mux.HandleFunc(RouteBreakToggle, h.handleToggleBreak)
	h.mux.HandleFunc(RouteEnd, h.handleEnd)
	h.mux.HandleFunc(RouteRevive, h.handleRevive)
	h.mux.HandleFunc(RouteStatus, h.handleStatus)
	h.mux.HandleFunc(RoutePolicy, h.handlePolicy)
	h.mux.HandleFunc(RouteFeed, h.handleFeed)

	// Reports
	h.mux.HandleFunc(RouteExportToday, h.handleExport)
	h.mux.HandleFunc(RouteExportDay, h.handleExport)
	h.mux.HandleFunc(RouteSaveToday, h.handleSaveExport)
	h.mux.HandleFunc(RouteSaveDay, h.handleSaveExport)
	h.mux.HandleFunc(RouteEmployees, h.handleListEmployees)
	h.mux.HandleFunc(RouteEmployeeTrack, h.handleTrackEmployee)

	// Account administration
	h.mux.HandleFunc(RouteAdminCreate, h.handleCreateUser)
	h.mux.HandleFunc(RouteAdminPromote, h.handlePromoteUser)
	h.mux.HandleFunc(RouteAdminDelete, h.handleDeleteUser)
	h.mux.HandleFunc(RouteAdminFlush, h.handleFlushUser)
	h.mux.HandleFunc(RouteAdminFlushAll, h.handleFlushAll)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// getRequestID returns the request ID set by the RequestID middleware,
// falling back to the inbound header.
func getRequestID(r *http.Request) string {
	if reqID := logger.RequestIDFromContext(r.Context()); reqID != "" {
		return reqID
	}
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := ErrorCodeToHTTPStatus(de.Code)
		if status >= http.StatusInternalServerError {
			logger.L(r.Context()).Error("request failed", "code", de.Code, "error", err)
			h.writeError(w, r, status, de.Code, de.Message, nil)
			return
		}
		var details any
		if de.Details != "" {
			details = de.Details
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	// Generic internal error
	logger.L(r.Context()).Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"), strings.HasSuffix(code, "-4012"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(code, "AM-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetClientIP extracts client IP from request.
func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
