package handler

import (
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/internal/core/service"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics and report downloads).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// LoginRequest is the request body for POST /api/auth/login/.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for POST /api/auth/login/.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse represents an account in API responses. The password hash
// never leaves the server.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	Email     string `json:"email,omitempty"`
	IsStaff   bool   `json:"is_staff"`
	IsActive  bool   `json:"is_active"`
	CreatedAt int64  `json:"created_at"`
	LastLogin int64  `json:"last_login,omitempty"`
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		Email:     u.Email,
		IsStaff:   u.IsStaff,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

// StartResponse is the response body for POST /api/attendance/start/.
type StartResponse struct {
	Outcome    service.StartOutcome `json:"outcome"`
	Attendance *domain.Attendance   `json:"attendance"`
}

// ToggleBreakResponse is the response body for POST /api/attendance/break/toggle/.
type ToggleBreakResponse struct {
	OnBreak    bool               `json:"on_break"`
	Break      domain.Break       `json:"break"`
	Attendance *domain.Attendance `json:"attendance"`
}

// EndRequest is the body of POST /api/attendance/end/. It arrives as JSON
// (application/json or text/plain) or form-encoded.
type EndRequest struct {
	LogoutTime string `json:"-"`
	Token      string `json:"token"`
	Reason     string `json:"reason"`
}

// EndResponse is the response body for POST /api/attendance/end/.
type EndResponse struct {
	Outcome    service.EndOutcome `json:"outcome"`
	Attendance *domain.Attendance `json:"attendance,omitempty"`
}

// ReviveResponse is the response body for POST /api/attendance/revive_if_recent/.
type ReviveResponse struct {
	Outcome    service.ReviveOutcome `json:"outcome"`
	Attendance *domain.Attendance    `json:"attendance,omitempty"`
	ElapsedMS  int64                 `json:"elapsed_ms,omitempty"`
}

// StatusResponse is the response body for GET /api/attendance/status/.
type StatusResponse struct {
	ActiveAttendance *domain.Attendance `json:"active_attendance"`
	LastAttendance   *domain.Attendance `json:"last_attendance"`
}

// PolicyResponse is the response body for GET /api/attendance/policy/.
type PolicyResponse struct {
	ReviveGraceMS int64 `json:"revive_grace_ms"`
}

// SaveExportResponse is the response body for the export save routes.
type SaveExportResponse struct {
	Path string `json:"path"`
	Day  string `json:"day"`
}

// EmployeeResponse is one entry of GET /api/attendance/employees/.
type EmployeeResponse struct {
	User             UserResponse       `json:"user"`
	ActiveAttendance *domain.Attendance `json:"active_attendance"`
}

// TrackingResponse is the response body for the employee tracking route.
type TrackingResponse struct {
	User        UserResponse         `json:"user"`
	Attendances []*domain.Attendance `json:"attendances"`
}

// CreateUserRequest is the request body for POST /api/auth/admin/create/.
type CreateUserRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	IsStaff   bool   `json:"is_staff,omitempty"`
}

// PromoteRequest is the optional body of the promote route.
// A missing body promotes.
type PromoteRequest struct {
	IsStaff *bool `json:"is_staff,omitempty"`
}

// FlushResponse is the response body for POST /api/auth/admin/flush/{user_id}/.
type FlushResponse struct {
	UserID  string `json:"user_id"`
	Flushed int    `json:"flushed"`
}
