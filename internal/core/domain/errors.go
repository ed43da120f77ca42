// Package domain defines the core domain models for attendmesh.
package domain

import "errors"

// DomainError is a business error carrying a stable code of the form
// AM-<AREA>-<NNNN>. The last four digits select the HTTP status.
//
// Predefined errors are templates: derive variants with WithDetails or
// WithCause rather than mutating them. errors.Is matches on Code alone.
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

// NewDomainError returns a DomainError template.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string {
	msg := "[" + e.Code + "] " + e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

func (e *DomainError) Unwrap() error { return e.Cause }

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// WithDetails returns a copy with details attached.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// IsDomainError reports whether err wraps a DomainError. A non-empty code
// must also match.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return code == "" || de.Code == code
}

// GetErrorCode returns the code of the first DomainError in err's chain, or "".
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Attendance.
var (
	ErrAttendanceValidation      = NewDomainError("AM-ATT-4001", "attendance validation failed")
	ErrInvalidLogoutTime         = NewDomainError("AM-ATT-4002", "invalid logout_time")
	ErrNoActiveAttendance        = NewDomainError("AM-ATT-4040", "no active attendance")
	ErrAttendanceNotFound        = NewDomainError("AM-ATT-4041", "attendance not found")
	ErrAttendanceVersionConflict = NewDomainError("AM-ATT-4091", "version conflict, please retry")
)

// Authentication. ErrCredentialsMissing covers requests with neither a
// bearer header nor a body token.
var (
	ErrCredentialsMissing = NewDomainError("AM-AUTH-4010", "authentication credentials not provided")
	ErrTokenInvalid       = NewDomainError("AM-AUTH-4011", "invalid token")
	ErrBadCredentials     = NewDomainError("AM-AUTH-4012", "invalid username or password")
	ErrAdminRequired      = NewDomainError("AM-AUTH-4030", "admin role required")
	ErrUserInactive       = NewDomainError("AM-AUTH-4031", "user inactive")
)

// Users.
var (
	ErrUserValidation      = NewDomainError("AM-USER-4001", "user validation failed")
	ErrStaffProtected      = NewDomainError("AM-USER-4030", "operation not allowed on staff account")
	ErrUserNotFound        = NewDomainError("AM-USER-4040", "user not found")
	ErrUsernameTaken       = NewDomainError("AM-USER-4090", "username exists")
	ErrUserVersionConflict = NewDomainError("AM-USER-4091", "version conflict, please retry")
)

// System and arguments.
var (
	ErrBadRequest         = NewDomainError("AM-SYS-4000", "bad request")
	ErrRateLimited        = NewDomainError("AM-SYS-4290", "too many requests")
	ErrInternalServer     = NewDomainError("AM-SYS-5000", "internal server error")
	ErrStorageError       = NewDomainError("AM-SYS-5001", "storage error")
	ErrServiceUnavailable = NewDomainError("AM-SYS-5030", "service unavailable")

	ErrInvalidArgument = NewDomainError("AM-ARG-1001", "invalid argument")
	ErrMissingArgument = NewDomainError("AM-ARG-1002", "missing required argument")
)
