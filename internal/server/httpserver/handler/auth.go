package handler

import (
	"net/http"

	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/internal/core/service"
)

// handleLogin handles POST /api/auth/login/.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", nil)
		return
	}

	resp, err := h.auth.Login(r.Context(), &service.LoginRequest{
		Username: req.Username,
		Password: req.Password,
		ClientIP: GetClientIP(r),
	})
	if err != nil {
		h.recordLogin(loginResult(err))
		h.handleServiceError(w, r, err)
		return
	}
	h.recordLogin("success")

	h.writeJSON(w, r, http.StatusOK, LoginResponse{
		Token: resp.Token,
		User:  newUserResponse(resp.User),
	})
}

func loginResult(err error) string {
	switch domain.GetErrorCode(err) {
	case domain.ErrRateLimited.Code:
		return "rate_limited"
	case domain.ErrBadCredentials.Code, domain.ErrUserInactive.Code:
		return "rejected"
	case domain.ErrMissingArgument.Code:
		return "invalid"
	default:
		return "error"
	}
}

func (h *Handler) recordLogin(result string) {
	if h.logins != nil {
		h.logins.RecordLogin(result)
	}
}

// handleLogout handles POST /api/auth/logout/.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if p == nil {
		h.handleServiceError(w, r, domain.ErrCredentialsMissing)
		return
	}
	if err := h.auth.Logout(r.Context(), p.Token); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"logged_out": true})
}

// handleMe handles GET /api/auth/me/.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())
	if u == nil {
		h.handleServiceError(w, r, domain.ErrCredentialsMissing)
		return
	}
	h.writeJSON(w, r, http.StatusOK, newUserResponse(u))
}
