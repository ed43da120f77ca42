package handler

import (
	"net/http"

	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/internal/core/service"
)

// handleCreateUser handles POST /api/auth/admin/create/.
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", nil)
		return
	}

	u, err := h.admin.CreateUser(r.Context(), &service.CreateUserRequest{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		IsStaff:   req.IsStaff,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, newUserResponse(u))
}

// handlePromoteUser handles POST /api/auth/admin/promote/{user_id}/.
func (h *Handler) handlePromoteUser(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", nil)
		return
	}
	staff := true
	if req.IsStaff != nil {
		staff = *req.IsStaff
	}

	u, err := h.admin.SetStaff(r.Context(), r.PathValue("user_id"), staff)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, newUserResponse(u))
}

// handleDeleteUser handles DELETE /api/auth/admin/delete/{user_id}/.
func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller := UserFromContext(r.Context())
	if caller == nil {
		h.handleServiceError(w, r, domain.ErrCredentialsMissing)
		return
	}

	id := r.PathValue("user_id")
	if err := h.admin.DeleteUser(r.Context(), caller.ID, id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"deleted": id})
}

// handleFlushUser handles POST /api/auth/admin/flush/{user_id}/.
func (h *Handler) handleFlushUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("user_id")
	n, err := h.admin.FlushUser(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, FlushResponse{UserID: id, Flushed: n})
}

// handleFlushAll handles POST /api/auth/admin/flush_all/.
func (h *Handler) handleFlushAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.FlushAll(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

// handleListEmployees handles GET /api/attendance/employees/.
func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	out := make([]EmployeeResponse, 0, len(users))
	for _, u := range users {
		st, err := h.attendance.Status(r.Context(), u.ID)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		out = append(out, EmployeeResponse{User: newUserResponse(u), ActiveAttendance: st.Active})
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// handleTrackEmployee handles GET /api/attendance/employees/{user_id}/tracking/.
func (h *Handler) handleTrackEmployee(w http.ResponseWriter, r *http.Request) {
	u, err := h.admin.GetUser(r.Context(), r.PathValue("user_id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	list, err := h.attendance.History(r.Context(), u.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*domain.Attendance{}
	}
	h.writeJSON(w, r, http.StatusOK, TrackingResponse{User: newUserResponse(u), Attendances: list})
}
