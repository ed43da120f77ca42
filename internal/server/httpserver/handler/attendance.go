package handler

import (
	"net/http"

	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/internal/core/service"
	"github.com/yndnr/attendmesh/internal/telemetry/logger"
)

// handleStart handles POST /api/attendance/start/.
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())
	if u == nil {
		h.handleServiceError(w, r, domain.ErrCredentialsMissing)
		return
	}

	resp, err := h.attendance.Start(r.Context(), &service.StartRequest{UserID: u.ID, Username: u.Username})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Outcome == service.StartCreated {
		status = http.StatusCreated
	}
	h.writeJSON(w, r, status, StartResponse{Outcome: resp.Outcome, Attendance: resp.Attendance})
}

// handleToggleBreak handles POST /api/attendance/break/toggle/.
func (h *Handler) handleToggleBreak(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())
	if u == nil {
		h.handleServiceError(w, r, domain.ErrCredentialsMissing)
		return
	}

	resp, err := h.attendance.ToggleBreak(r.Context(), &service.ToggleBreakRequest{UserID: u.ID, Username: u.Username})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ToggleBreakResponse{
		OnBreak:    resp.Started,
		Break:      resp.Break,
		Attendance: resp.Attendance,
	})
}

// handleEnd handles POST /api/attendance/end/.
//
// Unload beacons carry no Authorization header, so the token may also come
// from the body. Nothing to end is a 200 no-op.
func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	req, err := parseEndRequest(w, r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	u := UserFromContext(r.Context())
	if u == nil {
		if u, err = h.auth.Authenticate(r.Context(), req.Token); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
	}

	logoutTime, err := parseLogoutTime(req.LogoutTime)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	reason, ok := domain.ParseEndReason(req.Reason)
	if !ok {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("reason must be close or manual"))
		return
	}

	resp, err := h.attendance.End(r.Context(), &service.EndRequest{
		UserID:     u.ID,
		Username:   u.Username,
		LogoutTime: logoutTime,
		Reason:     reason,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	logger.L(r.Context()).Debug("end notification handled",
		"user_id", u.ID,
		"outcome", resp.Outcome,
		"content_type", r.Header.Get("Content-Type"))
	h.writeJSON(w, r, http.StatusOK, EndResponse{Outcome: resp.Outcome, Attendance: resp.Attendance})
}

// handleRevive handles POST /api/attendance/revive_if_recent/.
func (h *Handler) handleRevive(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())
	if u == nil {
		h.handleServiceError(w, r, domain.ErrCredentialsMissing)
		return
	}

	unloadTime, err := parseReviveRequest(w, r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp, err := h.attendance.ReviveIfRecent(r.Context(), &service.ReviveRequest{
		UserID:     u.ID,
		Username:   u.Username,
		UnloadTime: unloadTime,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ReviveResponse{
		Outcome:    resp.Outcome,
		Attendance: resp.Attendance,
		ElapsedMS:  resp.Elapsed.Milliseconds(),
	})
}

// handleStatus handles GET /api/attendance/status/.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())
	if u == nil {
		h.handleServiceError(w, r, domain.ErrCredentialsMissing)
		return
	}

	resp, err := h.attendance.Status(r.Context(), u.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, StatusResponse{
		ActiveAttendance: resp.Active,
		LastAttendance:   resp.Last,
	})
}

// handlePolicy handles GET /api/attendance/policy/.
func (h *Handler) handlePolicy(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, PolicyResponse{
		ReviveGraceMS: h.attendance.GraceWindow().Milliseconds(),
	})
}

// handleFeed handles GET /api/attendance/feed/.
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, "live feed disabled", nil)
		return
	}
	h.feed.ServeHTTP(w, r)
}
