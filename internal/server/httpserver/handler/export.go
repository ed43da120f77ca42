package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
	"github.com/yndnr/attendmesh/internal/export"
)

// Export formats accepted by ?format=.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// reportDay resolves the requested day, defaulting to today.
func (h *Handler) reportDay(r *http.Request) (time.Time, error) {
	loc := h.attendance.Location()
	day, ok, err := parseDay(r, loc)
	if err != nil {
		return time.Time{}, domain.ErrInvalidArgument.WithDetails("invalid date in path")
	}
	if !ok {
		return h.attendance.Today(), nil
	}
	return day, nil
}

// handleExport handles GET /api/attendance/export/today/ and
// GET /api/attendance/export/{year}/{month}/{day}/.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	day, err := h.reportDay(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("format must be csv or xlsx"))
		return
	}

	entries, err := h.attendance.DailyReport(r.Context(), day)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	rows := export.BuildRows(entries, time.Now(), h.attendance.Location())

	var buf bytes.Buffer
	contentType := export.ContentTypeCSV
	if format == FormatXLSX {
		contentType = export.ContentTypeXLSX
		err = export.WriteXLSX(&buf, rows)
	} else {
		err = export.WriteCSV(&buf, rows)
	}
	if err != nil {
		h.handleServiceError(w, r, domain.ErrInternalServer.WithCause(err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(day, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Request-ID", getRequestID(r))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("export write failed", "error", err)
	}
}

// handleSaveExport handles POST /api/attendance/export/save/today/ and
// POST /api/attendance/export/save/{year}/{month}/{day}/.
func (h *Handler) handleSaveExport(w http.ResponseWriter, r *http.Request) {
	if h.saver == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, "export directory not configured", nil)
		return
	}
	day, err := h.reportDay(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	path, err := h.saver.Save(r.Context(), day)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, SaveExportResponse{Path: path, Day: day.Format(time.DateOnly)})
}
