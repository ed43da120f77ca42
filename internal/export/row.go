package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/attendmesh/internal/core/service"
)

// Header is the column header shared by every export format.
var Header = []string{
	"Username", "Full Name",
	"Session Start", "Session End",
	"Status", "Duration",
	"Break Count", "Break Details",
}

const (
	stampLayout = "02 Jan 2006, 03:04 PM"
	clockLayout = "03:04 PM"

	// placeholder marks a value that does not exist yet (open session or break).
	placeholder = "—"
)

// Row is one rendered attendance line.
type Row struct {
	Username     string
	FullName     string
	SessionStart string
	SessionEnd   string
	Status       string
	Duration     string
	BreakCount   int
	BreakDetails string
}

// Strings returns the row in Header order.
func (r Row) Strings() []string {
	return []string{
		r.Username, r.FullName,
		r.SessionStart, r.SessionEnd,
		r.Status, r.Duration,
		strconv.Itoa(r.BreakCount), r.BreakDetails,
	}
}

// BuildRows renders report entries in loc. Open sessions are measured up
// to now.
func BuildRows(entries []service.ReportEntry, now time.Time, loc *time.Location) []Row {
	if loc == nil {
		loc = time.Local
	}
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		a := e.Attendance
		if a == nil {
			continue
		}

		row := Row{
			Username:     e.Username,
			FullName:     e.FullName,
			SessionStart: a.StartTimeValue().In(loc).Format(stampLayout),
			SessionEnd:   placeholder,
			Status:       "Completed",
			Duration:     FormatDuration(a.Duration(now.UnixMilli())),
			BreakCount:   len(a.Breaks),
		}
		if a.IsActive() {
			row.Status = "Active"
		} else {
			row.SessionEnd = a.EndTimeValue().In(loc).Format(stampLayout)
		}

		lines := make([]string, 0, len(a.Breaks))
		for _, b := range a.Breaks {
			end := placeholder
			if !b.IsOpen() {
				end = time.UnixMilli(b.EndTime).In(loc).Format(clockLayout)
			}
			lines = append(lines, time.UnixMilli(b.StartTime).In(loc).Format(clockLayout)+" → "+end)
		}
		row.BreakDetails = strings.Join(lines, "\n")

		rows = append(rows, row)
	}
	return rows
}

// FormatDuration renders d as whole hours and minutes, e.g. "7h 5m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// FileName returns the export file name for day, e.g. attendance_2024-03-14.csv.
func FileName(day time.Time, ext string) string {
	return "attendance_" + day.Format(time.DateOnly) + "." + ext
}
