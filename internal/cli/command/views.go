package command

import (
	"fmt"
	"strconv"
	"time"

	"github.com/yndnr/attendmesh/internal/cli/output"
	"github.com/yndnr/attendmesh/internal/core/domain"
)

// nowMillis is the clock used for running durations.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

type userView struct {
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

func (u userView) Table(wide bool) *output.Table {
	t := output.NewTable("FIELD", "VALUE")
	t.AddRow("id", u.ID)
	t.AddRow("username", u.Username)
	t.AddRow("name", u.FullName)
	t.AddRow("email", u.Email)
	t.AddRow("staff", output.Bool(u.IsStaff))
	if wide {
		t.AddRow("active", output.Bool(u.IsActive))
		t.AddRow("created", output.Millis(u.CreatedAt))
		t.AddRow("last login", output.Millis(u.LastLogin))
	}
	return t
}

type loginView struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func (l loginView) Table(bool) *output.Table {
	t := output.NewTable("USER", "STAFF", "STATUS")
	t.AddRow(l.User.Username, output.Bool(l.User.IsStaff), "logged in")
	return t
}

// attendanceHeaders and attendanceRow render one attendance per line.
func attendanceHeaders(wide bool) []string {
	h := []string{"ID", "STATE", "STARTED", "ENDED", "WORKED", "BREAKS"}
	if wide {
		h = append(h, "BREAK_TIME", "REVIVES", "VERSION")
	}
	return h
}

func attendanceRow(a *domain.Attendance, wide bool) []string {
	now := nowMillis()
	row := []string{
		a.ID,
		attendanceState(a),
		output.Millis(a.StartTime),
		output.Millis(a.EndTime),
		output.Duration(a.Duration(now) - a.BreakDuration(now)),
		strconv.Itoa(len(a.Breaks)),
	}
	if wide {
		row = append(row,
			output.Duration(a.BreakDuration(now)),
			strconv.Itoa(a.ReviveCount),
			strconv.FormatUint(a.Version, 10),
		)
	}
	return row
}

func attendanceState(a *domain.Attendance) string {
	switch {
	case a.OnBreak():
		return "on break"
	case a.IsActive():
		return "active"
	case a.EndReason != "":
		return "ended (" + string(a.EndReason) + ")"
	default:
		return "ended"
	}
}

func attendanceTable(wide bool, rows ...*domain.Attendance) *output.Table {
	t := output.NewTable(attendanceHeaders(wide)...)
	for _, a := range rows {
		if a != nil {
			t.AddRow(attendanceRow(a, wide)...)
		}
	}
	return t
}

// outcomeTable prefixes an attendance row with an OUTCOME column.
func outcomeTable(outcome string, a *domain.Attendance, wide bool) *output.Table {
	t := output.NewTable(append([]string{"OUTCOME"}, attendanceHeaders(wide)...)...)
	if a == nil {
		t.AddRow(outcome)
		return t
	}
	t.AddRow(append([]string{outcome}, attendanceRow(a, wide)...)...)
	return t
}

type startView struct {
	Outcome    string             `json:"outcome"`
	Attendance *domain.Attendance `json:"attendance"`
}

func (v startView) Table(wide bool) *output.Table {
	return outcomeTable(v.Outcome, v.Attendance, wide)
}

type breakView struct {
	OnBreak    bool               `json:"on_break"`
	Break      domain.Break       `json:"break"`
	Attendance *domain.Attendance `json:"attendance"`
}

func (v breakView) Table(wide bool) *output.Table {
	outcome := "break ended"
	if v.OnBreak {
		outcome = "break started"
	}
	return outcomeTable(outcome, v.Attendance, wide)
}

type endView struct {
	Outcome    string             `json:"outcome"`
	Attendance *domain.Attendance `json:"attendance,omitempty"`
}

func (v endView) Table(wide bool) *output.Table {
	return outcomeTable(v.Outcome, v.Attendance, wide)
}

type reviveView struct {
	Outcome    string             `json:"outcome"`
	Attendance *domain.Attendance `json:"attendance,omitempty"`
	ElapsedMS  int64              `json:"elapsed_ms,omitempty"`
}

func (v reviveView) Table(wide bool) *output.Table {
	return outcomeTable(v.Outcome, v.Attendance, wide)
}

type statusView struct {
	ActiveAttendance *domain.Attendance `json:"active_attendance"`
	LastAttendance   *domain.Attendance `json:"last_attendance"`
}

func (v statusView) Table(wide bool) *output.Table {
	if v.ActiveAttendance == nil && v.LastAttendance == nil {
		t := output.NewTable("STATE")
		t.AddRow("no attendance")
		return t
	}
	if v.ActiveAttendance != nil {
		return attendanceTable(wide, v.ActiveAttendance)
	}
	return attendanceTable(wide, v.LastAttendance)
}

type policyView struct {
	ReviveGraceMS int64 `json:"revive_grace_ms"`
}

func (v policyView) Grace() time.Duration {
	return time.Duration(v.ReviveGraceMS) * time.Millisecond
}

func (v policyView) Table(bool) *output.Table {
	t := output.NewTable("REVIVE_GRACE")
	t.AddRow(v.Grace().String())
	return t
}

type employeeView struct {
	User             userView           `json:"user"`
	ActiveAttendance *domain.Attendance `json:"active_attendance"`
}

type employeesView []employeeView

func (v employeesView) Table(wide bool) *output.Table {
	headers := []string{"USER_ID", "USERNAME", "NAME", "STATE", "STARTED", "WORKED"}
	if wide {
		headers = append(headers, "STAFF", "LAST_LOGIN")
	}
	t := output.NewTable(headers...)
	now := nowMillis()
	for _, e := range v {
		state, started, worked := "off", "", ""
		if a := e.ActiveAttendance; a != nil {
			state = attendanceState(a)
			started = output.Millis(a.StartTime)
			worked = output.Duration(a.Duration(now) - a.BreakDuration(now))
		}
		row := []string{e.User.ID, e.User.Username, e.User.FullName, state, started, worked}
		if wide {
			row = append(row, output.Bool(e.User.IsStaff), output.Millis(e.User.LastLogin))
		}
		t.AddRow(row...)
	}
	return t
}

type trackingView struct {
	User        userView             `json:"user"`
	Attendances []*domain.Attendance `json:"attendances"`
}

func (v trackingView) Table(wide bool) *output.Table {
	return attendanceTable(wide, v.Attendances...)
}

type saveView struct {
	Path string `json:"path"`
	Day  string `json:"day"`
}

func (v saveView) Table(bool) *output.Table {
	t := output.NewTable("DAY", "PATH")
	t.AddRow(v.Day, v.Path)
	return t
}

type flushView struct {
	UserID  string `json:"user_id"`
	Flushed int    `json:"flushed"`
}

func (v flushView) Table(bool) *output.Table {
	t := output.NewTable("USER_ID", "FLUSHED")
	t.AddRow(v.UserID, strconv.Itoa(v.Flushed))
	return t
}

// messageView is a one-line result.
type messageView struct {
	Message string `json:"message"`
}

func (v messageView) Table(bool) *output.Table {
	t := output.NewTable()
	t.AddRow(v.Message)
	return t
}

func message(format string, args ...any) messageView {
	return messageView{Message: fmt.Sprintf(format, args...)}
}
